package main

import (
	"testing"

	"github.com/lovetree/lovetree/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAddr(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Port: 8080}}

	assert.Equal(t, ":8080", resolveAddr(cfg, ""))
	assert.Equal(t, ":8080", resolveAddr(cfg, "  "))
	assert.Equal(t, ":9090", resolveAddr(cfg, ":9090"))
	assert.Equal(t, "127.0.0.1:7000", resolveAddr(cfg, "127.0.0.1:7000"))
}

func TestServeAddrFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	require.NoError(t, serveCmd.Flags().Parse([]string{"--addr", ":9090"}))
	t.Cleanup(func() {
		listenAddr = ""
		flag.Changed = false
	})
	assert.Equal(t, ":9090", listenAddr)
}
