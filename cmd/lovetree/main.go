// Command lovetree runs the LoveTree API server and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lovetree/lovetree/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFiles []string

var rootCmd = &cobra.Command{
	Use:           "lovetree",
	Short:         "LoveTree relationship tracking backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "optional JSON/YAML config files (environment wins)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configFiles...)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.App.LogLevel, err)
	}
	logger.SetLevel(level)
	if cfg.App.Env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return cfg, logger, nil
}
