package main

import (
	"errors"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative account tasks",
}

var adminInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the admin account from ADMIN_EMAIL/ADMIN_PASSWORD, or promote an existing user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}

		db, err := database.Connect(cmd.Context(), cfg.DB.DSN())
		if err != nil {
			return err
		}
		defer db.Close()

		u, created, err := db.EnsureAdmin(cmd.Context(), cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"user":    u.ID,
			"email":   u.Email,
			"created": created,
		}).Info("admin account ready")
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminInitCmd)
	rootCmd.AddCommand(adminCmd)
}
