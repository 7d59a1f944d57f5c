package main

import (
	"github.com/spf13/cobra"

	"github.com/okeev/mailsched/internal/config"
	"github.com/okeev/mailsched/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}

	cmd.Printf("migrations applied to %s\n", cfg.Storage.Path)
	return nil
}
