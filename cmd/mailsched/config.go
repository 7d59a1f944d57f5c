package main

import (
	"github.com/spf13/cobra"

	"github.com/okeev/mailsched/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	cmd.Printf("Configuration is valid\n")
	cmd.Printf("  Storage:       %s\n", cfg.Storage.Path)
	cmd.Printf("  SMTP relay:    %s:%d (%s)\n", cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.TLS)
	cmd.Printf("  From:          %s\n", cfg.SMTP.From)
	cmd.Printf("  Tick interval: %s\n", cfg.Scheduler.TickInterval)
	return nil
}
