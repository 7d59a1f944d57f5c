package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/okeev/mailsched/internal/app"
	"github.com/okeev/mailsched/internal/config"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick and exit",
	Long:  `Run a single out-of-band due-check-and-dispatch cycle, identical to one timer tick of the daemon.`,
	RunE:  runTick,
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Scheduler().RunTick(context.Background()); err != nil {
		return err
	}

	cmd.Println("tick complete")
	return nil
}
