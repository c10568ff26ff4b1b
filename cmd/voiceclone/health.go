package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/tts"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the XTTS server is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	// The health probe only needs [xtts]; RVC settings are not checked.
	cfg, err := loadConfig(func(cfg *config.Config) {
		disabled := false
		cfg.RVC.Enabled = &disabled
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), tts.HealthCheckTimeout)
	defer cancel()

	client := tts.NewHTTPClient(cfg.XTTS.ServiceURL, tts.HealthCheckTimeout, 0)

	healthErr := client.HealthCheck(ctx)
	if healthErr != nil {
		cmd.PrintErrf("XTTS service at %s is not healthy: %v\n", cfg.XTTS.ServiceURL, healthErr)

		return healthErr
	}

	cmd.Printf("XTTS service at %s is healthy\n", cfg.XTTS.ServiceURL)

	return nil
}
