// Command voiceclone turns a text file into speech in a cloned voice.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/book-expert/voiceclone/internal/config"
)

const logFileName = "voiceclone.log"

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "voiceclone",
		Short: "Clone a voice from text with XTTS and RVC",
		Long: "voiceclone splits a text file into sentences, speaks each one with a fine-tuned XTTS\n" +
			"model conditioned on a reference clip, and converts the joined audio with an RVC model.",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a TOML config file")
}

// loadConfig reads the config file when one is given, lets adjust override
// fields, then fills defaults and validates. Missing files are an error; a
// missing --config yields the built-in defaults.
func loadConfig(adjust func(*config.Config)) (*config.Config, error) {
	var cfg config.Config

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		unmarshalErr := toml.Unmarshal(data, &cfg)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, unmarshalErr)
		}
	}

	if adjust != nil {
		adjust(&cfg)
	}

	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

func openLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return log, nil
}

func closeLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
