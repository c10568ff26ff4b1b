package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/pipeline"
	"github.com/book-expert/voiceclone/internal/rvc"
	"github.com/book-expert/voiceclone/internal/tts"
	"github.com/book-expert/voiceclone/internal/tts/audio"
)

var (
	runInput        string
	runReference    string
	runOutput       string
	runModel        string
	runKeepTrailing bool
	runSkipRVC      bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Synthesize a text file in the cloned voice",
		Args:  cobra.NoArgs,
		RunE:  runVoiceClone,
	}
)

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "text file to speak (default [paths] input_text_path)")
	runCmd.Flags().StringVarP(&runReference, "reference", "r", "", "reference speaker clip (default [paths] reference_audio_path)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output WAV file (default <temp_dir>/output_HH-MM-SS.wav)")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "RVC model name (default [rvc] model_name)")
	runCmd.Flags().BoolVar(&runKeepTrailing, "keep-trailing", false, "speak a final fragment that has no terminal punctuation")
	runCmd.Flags().BoolVar(&runSkipRVC, "skip-rvc", false, "write the XTTS output without voice conversion")

	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cfg *config.Config) {
	if runInput != "" {
		cfg.Paths.InputTextPath = runInput
	}

	if runReference != "" {
		cfg.Paths.ReferenceAudioPath = runReference
	}

	if runOutput != "" {
		cfg.Paths.OutputPath = runOutput
	}

	if runModel != "" {
		cfg.RVC.ModelName = runModel
	}

	if runKeepTrailing {
		cfg.Segmenter.KeepTrailing = true
	}

	if runSkipRVC {
		disabled := false
		cfg.RVC.Enabled = &disabled
	}
}

func runVoiceClone(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(applyRunFlags)
	if err != nil {
		return err
	}

	log, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger(log)

	ctx := cmd.Context()

	synth := tts.NewXTTSSynthesizer(cfg.XTTS, log)

	loadErr := synth.Load(ctx)
	if loadErr != nil {
		log.Error("Failed to prepare XTTS: %v", loadErr)

		return loadErr
	}

	var converter core.VoiceConverter

	if cfg.RVCEnabled() {
		rvcConverter, rvcErr := rvc.NewFromConfig(cfg.RVC, "", log)
		if rvcErr != nil {
			log.Error("Failed to prepare RVC: %v", rvcErr)

			return rvcErr
		}

		converter = rvcConverter
	}

	voiceClone := pipeline.New(
		pipeline.OptionsFromConfig(cfg),
		synth,
		converter,
		audio.NewWAVWriter(cfg.AudioFormat()),
		log,
	)

	result, err := voiceClone.Run(ctx, pipeline.Job{
		InputTextPath:      cfg.Paths.InputTextPath,
		ReferenceAudioPath: cfg.Paths.ReferenceAudioPath,
		OutputPath:         cfg.ResolveOutputPath(time.Now()),
		Language:           cfg.XTTS.Language,
	})
	if err != nil {
		log.Error("Voice clone failed: %v", err)

		return err
	}

	if result.Skipped {
		cmd.Printf("No sentences found in %s; nothing written\n", cfg.Paths.InputTextPath)

		return nil
	}

	cmd.Printf("Wrote %s (%d sentences, %s)\n", result.OutputPath, len(result.Sentences), result.Duration)

	return nil
}
