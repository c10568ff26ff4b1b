package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/book-expert/voiceclone/internal/segment"
	"github.com/book-expert/voiceclone/internal/tts/text"
)

var (
	segmentKeepTrailing bool
	segmentNormalize    bool

	segmentCmd = &cobra.Command{
		Use:   "segment [FILE]",
		Short: "Print the sentences of a text, one per line",
		Long:  "segment prints the sentences voiceclone would speak. With no FILE it reads standard input.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSegment,
	}
)

func init() {
	segmentCmd.Flags().BoolVar(&segmentKeepTrailing, "keep-trailing", false, "keep a final fragment without terminal punctuation")
	segmentCmd.Flags().BoolVar(&segmentNormalize, "normalize", false, "normalize punctuation, honorifics and numbers first")

	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	raw, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	if segmentNormalize {
		raw = text.NewPreprocessor().Normalize(raw)
	}

	out := cmd.OutOrStdout()

	for _, sentence := range segment.SegmentWithOptions(raw, segment.Options{KeepTrailing: segmentKeepTrailing}) {
		_, writeErr := fmt.Fprintln(out, sentence)
		if writeErr != nil {
			return fmt.Errorf("failed to write sentence: %w", writeErr)
		}
	}

	return nil
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}

		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	return string(data), nil
}
