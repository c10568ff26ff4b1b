// Package rvc drives the rvc_python command line tool to convert synthesized
// speech into the timbre of a trained RVC voice model.
package rvc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceclone/internal/config"
)

const (
	rvcModule     = "rvc_python"
	rvcSubcommand = "cli"
	tempPattern   = ".rvc-*.wav"
)

// ErrEmptyOutput is returned when the converter exits cleanly but writes nothing.
var ErrEmptyOutput = errors.New("rvc produced no output audio")

// Options configures the conversion subprocess.
type Options struct {
	PythonPath string
	Device     string
	F0Method   string
	IndexRate  float64
	RMSMixRate float64
	Timeout    time.Duration
}

// Converter implements core.VoiceConverter with one rvc_python invocation per call.
type Converter struct {
	opts  Options
	model Model
	log   *logger.Logger
}

// New resolves modelName under modelsDir and returns a converter for it. A
// missing model fails here rather than after synthesis has run.
func New(modelsDir, modelName string, opts Options, log *logger.Logger) (*Converter, error) {
	model, err := ResolveModel(modelsDir, modelName)
	if err != nil {
		return nil, err
	}

	return &Converter{opts: opts, model: model, log: log}, nil
}

// NewFromConfig builds a converter from the [rvc] section. A non-empty
// modelOverride replaces the configured model name.
func NewFromConfig(cfg config.RVCConfig, modelOverride string, log *logger.Logger) (*Converter, error) {
	name := cfg.ModelName
	if modelOverride != "" {
		name = modelOverride
	}

	return New(cfg.ModelsDir, name, Options{
		PythonPath: cfg.PythonPath,
		Device:     cfg.Device,
		F0Method:   cfg.F0Method,
		IndexRate:  cfg.IndexRate,
		RMSMixRate: cfg.RMSMixRate,
		Timeout:    cfg.Timeout(),
	}, log)
}

// Model returns the resolved voice model.
func (c *Converter) Model() Model {
	return c.model
}

// Convert runs the model over inputPath and writes the result to outputPath.
// The result is staged in a temporary file next to outputPath and renamed into
// place, so inputPath and outputPath may name the same file.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	staged, err := os.CreateTemp(filepath.Dir(outputPath), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create staging file for rvc output: %w", err)
	}

	stagedPath := staged.Name()
	_ = staged.Close()

	defer c.removeStaged(stagedPath)

	c.log.Info("Converting %s with RVC model %s on %s", inputPath, c.model.Name, c.opts.Device)

	cmd := exec.CommandContext(ctx, c.opts.PythonPath, c.args(inputPath, stagedPath)...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return fmt.Errorf("rvc conversion failed: %w\nOutput: %s", runErr, string(output))
	}

	info, statErr := os.Stat(stagedPath)
	if statErr != nil {
		return fmt.Errorf("failed to stat rvc output: %w", statErr)
	}

	if info.Size() == 0 {
		return ErrEmptyOutput
	}

	renameErr := os.Rename(stagedPath, outputPath)
	if renameErr != nil {
		return fmt.Errorf("failed to move rvc output to %s: %w", outputPath, renameErr)
	}

	c.log.Info("RVC conversion written to %s", outputPath)

	return nil
}

func (c *Converter) args(inputPath, outputPath string) []string {
	args := []string{
		"-m", rvcModule, rvcSubcommand,
		"-i", inputPath,
		"-o", outputPath,
		"-mp", c.model.ModelPath,
	}

	if c.model.IndexPath != "" {
		args = append(args, "-ip", c.model.IndexPath)
	}

	return append(args,
		"-de", c.opts.Device,
		"-me", c.opts.F0Method,
		"-ir", strconv.FormatFloat(c.opts.IndexRate, 'f', -1, 64),
		"-rmr", strconv.FormatFloat(c.opts.RMSMixRate, 'f', -1, 64),
	)
}

func (c *Converter) removeStaged(path string) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		c.log.Warn("Failed to remove rvc staging file %s: %v", path, err)
	}
}
