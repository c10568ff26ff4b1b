// Package config provides the configuration structure for the voice-clone pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/voiceclone/internal/tts/audio"
)

// Defaults applied to zero-valued settings.
const (
	defaultLogsDir          = "logs"
	defaultTempDir          = "temp"
	defaultInputTextName    = "sentences.txt"
	defaultReferenceName    = "audio153.wav"
	defaultXTTSURL          = "http://127.0.0.1:8020"
	defaultXTTSDevice       = "cuda"
	defaultLanguage         = "en"
	defaultTemperature      = 0.7
	defaultSpeed            = 0.95
	defaultXTTSTimeout      = 300
	defaultPythonPath       = "python"
	defaultRVCDevice        = "cuda:0"
	defaultF0Method         = "rmvpe"
	defaultIndexRate        = 0.75
	defaultRMSMixRate       = 0.25
	defaultRVCTimeout       = 600
	defaultSampleRate       = 24000
	defaultBitDepth         = 16
	defaultSilenceSeconds   = 0.3
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultJobsSubject      = "voiceclone.jobs"
	defaultBucket           = "VOICECLONE"
	defaultReferenceKey     = "reference.wav"
	outputNameTimeLayout    = "15-04-05"
	outputNamePrefix        = "output_"
	outputNameExtension     = ".wav"
	errFmtFieldRequired     = "%w: %s"
	errFmtFieldOutOfRange   = "%w: %s must be %s, got %v"
	rangeNonNegative        = ">= 0"
	rangePositive           = "> 0"
	rangeUnitInterval       = "between 0 and 1"
	fieldXTTSServiceURL     = "xtts.service_url"
	fieldRVCModelsDir       = "rvc.models_dir"
	fieldRVCModelName       = "rvc.model_name"
)

var (
	// ErrMissingField is returned when a required setting is empty.
	ErrMissingField = errors.New("required configuration field is empty")
	// ErrOutOfRange is returned when a numeric setting is outside its valid range.
	ErrOutOfRange = errors.New("configuration value out of range")
)

// PathsConfig holds file locations. Relative paths resolve against the working
// directory of the process.
type PathsConfig struct {
	BaseLogsDir        string `toml:"base_logs_dir"`
	TempDir            string `toml:"temp_dir"`
	InputTextPath      string `toml:"input_text_path"`
	ReferenceAudioPath string `toml:"reference_audio_path"`
	OutputPath         string `toml:"output_path"`
}

// XTTSConfig holds the XTTS server location, the checkpoint it should load, and
// sampling settings.
type XTTSConfig struct {
	ServiceURL        string  `toml:"service_url"`
	ConfigPath        string  `toml:"config_path"`
	CheckpointPath    string  `toml:"checkpoint_path"`
	VocabPath         string  `toml:"vocab_path"`
	Device            string  `toml:"device"`
	UseDeepspeed      bool    `toml:"use_deepspeed"`
	Language          string  `toml:"language"`
	Temperature       float64 `toml:"temperature"`
	Speed             float64 `toml:"speed"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// RVCConfig holds voice-conversion settings. Enabled is a pointer so that an
// omitted key keeps conversion on.
type RVCConfig struct {
	Enabled        *bool   `toml:"enabled"`
	PythonPath     string  `toml:"python_path"`
	ModelsDir      string  `toml:"models_dir"`
	ModelName      string  `toml:"model_name"`
	Device         string  `toml:"device"`
	F0Method       string  `toml:"f0_method"`
	IndexRate      float64 `toml:"index_rate"`
	RMSMixRate     float64 `toml:"rms_mix_rate"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// AudioConfig holds the output WAV layout and inter-sentence silence.
type AudioConfig struct {
	SampleRate     int     `toml:"sample_rate"`
	BitDepth       int     `toml:"bit_depth"`
	SilenceSeconds float64 `toml:"silence_seconds"`
}

// SegmenterConfig controls sentence splitting.
type SegmenterConfig struct {
	KeepTrailing bool `toml:"keep_trailing"`
	Normalize    bool `toml:"normalize"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL               string `toml:"url"`
	JobsSubject       string `toml:"jobs_subject"`
	ObjectStoreBucket string `toml:"object_store_bucket"`
	ReferenceAudioKey string `toml:"reference_audio_key"`
}

// Config is the root configuration structure.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	XTTS      XTTSConfig      `toml:"xtts"`
	RVC       RVCConfig       `toml:"rvc"`
	Audio     AudioConfig     `toml:"audio"`
	Segmenter SegmenterConfig `toml:"segmenter"`
	NATS      NATSConfig      `toml:"nats"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// LoadFile reads a TOML file, applies defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, applies defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// ApplyDefaults fills every zero-valued optional setting.
func (c *Config) ApplyDefaults() {
	c.Paths.BaseLogsDir = orDefault(c.Paths.BaseLogsDir, defaultLogsDir)
	c.Paths.TempDir = orDefault(c.Paths.TempDir, defaultTempDir)
	c.Paths.InputTextPath = orDefault(c.Paths.InputTextPath, filepath.Join(c.Paths.TempDir, defaultInputTextName))
	c.Paths.ReferenceAudioPath = orDefault(
		c.Paths.ReferenceAudioPath, filepath.Join(c.Paths.TempDir, defaultReferenceName))

	c.XTTS.ServiceURL = orDefault(c.XTTS.ServiceURL, defaultXTTSURL)
	c.XTTS.Device = orDefault(c.XTTS.Device, defaultXTTSDevice)
	c.XTTS.Language = orDefault(c.XTTS.Language, defaultLanguage)
	c.XTTS.Temperature = orDefaultFloat(c.XTTS.Temperature, defaultTemperature)
	c.XTTS.Speed = orDefaultFloat(c.XTTS.Speed, defaultSpeed)
	c.XTTS.TimeoutSeconds = orDefaultInt(c.XTTS.TimeoutSeconds, defaultXTTSTimeout)

	if c.RVC.Enabled == nil {
		enabled := true
		c.RVC.Enabled = &enabled
	}

	c.RVC.PythonPath = orDefault(c.RVC.PythonPath, defaultPythonPath)
	c.RVC.Device = orDefault(c.RVC.Device, defaultRVCDevice)
	c.RVC.F0Method = orDefault(c.RVC.F0Method, defaultF0Method)
	c.RVC.IndexRate = orDefaultFloat(c.RVC.IndexRate, defaultIndexRate)
	c.RVC.RMSMixRate = orDefaultFloat(c.RVC.RMSMixRate, defaultRMSMixRate)
	c.RVC.TimeoutSeconds = orDefaultInt(c.RVC.TimeoutSeconds, defaultRVCTimeout)

	c.Audio.SampleRate = orDefaultInt(c.Audio.SampleRate, defaultSampleRate)
	c.Audio.BitDepth = orDefaultInt(c.Audio.BitDepth, defaultBitDepth)
	c.Audio.SilenceSeconds = orDefaultFloat(c.Audio.SilenceSeconds, defaultSilenceSeconds)

	c.NATS.URL = orDefault(c.NATS.URL, defaultNATSURL)
	c.NATS.JobsSubject = orDefault(c.NATS.JobsSubject, defaultJobsSubject)
	c.NATS.ObjectStoreBucket = orDefault(c.NATS.ObjectStoreBucket, defaultBucket)
	c.NATS.ReferenceAudioKey = orDefault(c.NATS.ReferenceAudioKey, defaultReferenceKey)
}

// Validate checks required fields and numeric ranges.
func (c *Config) Validate() error {
	if c.XTTS.ServiceURL == "" {
		return fmt.Errorf(errFmtFieldRequired, ErrMissingField, fieldXTTSServiceURL)
	}

	if c.RVCEnabled() {
		if c.RVC.ModelsDir == "" {
			return fmt.Errorf(errFmtFieldRequired, ErrMissingField, fieldRVCModelsDir)
		}

		if c.RVC.ModelName == "" {
			return fmt.Errorf(errFmtFieldRequired, ErrMissingField, fieldRVCModelName)
		}
	}

	rangeErr := c.validateRanges()
	if rangeErr != nil {
		return rangeErr
	}

	formatErr := c.AudioFormat().Validate()
	if formatErr != nil {
		return fmt.Errorf("invalid [audio] section: %w", formatErr)
	}

	return nil
}

// AudioFormat returns the mono WAV layout the pipeline writes.
func (c *Config) AudioFormat() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		BitDepth:   c.Audio.BitDepth,
		Channels:   audio.DEFAULT_CHANNELS,
	}
}

func (c *Config) validateRanges() error {
	checks := []struct {
		field string
		value float64
		valid bool
		rule  string
	}{
		{"xtts.temperature", c.XTTS.Temperature, c.XTTS.Temperature >= 0, rangeNonNegative},
		{"xtts.speed", c.XTTS.Speed, c.XTTS.Speed > 0, rangePositive},
		{"xtts.requests_per_second", c.XTTS.RequestsPerSecond, c.XTTS.RequestsPerSecond >= 0, rangeNonNegative},
		{"rvc.index_rate", c.RVC.IndexRate, inUnitInterval(c.RVC.IndexRate), rangeUnitInterval},
		{"rvc.rms_mix_rate", c.RVC.RMSMixRate, inUnitInterval(c.RVC.RMSMixRate), rangeUnitInterval},
		{"audio.silence_seconds", c.Audio.SilenceSeconds, c.Audio.SilenceSeconds >= 0, rangeNonNegative},
	}

	for _, check := range checks {
		if !check.valid {
			return fmt.Errorf(errFmtFieldOutOfRange, ErrOutOfRange, check.field, check.rule, check.value)
		}
	}

	return nil
}

// RVCEnabled reports whether voice conversion runs after synthesis.
func (c *Config) RVCEnabled() bool {
	return c.RVC.Enabled == nil || *c.RVC.Enabled
}

// Silence returns the pause inserted after every sentence.
func (c *Config) Silence() time.Duration {
	return time.Duration(c.Audio.SilenceSeconds * float64(time.Second))
}

// Timeout returns the per-request timeout for the XTTS server.
func (c XTTSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the timeout for one voice-conversion run.
func (c RVCConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveOutputPath returns the configured output path, or a time-stamped file
// name inside the temp directory when none is set.
func (c *Config) ResolveOutputPath(now time.Time) string {
	if c.Paths.OutputPath != "" {
		return c.Paths.OutputPath
	}

	name := outputNamePrefix + now.Format(outputNameTimeLayout) + outputNameExtension

	return filepath.Join(c.Paths.TempDir, name)
}

func inUnitInterval(value float64) bool {
	return value >= 0 && value <= 1
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

func orDefaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}

	return value
}

func orDefaultFloat(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}

	return value
}
