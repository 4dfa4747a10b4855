package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Environment variables that override file values.
const (
	EnvWorkers     = "CAMSTITCH_WORKERS"
	EnvEncoder     = "CAMSTITCH_ENCODER"
	EnvKeepSeconds = "CAMSTITCH_KEEP_SECONDS"
	EnvWorkDir     = "CAMSTITCH_WORK_DIR"
	EnvFFmpeg      = "CAMSTITCH_FFMPEG"
	EnvFFprobe     = "CAMSTITCH_FFPROBE"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Workers     int    `yaml:"workers"`
	WorkDirName string `yaml:"work_dir_name"`
	OutputExt   string `yaml:"output_ext"`
	KeepSeconds int    `yaml:"keep_seconds"`

	// MinFreeBytes is the free space a directory needs before encoding starts.
	MinFreeBytes uint64 `yaml:"min_free_bytes"`

	Canvas CanvasConfig `yaml:"canvas"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Concat ConcatConfig `yaml:"concat"`
}

type CanvasConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Color  string `yaml:"color"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Encoder skips hardware detection when set.
	Encoder         string `yaml:"encoder"`
	SoftwareEncoder string `yaml:"software_encoder"`

	Threads int    `yaml:"threads"`
	CRF     int    `yaml:"crf"`
	Preset  string `yaml:"preset"`

	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	EncodeTimeout time.Duration `yaml:"encode_timeout"`
}

type ConcatConfig struct {
	StreamCopy bool `yaml:"stream_copy"`
}

// Keep returns the trailing window length.
func (c *Config) Keep() time.Duration {
	return time.Duration(c.KeepSeconds) * time.Second
}

// Load reads configuration from file or returns defaults. A .env file in the
// working directory is loaded first and CAMSTITCH_* variables are applied on
// top of the file values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	explicit := path != ""
	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the configuration in file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no run can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.KeepSeconds <= 0 {
		errs = append(errs, fmt.Errorf("keep_seconds must be positive, got %d", c.KeepSeconds))
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height))
	}
	if strings.TrimSpace(c.WorkDirName) == "" || strings.ContainsRune(c.WorkDirName, filepath.Separator) {
		errs = append(errs, fmt.Errorf("work_dir_name must be a plain directory name, got %q", c.WorkDirName))
	}
	if strings.TrimSpace(c.OutputExt) == "" {
		errs = append(errs, errors.New("output_ext is required"))
	}
	if c.FFmpeg.ProbeTimeout < 0 || c.FFmpeg.EncodeTimeout < 0 {
		errs = append(errs, errors.New("ffmpeg timeouts must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v, ok := lookupEnv(EnvKeepSeconds); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKeepSeconds, err)
		}
		c.KeepSeconds = n
	}
	if v, ok := lookupEnv(EnvEncoder); ok {
		c.FFmpeg.Encoder = v
	}
	if v, ok := lookupEnv(EnvWorkDir); ok {
		c.WorkDirName = v
	}
	if v, ok := lookupEnv(EnvFFmpeg); ok {
		c.FFmpeg.FFmpegPath = v
	}
	if v, ok := lookupEnv(EnvFFprobe); ok {
		c.FFmpeg.FFprobePath = v
	}
	return nil
}

// lookupEnv treats empty values as unset.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Workers:      2,
		WorkDirName:  "combined_tmp",
		OutputExt:    "mp4",
		KeepSeconds:  30,
		MinFreeBytes: 1 << 30,
		Canvas: CanvasConfig{
			Width:  1920,
			Height: 1080,
			Color:  "black",
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			SoftwareEncoder: "libx264",
			Threads:         0,
			CRF:             23,
			Preset:          "medium",
			ProbeTimeout:    30 * time.Second,
			EncodeTimeout:   20 * time.Minute,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./camstitch.yaml",
		"./camstitch.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".camstitch", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
