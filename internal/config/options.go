package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"batch-transcriber/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. TRANSCRIBER_FFMPEG_PATH.
const EnvPrefix = "TRANSCRIBER"

// Options holds process-level runtime configuration, separate from the
// user settings kept in the Store.
type Options struct {
	StorePath   string         `mapstructure:"store_path"`
	FFmpegPath  string         `mapstructure:"ffmpeg_path"`
	WhisperPath string         `mapstructure:"whisper_path"`
	Device      string         `mapstructure:"device"`
	TempDir     string         `mapstructure:"temp_dir"`
	EventBuffer int            `mapstructure:"event_buffer"`
	Log         logging.Config `mapstructure:"log"`
}

// LoaderOption customizes LoadOptions.
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit YAML/JSON options file.
func WithConfigFile(path string) LoaderOption {
	return func(c *loaderConfig) { c.configFile = path }
}

// WithEnvFile sets an explicit .env file; the default is ./.env when present.
func WithEnvFile(path string) LoaderOption {
	return func(c *loaderConfig) { c.envFile = path }
}

// LoadOptions merges defaults, an optional config file, a .env file and
// TRANSCRIBER_* environment variables, in increasing precedence.
func LoadOptions(opts ...LoaderOption) (Options, error) {
	lc := loaderConfig{envFile: ".env"}
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Options{}, fmt.Errorf("load env file %s: %w", lc.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("read config file %s: %w", lc.configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var out Options
	if err := v.Unmarshal(&out); err != nil {
		return Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := out.Log.Validate(); err != nil {
		return Options{}, err
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	v.SetDefault("store_path", filepath.Join(homeDir, ".batch-transcriber", "config.json"))
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("whisper_path", "whisper-cli")
	v.SetDefault("device", "auto")
	v.SetDefault("temp_dir", "")
	v.SetDefault("event_buffer", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.no_color", false)
}
