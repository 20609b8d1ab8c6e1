package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port                    int    `toml:"port"`
	DataDir                 string `toml:"data_dir"`
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FFprobeBinary           string `toml:"ffprobe_binary"`
	MaxConcurrentTranscodes int    `toml:"max_concurrent_transcodes"`
	BehindProxy             bool   `toml:"behind_proxy"`
}

func defaults() *Config {
	return &Config{
		Port:                    7880,
		DataDir:                 "/data",
		FFmpegBinary:            "ffmpeg",
		FFprobeBinary:           "ffprobe",
		MaxConcurrentTranscodes: 2,
	}
}

// Load builds the config from defaults, then the TOML file named by
// MYDIA_CONFIG (if set), then environment variables. Later layers win.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("MYDIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FFMPEG_BINARY"); v != "" {
		c.FFmpegBinary = v
	}
	if v := os.Getenv("FFPROBE_BINARY"); v != "" {
		c.FFprobeBinary = v
	}
	if v := os.Getenv("MAX_CONCURRENT_TRANSCODES"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENT_TRANSCODES: %w", err)
		}
		c.MaxConcurrentTranscodes = max
	}
	if v := os.Getenv("BEHIND_PROXY"); v != "" {
		behind, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BEHIND_PROXY: %w", err)
		}
		c.BehindProxy = behind
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxConcurrentTranscodes < 1 {
		return fmt.Errorf("max_concurrent_transcodes must be at least 1, got %d", c.MaxConcurrentTranscodes)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}
