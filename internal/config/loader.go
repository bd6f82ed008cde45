package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envOverrides are read from the environment after the YAML file.
type envOverrides struct {
	APIURL     string `envconfig:"STELLAR_API_URL"`
	RedisURL   string `envconfig:"REDIS_URL"`
	Channel    string `envconfig:"LIVEQUOTE_CHANNEL"`
	DBPassword string `envconfig:"LIVEQUOTE_DB_PASSWORD"`
}

// Load reads an optional YAML config file, expands environment variables and
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.APIURL != "" {
		c.API.BaseURL = env.APIURL
	}
	if env.RedisURL != "" {
		c.Cache.RedisURL = env.RedisURL
	}
	if env.Channel != "" {
		c.Stream.Channel = env.Channel
	}
	if env.DBPassword != "" {
		c.Recorder.Database.Password = env.DBPassword
	}
	return nil
}
