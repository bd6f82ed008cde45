package config

import (
	"strconv"
	"time"
)

// Config is the root configuration for a live quote client.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Flash    FlashConfig    `yaml:"flash"`
	Cache    CacheConfig    `yaml:"cache"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds REST backend settings. BaseURL also supplies the host of
// the live channel.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // 0 = snapshot is never retried
}

// StreamConfig holds live channel settings.
type StreamConfig struct {
	Channel           string        `yaml:"channel"`     // Symbol or "overview"
	PageScheme        string        `yaml:"page_scheme"` // "http" or "https"; empty = base URL scheme
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	LoopBuffer        int           `yaml:"loop_buffer"`
}

// FlashConfig holds flash highlight settings.
type FlashConfig struct {
	Window time.Duration `yaml:"window"`
	Policy string        `yaml:"policy"` // "independent" or "latest"
}

// CacheConfig holds snapshot cache settings.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"` // Empty = in-memory cache
	TTL      time.Duration `yaml:"ttl"`
}

// RecorderConfig holds the optional quote recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the debug HTTP server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Addr returns the listen address for the debug HTTP server.
func (m MetricsConfig) Addr() string {
	return ":" + strconv.Itoa(m.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
