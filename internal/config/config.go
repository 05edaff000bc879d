package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. PKO_SERVER_PORT.
const EnvPrefix = "PKO"

// DefaultSourceURL is the UN peacekeeping operations CSV endpoint.
const DefaultSourceURL = "https://api.psdata.un.org/public/data/DPPADPOSS-PKO/CSV"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SourceConfig describes where the dataset is fetched from
type SourceConfig struct {
	URL       string        `yaml:"url" envconfig:"URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxBytes  int64         `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	// AllowLocal lets API clients open file paths on the server
	AllowLocal bool `yaml:"allow_local" envconfig:"ALLOW_LOCAL"`
}

// SessionConfig bounds the in-memory sessions
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl" envconfig:"TTL"`
	MaxSessions int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS"`
}

// AnalysisConfig tunes the derived metrics
type AnalysisConfig struct {
	// LatitudePolicy is "first_valid" or "first_row"
	LatitudePolicy string `yaml:"latitude_policy" envconfig:"LATITUDE_POLICY"`
	HistogramBins  int    `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS"`
	TopN           int    `yaml:"top_n" envconfig:"TOP_N"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, then the YAML file if one
// exists, then environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file; an empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if err := ValidateSource(c.Source.URL); err != nil {
		return err
	}

	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}

	if c.Source.MaxBytes <= 0 {
		return fmt.Errorf("source max bytes must be positive")
	}

	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	switch c.Analysis.LatitudePolicy {
	case "first_valid", "first_row":
	default:
		return fmt.Errorf("unknown latitude policy: %q", c.Analysis.LatitudePolicy)
	}

	if c.Analysis.HistogramBins <= 0 {
		return fmt.Errorf("histogram bins must be positive")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		c.Logging.Output = "stdout"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "app.log")
	}

	return nil
}

// ValidateSource accepts http(s) URLs, file:// URLs and plain paths.
func ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source url must be set")
	}
	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid source url %q: %w", source, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("source url %q has no host", source)
		}
	case "file", "":
	default:
		// Windows drive letters parse as a one-letter scheme
		if len(u.Scheme) != 1 {
			return fmt.Errorf("unsupported source scheme: %s", u.Scheme)
		}
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Source: SourceConfig{
			URL:       DefaultSourceURL,
			Timeout:   30 * time.Second,
			MaxBytes:  32 << 20,
			UserAgent: AppName + "/" + AppVersion,
		},
		Session: SessionConfig{
			TTL:         30 * time.Minute,
			MaxSessions: 64,
		},
		Analysis: AnalysisConfig{
			LatitudePolicy: "first_valid",
			HistogramBins:  20,
			TopN:           10,
		},
		Paths: PathsConfig{
			ExportsDir: "exports",
			LogsDir:    "logs",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
