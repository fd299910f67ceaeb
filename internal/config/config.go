// Package config handles loading and validating the dialect-tts configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the dialect-tts daemon.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	GRPC      GRPCServerConfig  `mapstructure:"grpc"`
	Model     ModelConfig       `mapstructure:"model"`
	Audio     AudioConfig       `mapstructure:"audio"`
	Styles    map[string]string `mapstructure:"styles"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// HTTPConfig configures the synthesis API.
type HTTPConfig struct {
	Port              int           `mapstructure:"port"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`

	// CORSAllowedOrigins enables CORS for the listed origins. Empty disables it.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// UniformErrors answers every failure with 500. When false, validation
	// errors are 400 and unknown styles 404.
	UniformErrors bool `mapstructure:"uniform_errors"`
}

// GRPCServerConfig configures the optional gRPC synthesis transport.
type GRPCServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ModelConfig selects and configures the synthesis model backend.
type ModelConfig struct {
	Backend        string        `mapstructure:"backend"` // "exec", "tcp", "grpc" or "mock"
	Path           string        `mapstructure:"path"`
	LoadJIT        bool          `mapstructure:"load_jit"`
	LoadTRT        bool          `mapstructure:"load_trt"`
	FP16           bool          `mapstructure:"fp16"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	Exec           ExecConfig    `mapstructure:"exec"`
	TCP            TCPConfig     `mapstructure:"tcp"`
	GRPC           GRPCConfig    `mapstructure:"grpc"`
	Mock           MockConfig    `mapstructure:"mock"`
}

// ExecConfig runs the model in a resident worker process.
type ExecConfig struct {
	Command string `mapstructure:"command"`
}

// TCPConfig reaches a Wyoming-style model server.
type TCPConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	IOTimeout time.Duration `mapstructure:"io_timeout"` // 0 disables the per-inference deadline
}

// GRPCConfig reaches a gRPC model server.
type GRPCConfig struct {
	Target string `mapstructure:"target"`
}

// MockConfig configures the in-process silence generator.
type MockConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// AudioConfig controls prompt decoding.
type AudioConfig struct {
	TempDir string `mapstructure:"temp_dir"` // empty uses the OS temp dir
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// DefaultStyles maps style ids to the instruction handed to the model.
var DefaultStyles = map[string]string{
	"sichuanese": "用四川话讲",
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./dialect-tts.yaml, ./configs/dialect-tts.yaml, /etc/dialect-tts/dialect-tts.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.max_body_bytes", 25<<20)
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.uniform_errors", false)
	v.SetDefault("http.cors_allowed_origins", []string{})
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("model.backend", "exec")
	v.SetDefault("model.path", "pretrained_models/CosyVoice2-0.5B")
	v.SetDefault("model.load_jit", false)
	v.SetDefault("model.load_trt", false)
	v.SetDefault("model.fp16", false)
	v.SetDefault("model.max_concurrency", 1)
	v.SetDefault("model.load_timeout", 10*time.Minute)
	v.SetDefault("model.exec.command", "python3 -m cosyvoice_worker")
	v.SetDefault("model.tcp.endpoint", "localhost:10210")
	v.SetDefault("model.tcp.io_timeout", 0)
	v.SetDefault("model.grpc.target", "localhost:50061")
	v.SetDefault("model.mock.sample_rate", 22050)
	v.SetDefault("audio.temp_dir", "")
	v.SetDefault("styles", DefaultStyles)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("telemetry.service_name", "dialect-tts")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dialect-tts")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dialect-tts")
	}

	// Environment variables: DIALECT_TTS_HTTP_PORT, DIALECT_TTS_MODEL_BACKEND, etc.
	v.SetEnvPrefix("DIALECT_TTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in endpoint fields (e.g., "${MODEL_HOST}:10210")
	cfg.Model.Exec.Command = resolveEnvRef(cfg.Model.Exec.Command)
	cfg.Model.TCP.Endpoint = resolveEnvRef(cfg.Model.TCP.Endpoint)
	cfg.Model.GRPC.Target = resolveEnvRef(cfg.Model.GRPC.Target)
	cfg.Telemetry.OTLPEndpoint = resolveEnvRef(cfg.Telemetry.OTLPEndpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at start-up.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "exec", "tcp", "grpc", "mock":
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	if len(c.Styles) == 0 {
		return fmt.Errorf("no styles configured")
	}
	for id, instruction := range c.Styles {
		if strings.TrimSpace(instruction) == "" {
			return fmt.Errorf("style %q has an empty instruction", id)
		}
	}
	switch strings.ToLower(c.Telemetry.Exporter) {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if !strings.Contains(val, "${") {
		return val
	}
	return os.Expand(val, func(key string) string {
		if envVal, ok := os.LookupEnv(key); ok {
			return envVal
		}
		return "${" + key + "}"
	})
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
