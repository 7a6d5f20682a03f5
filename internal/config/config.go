package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration. It is read once at startup
// and immutable afterwards.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	API struct {
		Key string `yaml:"key"`
	} `yaml:"api"`
	Ollama struct {
		Host           string `yaml:"host"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"ollama"`
	UniFi struct {
		Host                string `yaml:"host"`
		Username            string `yaml:"username"`
		Password            string `yaml:"password"`
		PollIntervalSeconds int64  `yaml:"poll_interval_seconds"`
	} `yaml:"unifi"`
	RateLimit string `yaml:"rate_limit"`
	AuditLog  string `yaml:"audit_log"`
}

// LoadConfig reads configuration from the specified YAML file. String values
// may reference environment variables (for example ${API_KEY}); they are
// expanded before defaults are applied, so an unset variable falls back to
// the default rather than an empty value.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Expand environment variable references
	config.Server.Port = os.ExpandEnv(config.Server.Port)
	config.Log.Level = os.ExpandEnv(config.Log.Level)
	config.API.Key = os.ExpandEnv(config.API.Key)
	config.Ollama.Host = os.ExpandEnv(config.Ollama.Host)
	config.Ollama.Model = os.ExpandEnv(config.Ollama.Model)
	config.UniFi.Host = os.ExpandEnv(config.UniFi.Host)
	config.UniFi.Username = os.ExpandEnv(config.UniFi.Username)
	config.UniFi.Password = os.ExpandEnv(config.UniFi.Password)
	config.RateLimit = os.ExpandEnv(config.RateLimit)
	config.AuditLog = os.ExpandEnv(config.AuditLog)

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "5000"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Ollama.Host == "" {
		config.Ollama.Host = "http://ollama:11434"
	}

	if config.Ollama.Model == "" {
		config.Ollama.Model = "llama3:8b"
	}

	if config.Ollama.TimeoutSeconds == 0 {
		config.Ollama.TimeoutSeconds = 30
	}

	if config.UniFi.Host == "" {
		config.UniFi.Host = "https://unifi-controller:8443"
	}

	if config.UniFi.PollIntervalSeconds == 0 {
		config.UniFi.PollIntervalSeconds = 30
	}

	if config.RateLimit == "" {
		config.RateLimit = "10/minute"
	}

	if config.AuditLog == "" {
		config.AuditLog = "/logs/ai-decisions.log"
	}

	if config.UniFi.PollIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid poll_interval_seconds %d: must be positive", config.UniFi.PollIntervalSeconds)
	}

	if _, _, err := ParseRateLimit(config.RateLimit); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseRateLimit converts a quota spec such as "10/minute" into a token
// bucket limit and burst. Burst equals the quota, so a full window's worth
// of requests may arrive at once before throttling starts.
func ParseRateLimit(spec string) (rate.Limit, int, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rate limit %q: expected N/second, N/minute or N/hour", spec)
	}

	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("invalid rate limit %q: count must be a positive integer", spec)
	}

	var window time.Duration
	switch strings.TrimSpace(parts[1]) {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid rate limit %q: unknown window %q", spec, parts[1])
	}

	return rate.Limit(float64(count) / window.Seconds()), count, nil
}
