// ABOUTME: Configuration loading and parsing for nanda-ui
// ABOUTME: Supports YAML files with environment variable expansion plus env-only mode

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultRegistryURL is used when neither config nor registry_url.txt provide one.
const DefaultRegistryURL = "https://chat.nanda-registry.com:6900"

// Config represents the complete nanda-ui configuration
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Registry  RegistryConfig  `yaml:"registry"`
	Stock     StockConfig     `yaml:"stock"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Database  DatabaseConfig  `yaml:"database"`
	SSL       SSLConfig       `yaml:"ssl"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig identifies this agent and how it advertises itself.
type AgentConfig struct {
	ID        string `yaml:"id" envconfig:"AGENT_ID"`
	IDPrefix  string `yaml:"id_prefix" envconfig:"AGENT_ID_PREFIX"`
	NumAgents int    `yaml:"num_agents" envconfig:"NUM_AGENTS"`
	PublicURL string `yaml:"public_url" envconfig:"PUBLIC_URL"`
	APIURL    string `yaml:"api_url" envconfig:"API_URL"`
}

// ServerConfig holds the UI HTTP server addresses.
// FallbackAddr is tried when Addr is already in use.
type ServerConfig struct {
	Addr         string `yaml:"addr" envconfig:"UI_ADDR"`
	FallbackAddr string `yaml:"fallback_addr" envconfig:"UI_FALLBACK_ADDR"`
}

// BridgeConfig describes the downstream agent bridge process.
type BridgeConfig struct {
	URL     string   `yaml:"url" envconfig:"BRIDGE_URL"`
	Port    int      `yaml:"port" envconfig:"PORT"`
	Command []string `yaml:"command" envconfig:"BRIDGE_COMMAND"`
	LogDir  string   `yaml:"log_dir" envconfig:"LOG_DIR"`

	Timeout      time.Duration `yaml:"-" ignored:"true"`
	StartupGrace time.Duration `yaml:"-" ignored:"true"`

	// Raw string values for YAML/env unmarshaling
	TimeoutRaw      string `yaml:"timeout" envconfig:"BRIDGE_TIMEOUT"`
	StartupGraceRaw string `yaml:"startup_grace" envconfig:"BRIDGE_STARTUP_GRACE"`
}

// RegistryConfig holds remote registry settings.
type RegistryConfig struct {
	URL                string `yaml:"url" envconfig:"REGISTRY_URL"`
	URLFile            string `yaml:"url_file" envconfig:"REGISTRY_URL_FILE"`
	Attempts           int    `yaml:"attempts" envconfig:"REGISTRY_ATTEMPTS"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" envconfig:"REGISTRY_INSECURE"`
}

// StockConfig holds stock service settings.
type StockConfig struct {
	Lang string `yaml:"lang" envconfig:"STOCK_LANG"`
}

// AnthropicConfig holds completion API settings for the /ask command.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key" envconfig:"ANTHROPIC_API_KEY"`
	Model     string `yaml:"model" envconfig:"ANTHROPIC_MODEL"`
	MaxTokens int    `yaml:"max_tokens" envconfig:"ANTHROPIC_MAX_TOKENS"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"NANDA_DB_PATH"`
}

// SSLConfig holds optional TLS material for the UI server.
type SSLConfig struct {
	CertFile string `yaml:"cert_file" envconfig:"SSL_CERT_FILE"`
	KeyFile  string `yaml:"key_file" envconfig:"SSL_KEY_FILE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config entirely from environment variables.
// The original deployment is .env-driven, so a missing config file is not an
// error: every setting has an env name (AGENT_ID, PORT, UI_ADDR, REGISTRY_URL,
// ANTHROPIC_API_KEY, ...). Call LoadEnvFileCandidates first to pick up .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in values the original hardcodes when unset.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "0.0.0.0:5000"
	}
	if c.Server.FallbackAddr == "" {
		c.Server.FallbackAddr = "0.0.0.0:5100"
	}
	if c.Bridge.Port == 0 {
		c.Bridge.Port = 6000
	}
	if c.Bridge.URL == "" {
		c.Bridge.URL = fmt.Sprintf("http://localhost:%d", c.Bridge.Port)
	}
	if c.Bridge.TimeoutRaw == "" {
		c.Bridge.TimeoutRaw = "60s"
	}
	if c.Bridge.StartupGraceRaw == "" {
		c.Bridge.StartupGraceRaw = "2s"
	}
	if c.Registry.URLFile == "" {
		c.Registry.URLFile = "registry_url.txt"
	}
	if c.Registry.Attempts == 0 {
		c.Registry.Attempts = 3
	}
	if c.Agent.NumAgents == 0 {
		c.Agent.NumAgents = 1
	}
	if c.Stock.Lang == "" {
		c.Stock.Lang = "en"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-3-5-sonnet-20241022"
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 1024
	}
	if c.Database.Path == "" {
		c.Database.Path = "nanda-ui.db"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return fmt.Errorf("agent.id is required (set AGENT_ID or pass --id)")
	}
	if c.SSL.CertFile != "" && c.SSL.KeyFile == "" {
		return fmt.Errorf("ssl.key_file is required when ssl.cert_file is set")
	}
	if c.SSL.KeyFile != "" && c.SSL.CertFile == "" {
		return fmt.Errorf("ssl.cert_file is required when ssl.key_file is set")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bridge.TimeoutRaw != "" {
		cfg.Bridge.Timeout, err = time.ParseDuration(cfg.Bridge.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing bridge timeout %q: %w", cfg.Bridge.TimeoutRaw, err)
		}
	}

	if cfg.Bridge.StartupGraceRaw != "" {
		cfg.Bridge.StartupGrace, err = time.ParseDuration(cfg.Bridge.StartupGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing bridge startup_grace %q: %w", cfg.Bridge.StartupGraceRaw, err)
		}
	}

	return nil
}
