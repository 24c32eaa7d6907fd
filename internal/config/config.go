package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Source selects where the knowledge text comes from.
type Source string

const (
	SourceInline     Source = "inline"
	SourceUpload     Source = "upload"
	SourceAutoload   Source = "autoload"
	SourceDiagnostic Source = "diagnostic"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

var (
	ErrMissingAPIKey = errors.New("GOOGLE_API_KEY not found in environment or secrets file")
	ErrInvalid       = errors.New("invalid configuration")
)

type Config struct {
	APIKey      string          `yaml:"-"`
	BaseURL     string          `yaml:"base_url"`
	Model       string          `yaml:"model"`
	Provider    string          `yaml:"provider"`
	SecretsFile string          `yaml:"secrets_file"`
	LogLevel    string          `yaml:"log_level"`
	Knowledge   KnowledgeConfig `yaml:"knowledge"`
	Server      ServerConfig    `yaml:"server"`
}

type KnowledgeConfig struct {
	Source Source `yaml:"source"`
	Dir    string `yaml:"dir"`
	Watch  bool   `yaml:"watch"`
	// Inline overrides the built-in Q&A block for the inline source.
	Inline string `yaml:"inline"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`

	// AllowOrigin enables credentialed CORS for a separately served front end.
	AllowOrigin string `yaml:"allow_origin"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Provider:    ProviderOpenAI,
		SecretsFile: ".streamlit/secrets.toml",
		LogLevel:    "info",
		Knowledge: KnowledgeConfig{
			Source: SourceInline,
			Dir:    ".",
		},
		Server: ServerConfig{
			Port:           "8080",
			SessionTTL:     30 * time.Minute,
			MaxUploadBytes: 10 << 20,
		},
	}
}

// Load layers the YAML file at path (or $KBCHAT_CONFIG), the environment and the
// secrets file over the defaults. It does not validate; call Validate after any
// command-line overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("KBCHAT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.APIKey == "" && cfg.SecretsFile != "" {
		key, err := readSecret(cfg.SecretsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.APIKey = key
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.APIKey = envOrDefault("GOOGLE_API_KEY", cfg.APIKey)
	cfg.BaseURL = envOrDefault("OPENAI_BASE_URL", cfg.BaseURL)
	cfg.Model = envOrDefault("MODEL", cfg.Model)
	cfg.Provider = envOrDefault("PROVIDER", cfg.Provider)
	cfg.SecretsFile = envOrDefault("SECRETS_FILE", cfg.SecretsFile)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Knowledge.Source = Source(envOrDefault("KNOWLEDGE_SOURCE", string(cfg.Knowledge.Source)))
	cfg.Knowledge.Dir = envOrDefault("KNOWLEDGE_DIR", cfg.Knowledge.Dir)
	cfg.Server.Port = envOrDefault("PORT", cfg.Server.Port)
	cfg.Server.AllowOrigin = envOrDefault("ALLOW_ORIGIN", cfg.Server.AllowOrigin)

	var err error
	if cfg.Knowledge.Watch, err = envBoolOrDefault("KNOWLEDGE_WATCH", cfg.Knowledge.Watch); err != nil {
		return err
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SESSION_TTL=%q: %v", ErrInvalid, v, err)
		}
		cfg.Server.SessionTTL = d
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: MAX_UPLOAD_BYTES=%q: %v", ErrInvalid, v, err)
		}
		cfg.Server.MaxUploadBytes = n
	}
	return nil
}

type secrets struct {
	GoogleAPIKey string `toml:"GOOGLE_API_KEY"`
}

// readSecret reads the API key from a TOML secrets file. A missing file is not an error.
func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secrets: %w", err)
	}
	var s secrets
	if err := toml.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("parse secrets %s: %w", path, err)
	}
	return strings.TrimSpace(s.GoogleAPIKey), nil
}

// Validate rejects unknown values and a missing key for the real provider.
func (c Config) Validate() error {
	switch c.Knowledge.Source {
	case SourceInline, SourceUpload, SourceAutoload, SourceDiagnostic:
	default:
		return fmt.Errorf("%w: unknown knowledge source %q", ErrInvalid, c.Knowledge.Source)
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderMock:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalid)
	}
	if c.Knowledge.Watch && c.Knowledge.Source != SourceAutoload {
		return fmt.Errorf("%w: knowledge.watch requires the autoload source", ErrInvalid)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
	}
	return b, nil
}
