package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TRAD"

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	Inference   InferenceConfig
	Translation TranslationConfig
	Auth        AuthConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type DeploymentConfig struct {
	URL   string
	Model string
}

type InferenceConfig struct {
	Native          DeploymentConfig
	General         DeploymentConfig
	Timeout         time.Duration
	BreakerFailures int
}

type TranslationConfig struct {
	HubLang     string
	MaxWords    int
	RequireAuth bool
	// Timeout bounds one translate request across every pivot hop.
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Load builds the configuration from defaults, the YAML config file and
// TRAD_* environment variables, in increasing precedence. An empty path
// selects DefaultConfigFile; a missing file is not an error.
//
// The JWT secret is never read from the file. When the environment does not
// set it, the platform secret store is consulted (macOS Keychain, service
// "trad", account "jwt_secret"; elsewhere $XDG_DATA_HOME/trad/secrets.json).
func Load(path string) (Config, error) {
	return loadWith(path, keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(path string, kc keychain) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	for _, s := range specs {
		if s.secret {
			// Secrets come from the environment only.
			s.apply(&cfg, nil, os.Getenv(s.env))
			continue
		}
		s.apply(&cfg, v, "")
	}

	if cfg.Auth.JWTSecret == "" {
		if secret, err := kc.Get("trad", "jwt_secret"); err == nil {
			cfg.Auth.JWTSecret = strings.TrimSpace(secret)
		}
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, s := range specs {
		if !s.secret {
			v.SetDefault(s.key, s.def)
		}
	}

	if path == "" {
		path = DefaultConfigFile()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Validate reports missing or out-of-range settings the server cannot run without.
func (c Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "missing required config: JWT secret. Set it via environment variable TRAD_AUTH_JWT_SECRET"+secretHint())
	}
	if c.Translation.HubLang == "" {
		problems = append(problems, "translation.hub_lang must not be empty")
	}
	if c.Translation.MaxWords < 0 {
		problems = append(problems, "translation.max_words must not be negative")
	}
	if c.Inference.Timeout <= 0 {
		problems = append(problems, "inference.timeout must be positive")
	}
	if c.Translation.Timeout <= 0 {
		problems = append(problems, "translation.timeout must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DefaultConfigFile is $XDG_CONFIG_HOME/trad/config.yaml, falling back to
// ~/.config/trad/config.yaml.
func DefaultConfigFile() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "trad", "config.yaml")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	return keychainLookup(service, account)
}
