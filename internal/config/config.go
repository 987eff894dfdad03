package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Config holds all stockroom configuration.
type Config struct {
	// Dir is the data directory (sqlite file, event log, web secret).
	Dir string `yaml:"dir"`

	Store     StoreConfig     `yaml:"store"`
	Inventory InventoryConfig `yaml:"inventory"`
	View      ViewConfig      `yaml:"view"`
	Auth      AuthConfig      `yaml:"auth"`
	Web       WebConfig       `yaml:"web"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects and configures the item document store.
type StoreConfig struct {
	Driver      string   `yaml:"driver"` // sqlite, postgres, s3, memory
	Collection  string   `yaml:"collection"`
	PostgresDSN string   `yaml:"postgres_dsn"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, for MinIO and friends
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type InventoryConfig struct {
	// RenameCollision decides what a rename onto an existing name does:
	// overwrite, merge, or reject.
	RenameCollision string `yaml:"rename_collision"`
}

type ViewConfig struct {
	Locale string `yaml:"locale"` // BCP 47 tag used for name collation
}

// AuthConfig configures the auth gate.
type AuthConfig struct {
	Mode        string      `yaml:"mode"` // none, dev, oauth
	SettleDelay string      `yaml:"settle_delay"`
	SessionTTL  string      `yaml:"session_ttl"`
	Users       []UserEntry `yaml:"users"`
	OAuth       OAuthConfig `yaml:"oauth"`
}

type UserEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	// AuthURL and TokenURL default to Google's endpoints when empty.
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	UserInfoURL string `yaml:"userinfo_url"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty = stderr
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:     "sqlite",
			Collection: "inventory",
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "stockroom",
			},
		},
		Inventory: InventoryConfig{
			RenameCollision: "overwrite",
		},
		View: ViewConfig{
			Locale: "en",
		},
		Auth: AuthConfig{
			Mode:        "none",
			SettleDelay: "50ms",
			SessionTTL:  "720h",
			OAuth: OAuthConfig{
				Scopes:      []string{"openid", "email", "profile"},
				UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			},
		},
		Web: WebConfig{
			Addr: "127.0.0.1:3340",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ConfigDir returns ~/.stockroom unless STOCKROOM_CONFIG_DIR overrides it.
func ConfigDir() (string, error) {
	// Keeps unit tests from touching the real home directory.
	if v := strings.TrimSpace(os.Getenv("STOCKROOM_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stockroom"), nil
}

func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if strings.TrimSpace(cfg.Dir) == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.Dir = filepath.Join(dir, "data")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STOCKROOM_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("STOCKROOM_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("STOCKROOM_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("STOCKROOM_S3_BUCKET"); v != "" {
		c.Store.S3.Bucket = v
	}
	if v := os.Getenv("STOCKROOM_S3_REGION"); v != "" {
		c.Store.S3.Region = v
	}
	if v := os.Getenv("STOCKROOM_S3_ENDPOINT"); v != "" {
		c.Store.S3.Endpoint = v
	}
	if v := os.Getenv("STOCKROOM_S3_PATH_STYLE"); v != "" {
		c.Store.S3.PathStyle = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("STOCKROOM_AUTH"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("STOCKROOM_OAUTH_CLIENT_ID"); v != "" {
		c.Auth.OAuth.ClientID = v
	}
	if v := os.Getenv("STOCKROOM_OAUTH_CLIENT_SECRET"); v != "" {
		c.Auth.OAuth.ClientSecret = v
	}
	if v := os.Getenv("STOCKROOM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOCKROOM_ADDR"); v != "" {
		c.Web.Addr = v
	}
}

// Validate normalizes enum-like fields and rejects unknown values.
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "sqlite", "postgres", "s3", "memory":
	default:
		return fmt.Errorf("config: invalid store.driver %q (expected sqlite|postgres|s3|memory)", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.Collection) == "" {
		c.Store.Collection = "inventory"
	}

	c.Inventory.RenameCollision = strings.ToLower(strings.TrimSpace(c.Inventory.RenameCollision))
	switch c.Inventory.RenameCollision {
	case "":
		c.Inventory.RenameCollision = "overwrite"
	case "overwrite", "merge", "reject":
	default:
		return fmt.Errorf("config: invalid inventory.rename_collision %q (expected overwrite|merge|reject)", c.Inventory.RenameCollision)
	}

	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case "":
		c.Auth.Mode = "none"
	case "none", "dev", "oauth":
	default:
		return fmt.Errorf("config: invalid auth.mode %q (expected none|dev|oauth)", c.Auth.Mode)
	}
	if _, err := c.Auth.SettleDelayDuration(); err != nil {
		return err
	}
	if _, err := c.Auth.SessionTTLDuration(); err != nil {
		return err
	}
	return nil
}

func (a AuthConfig) SettleDelayDuration() (time.Duration, error) {
	return parseDuration("auth.settle_delay", a.SettleDelay, 50*time.Millisecond)
}

func (a AuthConfig) SessionTTLDuration() (time.Duration, error) {
	return parseDuration("auth.session_ttl", a.SessionTTL, 30*24*time.Hour)
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return d, nil
}
