package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment variables read by the server.
const EnvPrefix = "TOSS_DOCS_MCP"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Documentation pipeline limits
const (
	MaxDocsConcurrency = 8
	MaxDocsRetries     = 1
	MaxDocsResults     = 50
	MinDocsChunkLen    = 200
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DocsSettings configuration for documentation collection and search
type DocsSettings struct {
	CacheDir     string        `mapstructure:"cache_dir"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	FetchRetries int           `mapstructure:"fetch_retries"`
	Concurrency  int           `mapstructure:"concurrency"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per host, 0 = unlimited
	MaxChunkLen  int           `mapstructure:"max_chunk_len"`
	MaxResults   int           `mapstructure:"max_results"`
	SyncOnStart  bool          `mapstructure:"sync_on_start"`
	SyncSchedule string        `mapstructure:"sync_schedule"` // cron expression, "" = disabled
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`

	SearchCacheSize int           `mapstructure:"search_cache_size"` // 0 = disabled
	SearchCacheTTL  time.Duration `mapstructure:"search_cache_ttl"`
}

// Settings application settings
type Settings struct {
	Transport string       `mapstructure:"transport"`
	Host      string       `mapstructure:"host"`
	Port      int          `mapstructure:"port"`
	Auth      AuthSettings `mapstructure:"auth"`
	Docs      DocsSettings `mapstructure:"docs"`
}

// docsKeys maps docs config keys to their CLI flag names.
var docsKeys = map[string]string{
	"docs.cache_dir":         "docs-cache-dir",
	"docs.fetch_timeout":     "docs-fetch-timeout",
	"docs.fetch_retries":     "docs-fetch-retries",
	"docs.concurrency":       "docs-concurrency",
	"docs.rate_limit":        "docs-rate-limit",
	"docs.max_chunk_len":     "docs-max-chunk-len",
	"docs.max_results":       "docs-max-results",
	"docs.sync_on_start":     "docs-sync-on-start",
	"docs.sync_schedule":     "docs-sync-schedule",
	"docs.lock_timeout":      "docs-lock-timeout",
	"docs.search_cache_size": "docs-search-cache-size",
	"docs.search_cache_ttl":  "docs-search-cache-ttl",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Docs defaults
	v.SetDefault("docs.cache_dir", defaultDocsCacheDir())
	v.SetDefault("docs.fetch_timeout", 30*time.Second)
	v.SetDefault("docs.fetch_retries", 1)
	v.SetDefault("docs.concurrency", MaxDocsConcurrency)
	v.SetDefault("docs.rate_limit", 0.0)
	v.SetDefault("docs.max_chunk_len", 3000)
	v.SetDefault("docs.max_results", 10)
	v.SetDefault("docs.sync_on_start", true)
	v.SetDefault("docs.sync_schedule", "")
	v.SetDefault("docs.lock_timeout", 2*time.Minute)
	v.SetDefault("docs.search_cache_size", 256)
	v.SetDefault("docs.search_cache_ttl", 10*time.Minute)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", EnvPrefix+"_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", EnvPrefix+"_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", EnvPrefix+"_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", EnvPrefix+"_AUTH_API_KEYS")
	for key := range docsKeys {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))

		for key, flag := range docsKeys {
			if f := flags.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(EnvPrefix + "_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.Docs.CacheDir = expandHomeDir(strings.TrimSpace(settings.Docs.CacheDir))
	settings.Docs.SyncSchedule = strings.TrimSpace(settings.Docs.SyncSchedule)

	return &settings, nil
}

// envName returns the environment variable for a config key.
//
// Examples:
//   - docs.cache_dir -> TOSS_DOCS_MCP_DOCS_CACHE_DIR
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// defaultDocsCacheDir returns the default documentation cache directory
func defaultDocsCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".toss-docs-mcp", "cache")
	}
	return filepath.Join(home, ".toss-docs-mcp", "cache")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config,
// or out-of-range docs settings.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	return validateDocsSettings(&s.Docs)
}

// validateDocsSettings validates the documentation pipeline configuration
func validateDocsSettings(d *DocsSettings) error {
	if d.CacheDir == "" {
		return errors.New("docs-cache-dir cannot be empty")
	}

	if d.FetchTimeout <= 0 {
		return errors.New("docs-fetch-timeout must be positive")
	}

	if d.FetchRetries < 0 || d.FetchRetries > MaxDocsRetries {
		return fmt.Errorf("docs-fetch-retries must be between 0 and %d", MaxDocsRetries)
	}

	if d.Concurrency < 1 || d.Concurrency > MaxDocsConcurrency {
		return fmt.Errorf("docs-concurrency must be between 1 and %d", MaxDocsConcurrency)
	}

	if d.RateLimit < 0 {
		return errors.New("docs-rate-limit cannot be negative")
	}

	if d.MaxChunkLen < MinDocsChunkLen {
		return fmt.Errorf("docs-max-chunk-len must be at least %d", MinDocsChunkLen)
	}

	if d.MaxResults < 1 || d.MaxResults > MaxDocsResults {
		return fmt.Errorf("docs-max-results must be between 1 and %d", MaxDocsResults)
	}

	if d.LockTimeout <= 0 {
		return errors.New("docs-lock-timeout must be positive")
	}

	if d.SearchCacheSize < 0 {
		return errors.New("docs-search-cache-size cannot be negative")
	}

	if d.SearchCacheTTL < 0 {
		return errors.New("docs-search-cache-ttl cannot be negative")
	}

	if d.SyncSchedule != "" {
		if _, err := cron.ParseStandard(d.SyncSchedule); err != nil {
			return fmt.Errorf("docs-sync-schedule is not a valid cron expression: %w", err)
		}
	}

	return nil
}
