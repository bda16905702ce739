// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	CORSOrigins string   `mapstructure:"corsorigins"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Enrichment settings
	GeoAPIURL        string        `mapstructure:"geoapiurl"`
	GeoTimeout       time.Duration `mapstructure:"geotimeout"`
	GeoRatePerMinute int           `mapstructure:"georateperminute"`
	DeriveUserAgent  bool          `mapstructure:"deriveuseragent"`

	// Reporting settings
	ActiveWindowMinutes  int `mapstructure:"activewindowminutes"`
	DefaultWindowDays    int `mapstructure:"defaultwindowdays"`
	ReportWorkers        int `mapstructure:"reportworkers"`
	RateLimitPerMinute   int `mapstructure:"ratelimitperminute"`
	MaxEventsPerPage     int `mapstructure:"maxeventsperpage"`
	DefaultEventsPerPage int `mapstructure:"defaulteventsperpage"`

	// Maintenance jobs, zero disables them
	MaintenanceInterval time.Duration `mapstructure:"maintenanceinterval"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		c, err := Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	})
	return cfg
}

// Load reads .env (when present) and the environment into a fresh Config.
func Load() (*Config, error) {
	// A missing .env is fine, the process environment still applies.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("appname", "trackly")
	v.SetDefault("appport", "3000")
	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelDebug))
	v.SetDefault("corsorigins", "*")
	v.SetDefault("storagepath", "storage")
	v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
	v.SetDefault("logsdir", "logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("geoapiurl", "http://ip-api.com/json/")
	v.SetDefault("geotimeout", "5s")
	v.SetDefault("georateperminute", 45)
	v.SetDefault("deriveuseragent", true)
	v.SetDefault("activewindowminutes", 30)
	v.SetDefault("defaultwindowdays", 30)
	v.SetDefault("reportworkers", 4)
	v.SetDefault("ratelimitperminute", 600)
	v.SetDefault("maxeventsperpage", 100)
	v.SetDefault("defaulteventsperpage", 50)
	v.SetDefault("maintenanceinterval", "1h")

	v.BindEnv("appname", "TRACKLY_APP_NAME")
	v.BindEnv("appport", "TRACKLY_APP_PORT")
	v.BindEnv("environment", "TRACKLY_ENV")
	v.BindEnv("loglevel", "TRACKLY_LOG_LEVEL")
	v.BindEnv("corsorigins", "TRACKLY_CORS_ORIGINS")
	v.BindEnv("storagepath", "TRACKLY_STORAGE_PATH")
	v.BindEnv("geodbpath", "TRACKLY_GEO_DB_PATH")
	v.BindEnv("logsdir", "TRACKLY_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "TRACKLY_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "TRACKLY_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "TRACKLY_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("dbmaxopenconns", "TRACKLY_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "TRACKLY_DB_MAX_IDLE_CONNS")
	v.BindEnv("geoapiurl", "TRACKLY_GEO_API_URL")
	v.BindEnv("geotimeout", "TRACKLY_GEO_TIMEOUT")
	v.BindEnv("georateperminute", "TRACKLY_GEO_RATE_PER_MINUTE")
	v.BindEnv("deriveuseragent", "TRACKLY_DERIVE_USER_AGENT")
	v.BindEnv("activewindowminutes", "TRACKLY_ACTIVE_WINDOW_MINUTES")
	v.BindEnv("defaultwindowdays", "TRACKLY_DEFAULT_WINDOW_DAYS")
	v.BindEnv("reportworkers", "TRACKLY_REPORT_WORKERS")
	v.BindEnv("ratelimitperminute", "TRACKLY_RATE_LIMIT_PER_MINUTE")
	v.BindEnv("maxeventsperpage", "TRACKLY_MAX_EVENTS_PER_PAGE")
	v.BindEnv("defaulteventsperpage", "TRACKLY_DEFAULT_EVENTS_PER_PAGE")
	v.BindEnv("maintenanceinterval", "TRACKLY_MAINTENANCE_INTERVAL")

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c.DatabaseName = c.GetDatabasePath()
	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if c.GeoTimeout <= 0 {
		return fmt.Errorf("geo timeout must be positive, got %s", c.GeoTimeout)
	}
	if c.DefaultWindowDays < 1 || c.DefaultWindowDays > 365 {
		return fmt.Errorf("default window days must be between 1 and 365, got %d", c.DefaultWindowDays)
	}
	if c.ReportWorkers < 1 {
		return fmt.Errorf("report workers must be at least 1, got %d", c.ReportWorkers)
	}
	if c.DefaultEventsPerPage < 1 || c.DefaultEventsPerPage > c.MaxEventsPerPage {
		return fmt.Errorf("default events per page must be between 1 and %d", c.MaxEventsPerPage)
	}
	if c.MaintenanceInterval < 0 {
		return fmt.Errorf("maintenance interval must not be negative, got %s", c.MaintenanceInterval)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory implements cartridge.Config. The collector serves no
// static assets, so it is always empty.
func (c *Config) GetPublicDirectory() string {
	return ""
}

// GetAssetsPrefix implements cartridge.Config; see GetPublicDirectory.
func (c *Config) GetAssetsPrefix() string {
	return ""
}

// GetAppName returns the application name, used for log and database file names.
func (c *Config) GetAppName() string {
	return c.AppName
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// AllowedOrigins returns the CORS origins as a comma separated list without spaces.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return "*"
	}
	return strings.Join(cleaned, ",")
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel report queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
