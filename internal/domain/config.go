package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Model       ModelConfig       `mapstructure:"model"`
	Staffing    StaffingConfig    `mapstructure:"staffing"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Followup    FollowupConfig    `mapstructure:"followup"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig represents database connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ModelConfig points at the serialized classifier artifacts, one per
// condition. Empty paths mean the model path is disabled and the heuristic
// serves all requests for that condition.
type ModelConfig struct {
	DiabetesPath     string `mapstructure:"diabetes_path"`
	HeartFailurePath string `mapstructure:"heart_failure_path"`
}

// StaffingConfig holds the policy constants of the staffing simulator.
// Rates and multipliers are deployment configuration, fixed at startup.
type StaffingConfig struct {
	ReadmissionRates  TierRates `mapstructure:"readmission_rates"`
	TierMultipliers   TierRates `mapstructure:"tier_multipliers"`
	BaseNurseHours    float64   `mapstructure:"base_nurse_hours"`
	BaseBeds          float64   `mapstructure:"base_beds"`
	HighRiskPerDoctor int       `mapstructure:"high_risk_per_doctor"`
}

// TierRates is a per-tier set of policy constants.
type TierRates struct {
	High   float64 `mapstructure:"high"`
	Medium float64 `mapstructure:"medium"`
	Low    float64 `mapstructure:"low"`
}

// ForTier returns the rate for a tier.
func (r TierRates) ForTier(t RiskTier) float64 {
	switch t {
	case TierHigh:
		return r.High
	case TierMedium:
		return r.Medium
	case TierLow:
		return r.Low
	default:
		return 0
	}
}

// ExternalAPIConfig represents external data source configuration.
type ExternalAPIConfig struct {
	AirQuality AirQualityConfig `mapstructure:"air_quality"`
	Events     EventsConfig     `mapstructure:"events"`
}

// AirQualityConfig represents the air-quality API configuration.
type AirQualityConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// EventsConfig represents the community-events API configuration.
type EventsConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents cache configuration for external data.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	Enabled     bool          `mapstructure:"enabled"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MemoryItems int           `mapstructure:"memory_items"`
}

// FollowupConfig selects the follow-up record store backend.
type FollowupConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
