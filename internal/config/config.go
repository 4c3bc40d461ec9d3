package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/readmit-risk-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/readmit-risk-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("READMIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.tls_enabled", false)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "readmit_risk")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Model artifact defaults: empty path disables the model path for a
	// condition and the heuristic serves it.
	viper.SetDefault("model.diabetes_path", "")
	viper.SetDefault("model.heart_failure_path", "")

	// Staffing policy defaults
	viper.SetDefault("staffing.readmission_rates.high", 0.70)
	viper.SetDefault("staffing.readmission_rates.medium", 0.45)
	viper.SetDefault("staffing.readmission_rates.low", 0.15)
	viper.SetDefault("staffing.tier_multipliers.high", 2.0)
	viper.SetDefault("staffing.tier_multipliers.medium", 1.5)
	viper.SetDefault("staffing.tier_multipliers.low", 1.0)
	viper.SetDefault("staffing.base_nurse_hours", 2.0)
	viper.SetDefault("staffing.base_beds", 1.0)
	viper.SetDefault("staffing.high_risk_per_doctor", 5)

	// External API defaults
	viper.SetDefault("external_api.air_quality.base_url", "https://api.airquality.example.com")
	viper.SetDefault("external_api.air_quality.timeout", "10s")
	viper.SetDefault("external_api.air_quality.rate_limit", 5)
	viper.SetDefault("external_api.air_quality.retry_count", 3)

	viper.SetDefault("external_api.events.base_url", "https://api.cityevents.example.com")
	viper.SetDefault("external_api.events.timeout", "10s")
	viper.SetDefault("external_api.events.rate_limit", 5)
	viper.SetDefault("external_api.events.retry_count", 3)

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.default_ttl", "15m")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.memory_items", 256)

	// Follow-up store defaults
	viper.SetDefault("followup.backend", "sqlite")
	viper.SetDefault("followup.sqlite_path", "data/followups.db")
	viper.SetDefault("followup.postgres_url", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetStaffingConfig returns staffing policy configuration
func (m *Manager) GetStaffingConfig() *domain.StaffingConfig {
	return &m.config.Staffing
}

// GetExternalAPIConfig returns external API configuration
func (m *Manager) GetExternalAPIConfig() *domain.ExternalAPIConfig {
	return &m.config.ExternalAPI
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// An empty database host means assessment history is disabled; the
	// remaining database fields only matter when one is set.
	if config.Database.Host != "" {
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if err := validateTierRates("staffing.tier_multipliers", config.Staffing.TierMultipliers); err != nil {
		return err
	}
	if config.Staffing.ReadmissionRates.High < 0 || config.Staffing.ReadmissionRates.High > 1 ||
		config.Staffing.ReadmissionRates.Medium < 0 || config.Staffing.ReadmissionRates.Medium > 1 ||
		config.Staffing.ReadmissionRates.Low < 0 || config.Staffing.ReadmissionRates.Low > 1 {
		return fmt.Errorf("readmission rates must be within [0, 1]")
	}
	if config.Staffing.BaseNurseHours <= 0 {
		return fmt.Errorf("base nurse hours must be positive")
	}
	if config.Staffing.BaseBeds <= 0 {
		return fmt.Errorf("base beds must be positive")
	}
	if config.Staffing.HighRiskPerDoctor <= 0 {
		return fmt.Errorf("high-risk patients per doctor must be positive")
	}

	if config.Followup.Backend != "sqlite" && config.Followup.Backend != "postgres" {
		return fmt.Errorf("invalid followup backend: %s", config.Followup.Backend)
	}
	if config.Followup.Backend == "postgres" && config.Followup.PostgresURL == "" {
		return fmt.Errorf("followup postgres URL is required for the postgres backend")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

func validateTierRates(name string, rates domain.TierRates) error {
	if rates.High <= 0 || rates.Medium <= 0 || rates.Low <= 0 {
		return fmt.Errorf("%s must all be positive", name)
	}
	if rates.High < rates.Medium || rates.Medium < rates.Low {
		return fmt.Errorf("%s must be non-increasing from High to Low", name)
	}
	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection string in URL form.
// Consumers that route drivers by scheme, like the migration runner,
// need this rather than the key=value DSN.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	user := url.User(db.Username)
	if db.Password != "" {
		user = url.UserPassword(db.Username, db.Password)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Database,
		RawQuery: "sslmode=" + url.QueryEscape(db.SSLMode),
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
