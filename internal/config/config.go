package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Security      SecurityConfig      `json:"security"`
	Storage       StorageConfig       `json:"storage"`
	Notifications NotificationsConfig `json:"notifications"`
	Reports       ReportsConfig       `json:"reports"`
	RemoteSensing RemoteSensingConfig `json:"remote_sensing"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// SecurityConfig holds the shared secret used by the auth provider to sign access tokens
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

// StorageConfig configures report storage
type StorageConfig struct {
	Driver          string        `json:"driver"` // s3 or memory
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	UsePathStyle    bool          `json:"use_path_style"`
	PresignExpiry   time.Duration `json:"presign_expiry"`
}

// NotificationsConfig configures farmer notifications
type NotificationsConfig struct {
	EmailEnabled       bool   `json:"email_enabled"`
	FromAddress        string `json:"from_address"`
	SMSEnabled         bool   `json:"sms_enabled"`
	DefaultCountryCode string `json:"default_country_code"`
	Region             string `json:"region"`
}

// ReportsConfig configures scheduled exports and dashboard caching
type ReportsConfig struct {
	ScheduleEnabled bool          `json:"schedule_enabled"`
	ScheduleCron    string        `json:"schedule_cron"`
	Timezone        string        `json:"timezone"`
	DashboardTTL    time.Duration `json:"dashboard_ttl"`
}

// RemoteSensingConfig configures the remote-sensing provider
type RemoteSensingConfig struct {
	Provider string        `json:"provider"` // mock or none
	Latency  time.Duration `json:"latency"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the configuration used when no file or environment overrides exist
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbonmrv",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Storage: StorageConfig{
			Driver:        "memory",
			Bucket:        "carbonmrv-reports",
			Region:        "us-east-1",
			PresignExpiry: 15 * time.Minute,
		},
		Notifications: NotificationsConfig{
			FromAddress:        "no-reply@carbonmrv.local",
			DefaultCountryCode: "+91",
			Region:             "us-east-1",
		},
		Reports: ReportsConfig{
			ScheduleCron: "0 6 * * 1",
			Timezone:     "UTC",
			DashboardTTL: 5 * time.Minute,
		},
		RemoteSensing: RemoteSensingConfig{
			Provider: "mock",
			Latency:  time.Second,
			CacheTTL: 6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a .env file, a JSON file and environment variables,
// in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")
	setBool(&config.Database.AutoMigrate, "DATABASE_AUTO_MIGRATE")

	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setString(&config.Security.JWTIssuer, "JWT_ISSUER")

	setString(&config.Storage.Driver, "STORAGE_DRIVER")
	setString(&config.Storage.Bucket, "STORAGE_BUCKET")
	setString(&config.Storage.Region, "AWS_REGION")
	setString(&config.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&config.Storage.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	setBool(&config.Notifications.EmailEnabled, "NOTIFICATIONS_EMAIL_ENABLED")
	setString(&config.Notifications.FromAddress, "NOTIFICATIONS_FROM_ADDRESS")
	setBool(&config.Notifications.SMSEnabled, "NOTIFICATIONS_SMS_ENABLED")
	setString(&config.Notifications.DefaultCountryCode, "NOTIFICATIONS_DEFAULT_COUNTRY_CODE")

	setBool(&config.Reports.ScheduleEnabled, "REPORTS_SCHEDULE_ENABLED")
	setString(&config.Reports.ScheduleCron, "REPORTS_SCHEDULE_CRON")

	setString(&config.RemoteSensing.Provider, "REMOTE_SENSING_PROVIDER")

	setString(&config.Logging.Level, "LOG_LEVEL")
	setBool(&config.Logging.Development, "LOG_DEVELOPMENT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks settings that would otherwise fail at request time
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret (JWT_SECRET) is required")
	}
	switch c.Storage.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required for the s3 driver")
	}
	switch c.RemoteSensing.Provider {
	case "mock", "none":
	default:
		return fmt.Errorf("unsupported remote sensing provider: %s", c.RemoteSensing.Provider)
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
