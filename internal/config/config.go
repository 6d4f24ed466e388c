package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Booking  BookingConfig  `mapstructure:"booking"`
	KPI      KPIConfig      `mapstructure:"kpi"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type RedisConfig struct {
	// Empty URL disables the advisory slot lock; the partial unique
	// index still guarantees slot exclusivity.
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type BookingConfig struct {
	// Holidays are civil dates (YYYY-MM-DD) excluded from the
	// availability window. Weekends are bookable.
	Holidays []string `mapstructure:"holidays"`
	// FailOpen keeps the booking form usable when the occupancy read
	// fails: no slots are flagged occupied. Set false to fail closed.
	FailOpen bool `mapstructure:"fail_open"`
}

type KPIConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user" envconfig:"SMTP_USER"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from"`
	// Enabled gates confirmation emails; bookings never fail on email.
	Enabled bool `mapstructure:"enabled"`
}

// Secrets overlays sensitive values from the environment on top of the
// file-based config, so config.yaml can be committed without them.
type Secrets struct {
	DBPassword   string `envconfig:"DB_PASSWORD"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.migrations_dir", "migrations")
	viper.SetDefault("redis.lock_ttl", 5*time.Second)
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("booking.fail_open", true)
	viper.SetDefault("kpi.refresh_interval", 30*time.Second)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	if secrets.DBPassword != "" {
		config.Database.Password = secrets.DBPassword
	}
	if secrets.JWTSecret != "" {
		config.JWT.Secret = secrets.JWTSecret
	}
	if secrets.SMTPUser != "" {
		config.SMTP.User = secrets.SMTPUser
	}
	if secrets.SMTPPassword != "" {
		config.SMTP.Password = secrets.SMTPPassword
	}

	return &config, nil
}
