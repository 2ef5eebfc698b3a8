// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	Port              string `mapstructure:"PORT"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	StoreBackend      string `mapstructure:"STORE_BACKEND"`
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
	Env               string `mapstructure:"APP_ENV"`
	UploadMaxMB       int    `mapstructure:"UPLOAD_MAX_MB"`
	UploadTimeoutSecs int    `mapstructure:"UPLOAD_TIMEOUT_SECS"`
	SeedDemoData      bool   `mapstructure:"SEED_DEMO_DATA"`
	DevBootstrapRoot  bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername   string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail      string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword   string `mapstructure:"DEV_ROOT_PASSWORD"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file may not exist; defaults and env cover that.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8390")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("STORE_BACKEND", "redis")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("UPLOAD_MAX_MB", 10)
	viper.SetDefault("UPLOAD_TIMEOUT_SECS", 30)
	viper.SetDefault("SEED_DEMO_DATA", false)
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.StoreBackend != "redis" && c.StoreBackend != "memory" {
		return fmt.Errorf("STORE_BACKEND must be 'redis' or 'memory', got %q", c.StoreBackend)
	}
	if c.UploadMaxMB <= 0 {
		return errors.New("UPLOAD_MAX_MB must be positive")
	}
	if c.UploadTimeoutSecs <= 0 {
		return errors.New("UPLOAD_TIMEOUT_SECS must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.StoreBackend == "memory" {
			return errors.New("STORE_BACKEND 'memory' is not persistent and cannot be used in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
