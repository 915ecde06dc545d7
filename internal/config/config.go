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
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// Object store (S3-compatible).
	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageAccessKey string `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `mapstructure:"STORAGE_SECRET_KEY"`
	StorageBucket    string `mapstructure:"STORAGE_BUCKET"`
	StorageUseSSL    bool   `mapstructure:"STORAGE_USE_SSL"`

	// Image moderation (AWS Rekognition).
	AWSRegion                string `mapstructure:"AWS_REGION"`
	RekognitionAccessKey     string `mapstructure:"REKOGNITION_ACCESS_KEY"`
	RekognitionSecret        string `mapstructure:"REKOGNITION_SECRET"`
	RekognitionMinConfidence int    `mapstructure:"REKOG_MIN_CONFIDENCE"`

	// Text toxicity scoring (Perspective API).
	PerspectiveAPIKey string `mapstructure:"PERSPECTIVE_API_KEY"`
	PerspectiveAPIURL string `mapstructure:"PERSPECTIVE_API_URL"`

	// ToxicityThreshold is the score above which text is rejected.
	ToxicityThreshold float64 `mapstructure:"TOXICITY_THRESHOLD"`

	// ModerationTimeoutSeconds bounds each outbound moderation call.
	ModerationTimeoutSeconds int `mapstructure:"MODERATION_TIMEOUT_SECONDS"`

	// Upload size limits.
	MaxAudioUploadMB int `mapstructure:"MAX_AUDIO_UPLOAD_MB"`
	MaxImageUploadMB int `mapstructure:"MAX_IMAGE_UPLOAD_MB"`

	// Development root admin bootstrap. Admin-only moderation routes are
	// unreachable on a fresh database without it.
	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername  string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
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

	// Set default values for development
	viper.SetDefault("PORT", "8340")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "image_moderation=on,text_moderation=on")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "modmixx")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	viper.SetDefault("STORAGE_ACCESS_KEY", "minioadmin")
	viper.SetDefault("STORAGE_SECRET_KEY", "minioadmin")
	viper.SetDefault("STORAGE_BUCKET", "modmixx-media")
	viper.SetDefault("STORAGE_USE_SSL", false)

	viper.SetDefault("AWS_REGION", "eu-west-1")
	viper.SetDefault("REKOG_MIN_CONFIDENCE", 80)
	viper.SetDefault("PERSPECTIVE_API_URL", "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze")
	viper.SetDefault("TOXICITY_THRESHOLD", 0.7)
	viper.SetDefault("MODERATION_TIMEOUT_SECONDS", 10)

	viper.SetDefault("MAX_AUDIO_UPLOAD_MB", 100)
	viper.SetDefault("MAX_IMAGE_UPLOAD_MB", 10)

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
	if c.RekognitionMinConfidence < 0 || c.RekognitionMinConfidence > 100 {
		return errors.New("REKOG_MIN_CONFIDENCE must be between 0 and 100")
	}
	if c.ToxicityThreshold < 0 || c.ToxicityThreshold > 1 {
		return errors.New("TOXICITY_THRESHOLD must be between 0.0 and 1.0")
	}
	if c.MaxAudioUploadMB <= 0 || c.MaxImageUploadMB <= 0 {
		return errors.New("upload size limits must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.PerspectiveAPIKey == "" {
			log.Println("WARNING: PERSPECTIVE_API_KEY is empty in production. Text toxicity checks will fail open.")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}

// ModerationTimeout returns the outbound moderation call timeout in seconds,
// falling back to 10 when unset.
func (c *Config) ModerationTimeout() int {
	if c.ModerationTimeoutSeconds <= 0 {
		return 10
	}
	return c.ModerationTimeoutSeconds
}
