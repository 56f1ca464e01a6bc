package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Platform (managed backend: auth, tables, realtime)
	PlatformURL        string `yaml:"platform_url"`
	PlatformAnonKey    string
	PlatformServiceKey string

	// Token validation
	ValidatorType string // "userinfo" or "jwks"
	JWKSURL       string

	// Object storage (S3-compatible endpoint of the platform)
	StorageEndpoint  string `yaml:"storage_endpoint"`
	StorageRegion    string `yaml:"storage_region"`
	StorageBucket    string `yaml:"storage_bucket"`
	AvatarBucket     string `yaml:"avatar_bucket"`
	StorageAccessID  string
	StorageAccessKey string

	// Upload limits
	MaxUploadBytes int64
	UploadTmpDir   string

	// Orphan-object sweeper. Empty schedule disables the sweep.
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	CleanupGrace    time.Duration `yaml:"cleanup_grace"`

	// Logging
	LogLevel  string
	LogFormat string

	// Client side (reporter / feed CLIs)
	RelayURL      string `yaml:"relay_url"`
	ClassifierURL string `yaml:"classifier_url"`
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "5000"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		PlatformURL:        getEnvOrDefault("PLATFORM_URL", ""),
		PlatformAnonKey:    getEnvOrDefault("PLATFORM_ANON_KEY", ""),
		PlatformServiceKey: getEnvOrDefault("PLATFORM_SERVICE_KEY", ""),

		ValidatorType: getEnvOrDefault("AUTH_VALIDATOR", "userinfo"),
		JWKSURL:       getEnvOrDefault("AUTH_JWKS_URL", ""),

		StorageEndpoint:  getEnvOrDefault("STORAGE_ENDPOINT", ""),
		StorageRegion:    getEnvOrDefault("STORAGE_REGION", "us-east-1"),
		StorageBucket:    getEnvOrDefault("STORAGE_BUCKET", "uploads"),
		AvatarBucket:     getEnvOrDefault("AVATAR_BUCKET", "avatars"),
		StorageAccessID:  getEnvOrDefault("STORAGE_ACCESS_ID", ""),
		StorageAccessKey: getEnvOrDefault("STORAGE_ACCESS_KEY", ""),

		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 32<<20),
		UploadTmpDir:   getEnvOrDefault("UPLOAD_TMP_DIR", os.TempDir()),

		CleanupSchedule: getEnvOrDefault("CLEANUP_SCHEDULE", ""),
		CleanupGrace:    getEnvAsDuration("CLEANUP_GRACE", 24*time.Hour),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", ""),

		RelayURL:      getEnvOrDefault("RELAY_URL", "http://localhost:5000"),
		ClassifierURL: getEnvOrDefault("CLASSIFIER_URL", ""),
	}

	// Optional settings file. Environment variables above are the primary
	// source; the file only fills values that were left empty.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "")
	if configFilePath != "" {
		configFile, err := os.Open(configFilePath)
		if err != nil {
			log.Fatalf("Failed to open config file: %v", err)
		}
		defer configFile.Close()

		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
}

// RequirePlatform exits if the platform settings a relay needs are missing.
func (c *Config) RequirePlatform() {
	if c.PlatformURL == "" {
		log.Fatal("PLATFORM_URL is required")
	}
	if c.PlatformAnonKey == "" {
		log.Fatal("PLATFORM_ANON_KEY is required")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int64, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile fills empty Config fields from a YAML settings file.
func LoadConfigFile(reader io.Reader, config *Config) error {
	var fileConfig Config

	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(&fileConfig); err != nil && err != io.EOF {
		return err
	}

	if config.PlatformURL == "" {
		config.PlatformURL = fileConfig.PlatformURL
	}
	if config.StorageEndpoint == "" {
		config.StorageEndpoint = fileConfig.StorageEndpoint
	}
	if config.StorageBucket == "uploads" && fileConfig.StorageBucket != "" {
		config.StorageBucket = fileConfig.StorageBucket
	}
	if config.AvatarBucket == "avatars" && fileConfig.AvatarBucket != "" {
		config.AvatarBucket = fileConfig.AvatarBucket
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = fileConfig.CleanupSchedule
	}
	if fileConfig.CleanupGrace != 0 {
		config.CleanupGrace = fileConfig.CleanupGrace
	}
	if config.RelayURL == "http://localhost:5000" && fileConfig.RelayURL != "" {
		config.RelayURL = fileConfig.RelayURL
	}
	if config.ClassifierURL == "" {
		config.ClassifierURL = fileConfig.ClassifierURL
	}

	return nil
}
