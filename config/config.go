package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	MongoURI       string
	MongoDatabase  string
	JWTSecret      string
	LogLevel       string
	LogFormat      string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Load reads configuration from the environment, after loading envFile
// (if it exists) into it. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "config: load %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config: stat %s", envFile)
		}
	}

	v := viper.New()
	v.SetDefault("PORT", "8081")
	v.SetDefault("MONGO_DATABASE", "kpi_tracker")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("REQUEST_TIMEOUT", 10*time.Second)
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDatabase:  v.GetString("MONGO_DATABASE"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
	}

	// Atlas credentials are accepted in place of a full URI
	if cfg.MongoURI == "" {
		username := v.GetString("MONGO_USERNAME")
		password := v.GetString("MONGO_PASSWORD")
		cluster := v.GetString("MONGO_CLUSTER")
		appName := v.GetString("MONGO_APP_NAME")
		if username == "" || password == "" || cluster == "" || appName == "" {
			return nil, errors.New("config: MONGO_URI or MONGO_USERNAME, MONGO_PASSWORD, MONGO_CLUSTER and MONGO_APP_NAME are required")
		}
		cfg.MongoURI = fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority&appName=%s",
			username, password, cluster, appName)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.Errorf("config: MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	return cfg, nil
}
