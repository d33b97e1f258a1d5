package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the environment-sourced settings the engine needs at startup.
// Secrets and connection endpoints come from the environment (.env in
// development); behavioural tuning lives in EngineConfig.
type Config struct {
	MongoUsername string
	MongoPassword string
	MongoCluster  string
	MongoAppName  string
	MongoDatabase string
	JWTSecret     string
	Port          string
	Mode          string
	RedisAddr     string
	NotifierURL   string
	PredictorURL  string
}

// FromEnv reads the process environment. Mongo credentials and the JWT
// secret are mandatory; everything else has a default or is optional.
func FromEnv() (*Config, error) {
	cfg := &Config{
		MongoUsername: os.Getenv("MONGO_USERNAME"),
		MongoPassword: os.Getenv("MONGO_PASSWORD"),
		MongoCluster:  os.Getenv("MONGO_CLUSTER"),
		MongoAppName:  os.Getenv("MONGO_APP_NAME"),
		MongoDatabase: os.Getenv("MONGO_DATABASE"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Port:          os.Getenv("PORT"),
		Mode:          os.Getenv("APP_MODE"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NotifierURL:   os.Getenv("ALERT_WEBHOOK_URL"),
		PredictorURL:  os.Getenv("RISK_PREDICTOR_URL"),
	}

	if cfg.MongoUsername == "" || cfg.MongoPassword == "" || cfg.MongoCluster == "" || cfg.MongoAppName == "" {
		return nil, fmt.Errorf("missing required MONGO_* environment variables")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "kpi_engine"
	}
	if cfg.Port == "" {
		cfg.Port = "8081"
	}
	return cfg, nil
}

// MongoURI builds the Atlas connection string the same way across binaries.
func (c *Config) MongoURI() string {
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority&appName=%s",
		c.MongoUsername, c.MongoPassword, c.MongoCluster, c.MongoAppName)
}

// EngineConfig tunes classification, alerting and ingestion behaviour.
type EngineConfig struct {
	// RiskMargin widens the on-track band before a KPI is called behind.
	RiskMargin float64
	// RejectionRateThreshold downgrades on_track to at_risk once the share
	// of rejected resolutions exceeds it.
	RejectionRateThreshold float64
	// AlertCooldown bounds repeat alerts for the same (type, subject).
	AlertCooldown time.Duration
	// DeadlineWindowDays is how far ahead deadline alerts start firing.
	DeadlineWindowDays int
	// IngestParallelism bounds concurrent row validation during bulk ingest.
	IngestParallelism int
}

func DefaultEngine() EngineConfig {
	return EngineConfig{
		RiskMargin:             0.1,
		RejectionRateThreshold: 0.5,
		AlertCooldown:          24 * time.Hour,
		DeadlineWindowDays:     7,
		IngestParallelism:      4,
	}
}

// engineFile mirrors EngineConfig for yaml decoding; the cooldown is a
// duration string ("1h", "30m").
type engineFile struct {
	RiskMargin             float64 `yaml:"risk_margin"`
	RejectionRateThreshold float64 `yaml:"rejection_rate_threshold"`
	AlertCooldown          string  `yaml:"alert_cooldown"`
	DeadlineWindowDays     int     `yaml:"deadline_window_days"`
	IngestParallelism      int     `yaml:"ingest_parallelism"`
}

// LoadEngine reads engine.yaml when present, falling back to defaults for
// the file and for any field left unset in it.
func LoadEngine(path string) (EngineConfig, error) {
	cfg := DefaultEngine()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	var file engineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse engine config: %w", err)
	}
	cfg.RiskMargin = file.RiskMargin
	cfg.RejectionRateThreshold = file.RejectionRateThreshold
	cfg.DeadlineWindowDays = file.DeadlineWindowDays
	cfg.IngestParallelism = file.IngestParallelism
	if file.AlertCooldown != "" {
		cooldown, err := time.ParseDuration(file.AlertCooldown)
		if err != nil {
			return cfg, fmt.Errorf("parse alert_cooldown: %w", err)
		}
		cfg.AlertCooldown = cooldown
	} else {
		cfg.AlertCooldown = 0
	}
	if cfg.RiskMargin <= 0 {
		cfg.RiskMargin = DefaultEngine().RiskMargin
	}
	if cfg.RejectionRateThreshold <= 0 {
		cfg.RejectionRateThreshold = DefaultEngine().RejectionRateThreshold
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = DefaultEngine().AlertCooldown
	}
	if cfg.DeadlineWindowDays <= 0 {
		cfg.DeadlineWindowDays = DefaultEngine().DeadlineWindowDays
	}
	if cfg.IngestParallelism <= 0 {
		cfg.IngestParallelism = DefaultEngine().IngestParallelism
	}
	return cfg, nil
}
