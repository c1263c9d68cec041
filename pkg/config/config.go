package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Model      ModelConfig
	Prediction PredictionConfig
	Activity   ActivityConfig
	RiskReport RiskReportConfig
	Export     ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModelConfig locates the exported classifier artifacts loaded at startup.
type ModelConfig struct {
	Dir             string
	ClassifierFile  string
	ScalerFile      string
	MetadataFile    string
	FeatureListFile string
}

// PredictionConfig governs the prediction pipeline endpoints and caching.
type PredictionConfig struct {
	Enabled        bool
	CacheTTL       time.Duration
	BatchLimit     int
	WorkerCount    int
	QueueBufferLen int
}

// ActivityConfig toggles the LMS activity tracking middleware.
type ActivityConfig struct {
	Enabled bool
}

// RiskReportConfig governs at-risk roster listing and exports.
type RiskReportConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// ExportConfig locates the on-disk archive for generated reports.
type ExportConfig struct {
	ArchiveDir string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Model = ModelConfig{
		Dir:             v.GetString("MODEL_DIR"),
		ClassifierFile:  v.GetString("MODEL_CLASSIFIER_FILE"),
		ScalerFile:      v.GetString("MODEL_SCALER_FILE"),
		MetadataFile:    v.GetString("MODEL_METADATA_FILE"),
		FeatureListFile: v.GetString("MODEL_FEATURE_LIST_FILE"),
	}

	cfg.Prediction = PredictionConfig{
		Enabled:        v.GetBool("ENABLE_PREDICTIONS"),
		CacheTTL:       parseDuration(v.GetString("PREDICTION_CACHE_TTL"), 10*time.Minute),
		BatchLimit:     v.GetInt("PREDICTION_BATCH_LIMIT"),
		WorkerCount:    v.GetInt("PREDICTION_WORKER_COUNT"),
		QueueBufferLen: v.GetInt("PREDICTION_QUEUE_BUFFER"),
	}

	cfg.Activity = ActivityConfig{
		Enabled: v.GetBool("ENABLE_ACTIVITY_TRACKING"),
	}

	cfg.RiskReport = RiskReportConfig{
		Enabled:  v.GetBool("ENABLE_RISK_REPORTS"),
		CacheTTL: parseDuration(v.GetString("RISK_REPORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Export = ExportConfig{ArchiveDir: v.GetString("EXPORT_ARCHIVE_DIR")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edupredict")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MODEL_DIR", "./ml_models")
	v.SetDefault("MODEL_CLASSIFIER_FILE", "grade_predictor.json")
	v.SetDefault("MODEL_SCALER_FILE", "scaler.json")
	v.SetDefault("MODEL_METADATA_FILE", "model_metadata.json")
	v.SetDefault("MODEL_FEATURE_LIST_FILE", "feature_list.json")

	v.SetDefault("ENABLE_PREDICTIONS", true)
	v.SetDefault("PREDICTION_CACHE_TTL", "10m")
	v.SetDefault("PREDICTION_BATCH_LIMIT", 200)
	v.SetDefault("PREDICTION_WORKER_COUNT", 1)
	v.SetDefault("PREDICTION_QUEUE_BUFFER", 8)

	v.SetDefault("ENABLE_ACTIVITY_TRACKING", true)

	v.SetDefault("ENABLE_RISK_REPORTS", true)
	v.SetDefault("RISK_REPORT_CACHE_TTL", "5m")

	v.SetDefault("EXPORT_ARCHIVE_DIR", "./exports")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
