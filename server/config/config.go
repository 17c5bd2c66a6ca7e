package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Pose     PoseConfig     `json:"pose"`
	Coach    CoachConfig    `json:"coach"`
	Analysis AnalysisConfig `json:"analysis"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

// PoseConfig points at the pose-estimation service that turns video
// into landmark streams.
type PoseConfig struct {
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

// CoachConfig points at the vision-language coaching service.
type CoachConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// AnalysisConfig holds the shot-detection thresholds. The defaults are
// tuned for roughly 30fps video of a single shooter.
type AnalysisConfig struct {
	ReleaseAngle    float64 `json:"release_angle"`
	LookBackFrames  int     `json:"look_back_frames"`
	CooldownFrames  int     `json:"cooldown_frames"`
	StabilityFrames int     `json:"stability_frames"`
	MinVisibility   float64 `json:"min_visibility"`
	ThumbnailHeight int     `json:"thumbnail_height"`
	MaxWorkers      int     `json:"max_workers"`
	MaxQueueSize    int     `json:"max_queue_size"`
}

type DatabaseConfig struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

type SecurityConfig struct {
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	AnalyzeRPS     int           `json:"analyze_rps"`
	AnalyzeBurst   int           `json:"analyze_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHTTPS    bool          `json:"enable_https"`
	CertFile       string        `json:"cert_file"`
	KeyFile        string        `json:"key_file"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Pose: PoseConfig{
			BaseURL:             getEnv("POSE_BASE_URL", "http://localhost:5000"),
			Timeout:             getEnvAsDuration("POSE_TIMEOUT", 120*time.Second),
			MaxRetries:          getEnvAsInt("POSE_MAX_RETRIES", 3),
			RetryDelay:          getEnvAsDuration("POSE_RETRY_DELAY", 1*time.Second),
			HealthCheckInterval: getEnvAsDuration("POSE_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Coach: CoachConfig{
			BaseURL:    getEnv("COACH_BASE_URL", "http://localhost:5001"),
			Timeout:    getEnvAsDuration("COACH_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("COACH_MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("COACH_RETRY_DELAY", 1*time.Second),
		},
		Analysis: AnalysisConfig{
			ReleaseAngle:    getEnvAsFloat("ANALYSIS_RELEASE_ANGLE", 155),
			LookBackFrames:  getEnvAsInt("ANALYSIS_LOOK_BACK_FRAMES", 60),
			CooldownFrames:  getEnvAsInt("ANALYSIS_COOLDOWN_FRAMES", 45),
			StabilityFrames: getEnvAsInt("ANALYSIS_STABILITY_FRAMES", 8),
			MinVisibility:   getEnvAsFloat("ANALYSIS_MIN_VISIBILITY", 0.5),
			ThumbnailHeight: getEnvAsInt("ANALYSIS_THUMBNAIL_HEIGHT", 200),
			MaxWorkers:      getEnvAsInt("ANALYSIS_MAX_WORKERS", 4),
			MaxQueueSize:    getEnvAsInt("ANALYSIS_MAX_QUEUE_SIZE", 64),
		},
		Database: DatabaseConfig{
			Path:    getEnv("DB_PATH", "shotdoctor.db"),
			Enabled: getEnvAsBool("DB_ENABLED", true),
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			// Video analysis is orders of magnitude more expensive than
			// the other routes, so it gets its own tight budget.
			AnalyzeRPS:   getEnvAsInt("ANALYZE_RATE_LIMIT_RPS", 2),
			AnalyzeBurst: getEnvAsInt("ANALYZE_RATE_LIMIT_BURST", 5),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 100*1024*1024), // 100MB video uploads
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 300*time.Second),
			EnableHTTPS:    getEnvAsBool("ENABLE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	return config
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Pose.BaseURL == "" {
		errors = append(errors, "pose service base URL is required")
	}

	if c.Coach.BaseURL == "" {
		errors = append(errors, "coach service base URL is required")
	}

	if c.Analysis.ReleaseAngle <= 0 || c.Analysis.ReleaseAngle > 180 {
		errors = append(errors, "release angle must be in (0, 180]")
	}

	if c.Analysis.MinVisibility < 0 || c.Analysis.MinVisibility > 1 {
		errors = append(errors, "min visibility must be in [0, 1]")
	}

	if c.Analysis.LookBackFrames < 1 {
		errors = append(errors, "look-back frames must be positive")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if c.Security.RateLimitRPS < 1 || c.Security.AnalyzeRPS < 1 {
		errors = append(errors, "rate limit rps values must be positive")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errors = append(errors, "database path is required when persistence is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	logger.Info("Configuration validated",
		zap.String("environment", c.Server.Environment),
		zap.Bool("persistence", c.Database.Enabled))

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
