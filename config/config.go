package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Upload    UploadConfig
	S3        S3Config
	Review    ReviewConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RedisConfig 통계 캐시용 Redis 설정 (Host 가 비어 있으면 캐시 비활성화)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	StatsTTL time.Duration
}

// UploadConfig 리뷰 사진 업로드 설정
type UploadConfig struct {
	Driver       string // local, s3
	Dir          string // local 드라이버 저장 경로
	PublicPrefix string // local 드라이버 공개 경로 (예: /uploads/reviews)
	MaxFileSize  int64
	MaxFiles     int
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
	Prefix          string
}

// ReviewConfig 리뷰 집계 정책
type ReviewConfig struct {
	TotalPolicy       string // all, rated
	TopTagLimit       int
	RecentReviewLimit int
}

type SchedulerConfig struct {
	Enabled       bool
	RecomputeSpec string
	CleanupSpec   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "productreview"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			StatsTTL: parseDuration(getEnv("REDIS_STATS_TTL", "5m"), 5*time.Minute),
		},
		Upload: UploadConfig{
			Driver:       getEnv("UPLOAD_DRIVER", "local"),
			Dir:          getEnv("UPLOAD_DIR", "./uploads/reviews"),
			PublicPrefix: getEnv("UPLOAD_PUBLIC_PREFIX", "/uploads/reviews"),
			MaxFileSize:  int64(parseInt(getEnv("MAX_FILE_SIZE", "5242880"), 5*1024*1024)),
			MaxFiles:     parseInt(getEnv("MAX_FILES_PER_REVIEW", "5"), 5),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-northeast-2"),
			Bucket:          getEnv("AWS_S3_BUCKET", "productreview-uploads"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
			Prefix:          getEnv("AWS_S3_PREFIX", "reviews"),
		},
		Review: ReviewConfig{
			TotalPolicy:       getEnv("REVIEW_TOTAL_POLICY", "all"),
			TopTagLimit:       parseInt(getEnv("REVIEW_TOP_TAG_LIMIT", "10"), 10),
			RecentReviewLimit: parseInt(getEnv("REVIEW_RECENT_LIMIT", "3"), 3),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getEnv("SCHEDULER_ENABLED", "true") == "true",
			RecomputeSpec: getEnv("SCHEDULER_RECOMPUTE_CRON", "0 3 * * *"),
			CleanupSpec:   getEnv("SCHEDULER_CLEANUP_CRON", "30 3 * * *"),
		},
	}

	if config.Upload.Driver != "local" && config.Upload.Driver != "s3" {
		return nil, fmt.Errorf("unsupported UPLOAD_DRIVER %q", config.Upload.Driver)
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Enabled Redis 캐시 사용 여부
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
