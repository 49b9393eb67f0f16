package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const devJWTSecret = "rabbitquest-dev-secret-change-in-production"

type Config struct {
	Port        string `validate:"required,numeric"`
	BindAddress string
	Env         string `validate:"oneof=development production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`

	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBName     string `validate:"required"`
	DBSSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`

	RedisEnabled  bool
	RedisHost     string `validate:"required_if=RedisEnabled true"`
	RedisPort     string `validate:"required_if=RedisEnabled true"`
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	QuizCacheTTL  time.Duration `validate:"gte=0"`

	JWTSecret   string `validate:"required"`
	JWTIssuer   string `validate:"required"`
	JWTAudience string `validate:"required"`

	StorageBasePath    string `validate:"required"`
	AvatarMaxDimension int    `validate:"gte=0"`

	CORSAllowedOrigins []string
	RatingPolicy       string   `validate:"oneof=append upsert"`
	AdminEmails        []string `validate:"dive,email"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", ""),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "rabbitquest"),
		DBPassword: getEnv("DB_PASSWORD", "rabbitquest123"),
		DBName:     getEnv("DB_NAME", "rabbitquest"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QuizCacheTTL:  getEnvDuration("QUIZ_CACHE_TTL", 5*time.Minute),

		JWTSecret:   getEnv("JWT_SECRET", devJWTSecret),
		JWTIssuer:   getEnv("JWT_ISSUER", "rabbitquest-api"),
		JWTAudience: getEnv("JWT_AUDIENCE", "rabbitquest-clients"),

		StorageBasePath:    getEnv("STORAGE_BASE_PATH", "Storage"),
		AvatarMaxDimension: getEnvInt("AVATAR_MAX_DIMENSION", 512),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RatingPolicy:       getEnv("RATING_POLICY", "append"),
		AdminEmails:        getEnvList("ADMIN_EMAILS", nil),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the production-only secret rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Env == "production" {
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("invalid configuration: JWT_SECRET must be set in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("invalid configuration: JWT_SECRET must be at least 32 characters")
		}
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return c.BindAddress + ":" + c.Port
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func InitDB(cfg *Config, logger *GormLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger:         logger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(time.Minute)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return client
}
