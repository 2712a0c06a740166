package config

import "time"

// AppConfig holds runtime configuration for the event backend.
type AppConfig struct {
	Environment          string
	Addr                 string
	DatabaseURL          string
	MigrationsDir        string
	JWTSecret            string
	AdminPasswordHash    string
	AccessTokenTTL       time.Duration
	RegistrationLimit    int
	RegistrationRecheck  time.Duration
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
	MailFrom             string
	WSWriteTimeout       time.Duration
	StoreCallTimeout     time.Duration
	LogLevel             string
}

// LoadAppConfig constructs an AppConfig from environment variables.
func LoadAppConfig() AppConfig {
	return AppConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":3001"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://hackforge:hackforge@db:5432/hackforge?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:           GetString("JWT_SECRET", "supersecuresecret"),
		AdminPasswordHash:   GetString("ADMIN_PASSWORD_HASH", ""),
		AccessTokenTTL:      time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 720)) * time.Minute,
		RegistrationLimit:   GetInt("REGISTRATION_LIMIT", 60),
		RegistrationRecheck: GetDuration("REGISTRATION_RECHECK_SECONDS", 10*time.Second),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
		MailFrom:            GetString("MAIL_FROM", "team@hackforge.local"),
		WSWriteTimeout:      GetDuration("WS_WRITE_TIMEOUT_SECONDS", 10*time.Second),
		StoreCallTimeout:    GetDuration("STORE_CALL_TIMEOUT_SECONDS", 5*time.Second),
		LogLevel:            GetString("LOG_LEVEL", "info"),
	}
}
