package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	JWTSecret string

	Log      string
	LogLevel string
	LogDir   string
	Env      string // dev|prod

	AllowedOrigins []string

	// Клиентская часть (CLI редактора курса)
	WebserviceURL     string
	WebserviceToken   string
	WebserviceTimeout time.Duration
	SequenceMutations bool
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует — чтобы не создавать зависимость от logger.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	timeout, err := time.ParseDuration(def(os.Getenv("WEBSERVICE_TIMEOUT"), "30s"))
	if err != nil {
		return nil, fmt.Errorf("WEBSERVICE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:      def(os.Getenv("PORT"), "8080"),
		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		Log:      os.Getenv("LOG"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		LogDir:   def(os.Getenv("LOG_DIR"), "logs"),
		Env:      strings.ToLower(def(os.Getenv("ENV"), "prod")),

		AllowedOrigins: splitList(def(os.Getenv("CORS_ORIGINS"), "*")),

		WebserviceURL:     strings.TrimRight(def(os.Getenv("WEBSERVICE_URL"), "http://localhost:8080"), "/"),
		WebserviceToken:   os.Getenv("WEBSERVICE_TOKEN"),
		WebserviceTimeout: timeout,
		SequenceMutations: strings.EqualFold(os.Getenv("SEQUENCE_MUTATIONS"), "true"),
	}

	return cfg, nil
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	// Критичные: БД
	if c.DbHost == "" || c.DbUser == "" || c.DbName == "" {
		return nil, fmt.Errorf("incomplete DB config (DB_HOST/DB_USER/DB_NAME)")
	}

	// Без секрета ни один токен не пройдёт проверку
	if strings.TrimSpace(c.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is empty")
	}

	if len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*" {
		warnings = append(warnings, "CORS_ORIGINS is *, any origin is allowed")
	}

	return warnings, nil
}

// ValidateClient проверяет настройки, нужные CLI.
func (c *Config) ValidateClient() error {
	if c.WebserviceURL == "" {
		return fmt.Errorf("WEBSERVICE_URL is empty")
	}
	if c.WebserviceToken == "" {
		return fmt.Errorf("WEBSERVICE_TOKEN is empty")
	}
	if c.WebserviceTimeout <= 0 {
		return fmt.Errorf("WEBSERVICE_TIMEOUT must be positive")
	}
	return nil
}

// GetDSN — полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe — DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
