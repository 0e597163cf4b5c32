package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"collector/pkg/crypto"
)

// Режимы исполнения воркеров
const (
	WorkerModeProcess   = "process"   // отдельный процесс на слот (по умолчанию)
	WorkerModeInProcess = "inprocess" // горутина в родительском процессе
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Collector CollectorConfig
	Terminal  TerminalConfig
	Logging   LoggingConfig
}

// ServerConfig - операционный HTTP (health, status, metrics, ws)
type ServerConfig struct {
	Enabled        bool
	Port           int
	Host           string
	AllowedOrigins []string
	// APIToken - bearer-токен операторского API; пустой отключает проверку
	APIToken string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	Name        string
	User        string
	Password    string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string // hex (64 символа) или 32 байта как есть
}

// CollectorConfig - параметры цикла сбора
type CollectorConfig struct {
	Interval          time.Duration // период между циклами
	NumWorkers        int           // размер пула
	WorkerMode        string        // process | inprocess
	JobTimeout        time.Duration // предел на весь сбор одного счёта
	CallTimeout       time.Duration // предел на один внешний вызов
	LoginTimeout      time.Duration // предел на логин
	WriteTimeout      time.Duration // предел на запись результата в БД
	ShutdownTimeout   time.Duration // сколько ждать текущий цикл при остановке
	TotalLookbackDays int           // окно "total" P/L
}

// TerminalConfig - мосты терминалов, по одному на слот
type TerminalConfig struct {
	Endpoints []string
	Path      string  // путь к исполняемому файлу терминала (передаётся в initialize)
	RateLimit float64 // запросов в секунду к одному мосту
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения
//
// Если рядом лежит .env, переменные из него подхватываются,
// уже заданные в окружении не перезаписываются.
func Load() (*Config, error) {
	_ = godotenv.Load()

	numWorkers := getEnvAsInt("NUM_WORKERS", 5)

	cfg := &Config{
		Server: ServerConfig{
			Enabled:        getEnvAsBool("SERVER_ENABLED", true),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
			APIToken:       getEnv("OPS_API_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			Name:        getEnv("DB_NAME", "collector"),
			User:        getEnv("DB_USER", "user"),
			Password:    getEnv("DB_PASSWORD", "password"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 10),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Collector: CollectorConfig{
			Interval:          getEnvAsDuration("COLLECT_INTERVAL", 30*time.Second),
			NumWorkers:        numWorkers,
			WorkerMode:        getEnv("WORKER_MODE", WorkerModeProcess),
			JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 2*time.Minute),
			CallTimeout:       getEnvAsDuration("CALL_TIMEOUT", 15*time.Second),
			LoginTimeout:      getEnvAsDuration("LOGIN_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 60*time.Second),
			TotalLookbackDays: getEnvAsInt("TOTAL_LOOKBACK_DAYS", 365),
		},
		Terminal: TerminalConfig{
			Endpoints: getEnvAsList("TERMINAL_ENDPOINTS", nil),
			Path:      getEnv("TERMINAL_PATH", ""),
			RateLimit: getEnvAsFloat("TERMINAL_RATE_LIMIT", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// По умолчанию мосты слушают на соседних портах: base, base+1, ...
	if len(cfg.Terminal.Endpoints) == 0 {
		cfg.Terminal.Endpoints = defaultEndpoints(
			getEnv("TERMINAL_HOST", "127.0.0.1"),
			getEnvAsInt("TERMINAL_BASE_PORT", 18811),
			numWorkers,
		)
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for decrypting account credentials")
	}

	if _, err := crypto.ParseKey(c.Security.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters or exactly 32 bytes: %w", err)
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}

	if c.Collector.NumWorkers < 1 || c.Collector.NumWorkers > 64 {
		return fmt.Errorf("NUM_WORKERS must be between 1 and 64, got %d", c.Collector.NumWorkers)
	}

	if c.Collector.WorkerMode != WorkerModeProcess && c.Collector.WorkerMode != WorkerModeInProcess {
		return fmt.Errorf("WORKER_MODE must be %q or %q, got %q",
			WorkerModeProcess, WorkerModeInProcess, c.Collector.WorkerMode)
	}

	// Таймауты (должны быть положительными)
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"COLLECT_INTERVAL", c.Collector.Interval},
		{"JOB_TIMEOUT", c.Collector.JobTimeout},
		{"CALL_TIMEOUT", c.Collector.CallTimeout},
		{"LOGIN_TIMEOUT", c.Collector.LoginTimeout},
		{"WRITE_TIMEOUT", c.Collector.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", c.Collector.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.value)
		}
	}

	if c.Collector.JobTimeout < c.Collector.LoginTimeout {
		return fmt.Errorf("JOB_TIMEOUT (%v) must not be shorter than LOGIN_TIMEOUT (%v)",
			c.Collector.JobTimeout, c.Collector.LoginTimeout)
	}

	if c.Collector.TotalLookbackDays < 1 {
		return fmt.Errorf("TOTAL_LOOKBACK_DAYS must be positive, got %d", c.Collector.TotalLookbackDays)
	}

	// Каждому слоту нужен собственный терминал
	if len(c.Terminal.Endpoints) < c.Collector.NumWorkers {
		return fmt.Errorf("TERMINAL_ENDPOINTS has %d entries, need one per worker (%d)",
			len(c.Terminal.Endpoints), c.Collector.NumWorkers)
	}

	if c.Terminal.RateLimit <= 0 {
		return fmt.Errorf("TERMINAL_RATE_LIMIT must be positive, got %v", c.Terminal.RateLimit)
	}

	return nil
}

// EncryptionKeyBytes возвращает разобранный ключ шифрования
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	return crypto.ParseKey(c.Security.EncryptionKey)
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

func defaultEndpoints(host string, basePort, n int) []string {
	endpoints := make([]string, 0, n)
	for i := 0; i < n; i++ {
		endpoints = append(endpoints, fmt.Sprintf("http://%s:%d", host, basePort+i))
	}
	return endpoints
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
