package autodoc

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GenerateOption represents options for generation
type GenerateOption func(*generateConfig)

type generateConfig struct {
	ModelName  string
	Prompt     string
	Parameters map[string]string // temperature, topK, topP, maxOutputTokens
}

// WithModelName sets the model name
func WithModelName(name string) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.ModelName = name
	}
}

// WithPrompt sets the prompt text
func WithPrompt(prompt string) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.Prompt = prompt
	}
}

// WithParameters sets the model parameters
func WithParameters(params map[string]string) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.Parameters = params
	}
}

// Config is the process configuration read from the environment.
type Config struct {
	APIKey      string
	Model       string
	Temperature string

	OracleTimeout time.Duration
	RenderTimeout time.Duration
	SettleTimeout time.Duration
	MinSettle     time.Duration
	HostTTL       time.Duration

	PoolSize         int
	PoolMemoryMB     int
	WorkerMemoryMB   int
	BatchConcurrency int

	BrowserBin   string
	BaseURL      string
	TemplatesDir string

	PostgresDSN   string
	PostgresTable string
	PostgresKey   string
	SQLitePath    string
	SQLiteTable   string
	SQLiteKey     string
	RecordsDir    string
	XLSXPath      string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	return Config{
		APIKey:      getEnv("GEMINI_API_KEY", ""),
		Model:       getEnv("AUTODOC_MODEL", "gemini-2.0-flash"),
		Temperature: getEnv("AUTODOC_TEMPERATURE", "0"),

		OracleTimeout: getEnvAsDuration("AUTODOC_ORACLE_TIMEOUT", 5*time.Second),
		RenderTimeout: getEnvAsDuration("AUTODOC_RENDER_TIMEOUT", 30*time.Second),
		SettleTimeout: getEnvAsDuration("AUTODOC_SETTLE_TIMEOUT", 10*time.Second),
		MinSettle:     getEnvAsDuration("AUTODOC_MIN_SETTLE", 50*time.Millisecond),
		HostTTL:       getEnvAsDuration("AUTODOC_HOST_TTL", 24*time.Hour),

		PoolSize:         getEnvAsInt("AUTODOC_POOL_SIZE", 0),
		PoolMemoryMB:     getEnvAsInt("AUTODOC_POOL_MEMORY_MB", 1024),
		WorkerMemoryMB:   getEnvAsInt("AUTODOC_WORKER_MEMORY_MB", 128),
		BatchConcurrency: getEnvAsInt("AUTODOC_BATCH_CONCURRENCY", 5),

		BrowserBin:   getEnv("AUTODOC_BROWSER_BIN", ""),
		BaseURL:      getEnv("AUTODOC_BASE_URL", "http://localhost:8080/documents"),
		TemplatesDir: getEnv("AUTODOC_TEMPLATES_DIR", ""),

		PostgresDSN:   getEnv("AUTODOC_POSTGRES_DSN", ""),
		PostgresTable: getEnv("AUTODOC_POSTGRES_TABLE", "records"),
		PostgresKey:   getEnv("AUTODOC_POSTGRES_KEY", "id"),
		SQLitePath:    getEnv("AUTODOC_SQLITE_PATH", ""),
		SQLiteTable:   getEnv("AUTODOC_SQLITE_TABLE", "records"),
		SQLiteKey:     getEnv("AUTODOC_SQLITE_KEY", "id"),
		RecordsDir:    getEnv("AUTODOC_RECORDS_DIR", ""),
		XLSXPath:      getEnv("AUTODOC_XLSX_PATH", ""),

		LogLevel: getEnv("AUTODOC_LOG_LEVEL", "info"),
	}
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	var problems []string
	for name, d := range map[string]time.Duration{
		"AUTODOC_ORACLE_TIMEOUT": c.OracleTimeout,
		"AUTODOC_RENDER_TIMEOUT": c.RenderTimeout,
		"AUTODOC_SETTLE_TIMEOUT": c.SettleTimeout,
		"AUTODOC_MIN_SETTLE":     c.MinSettle,
		"AUTODOC_HOST_TTL":       c.HostTTL,
	} {
		if d <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if c.MinSettle >= c.RenderTimeout {
		problems = append(problems, "AUTODOC_MIN_SETTLE must be shorter than AUTODOC_RENDER_TIMEOUT")
	}
	if c.PoolSize < 0 {
		problems = append(problems, "AUTODOC_POOL_SIZE must not be negative")
	}
	if c.PoolSize == 0 && (c.PoolMemoryMB <= 0 || c.WorkerMemoryMB <= 0) {
		problems = append(problems, "AUTODOC_POOL_MEMORY_MB and AUTODOC_WORKER_MEMORY_MB must be positive when AUTODOC_POOL_SIZE is 0")
	}
	if c.BatchConcurrency <= 0 {
		problems = append(problems, "AUTODOC_BATCH_CONCURRENCY must be positive")
	}
	if t, err := strconv.ParseFloat(c.Temperature, 32); err != nil || t < 0 || t > 1 {
		problems = append(problems, "AUTODOC_TEMPERATURE must be between 0.0 and 1.0")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Pool returns the render pool configuration.
func (c Config) Pool() PoolConfig {
	return PoolConfig{
		Size:           c.PoolSize,
		MemoryBudgetMB: c.PoolMemoryMB,
		WorkerMemoryMB: c.WorkerMemoryMB,
		SettleTimeout:  c.SettleTimeout,
		MinSettle:      c.MinSettle,
	}
}

// Options returns the generator options derived from the environment.
func (c Config) Options() []func(*Options) {
	return []func(*Options){
		WithOracleTimeout(c.OracleTimeout),
		WithRenderTimeout(c.RenderTimeout),
		WithHostTTL(c.HostTTL),
		WithBatchConcurrency(c.BatchConcurrency),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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
