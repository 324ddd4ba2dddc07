package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application level configuration.
// Values come from an optional YAML file (CONFIG_FILE) and are overridden by environment variables.
type Config struct {
	ServerPort  string `yaml:"serverPort"`
	DBDriver    string `yaml:"dbDriver"`
	DatabaseDSN string `yaml:"databaseDsn"`
	ResetDB     bool   `yaml:"resetDb"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisDB     int    `yaml:"redisDb"`
	RedisPass   string `yaml:"redisPassword"`
	JWTSecret   string `yaml:"jwtSecret"`
	SwaggerHost string `yaml:"swaggerHost"`
	LogLevel    string `yaml:"logLevel"`

	AuthRateLimitPerMinute int `yaml:"authRateLimitPerMinute"`

	StudentLoanDays int `yaml:"studentLoanDays"`
	FacultyLoanDays int `yaml:"facultyLoanDays"`
	RenewalDays     int `yaml:"renewalDays"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		ServerPort:             "8080",
		DBDriver:               "mysql",
		DatabaseDSN:            "user:password@tcp(localhost:3306)/library?charset=utf8mb4&parseTime=True&loc=UTC",
		RedisAddr:              "localhost:6379",
		JWTSecret:              "change-me",
		LogLevel:               "info",
		AuthRateLimitPerMinute: 20,
		StudentLoanDays:        14,
		FacultyLoanDays:        30,
		RenewalDays:            30,
	}
}

// Load builds Config from CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)
	c.ResetDB = getEnvBool("RESET_DB", c.ResetDB)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisPass = getEnv("REDIS_PASSWORD", c.RedisPass)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.SwaggerHost = getEnv("SWAGGER_HOST", c.SwaggerHost)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.AuthRateLimitPerMinute = getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", c.AuthRateLimitPerMinute)
	c.StudentLoanDays = getEnvInt("STUDENT_LOAN_DAYS", c.StudentLoanDays)
	c.FacultyLoanDays = getEnvInt("FACULTY_LOAN_DAYS", c.FacultyLoanDays)
	c.RenewalDays = getEnvInt("RENEWAL_DAYS", c.RenewalDays)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}
