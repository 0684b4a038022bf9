package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinInterval 轮询间隔下限，低于此值一律抬升
const MinInterval = 180 * time.Second

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// 账号凭据
	Username string
	Password string

	// S-PIN，锁车解锁等安全指令需要
	SPin string

	// Polling
	Interval time.Duration
	MaxAge   time.Duration

	// 会话存储路径
	SessionFile string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:  getEnv("PORT", "4000"),
		Debug:       getEnvBool("DEBUG", false),
		Username:    getEnv("SKODA_USERNAME", ""),
		Password:    getEnv("SKODA_PASSWORD", ""),
		SPin:        getEnv("SKODA_SPIN", ""),
		Interval:    getEnvDuration("POLL_INTERVAL", 300*time.Second),
		MaxAge:      getEnvDuration("CACHE_MAX_AGE", 300*time.Second),
		SessionFile: getEnv("SESSION_FILE", "sessions.json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Username == "" {
		return fmt.Errorf("SKODA_USERNAME is required")
	}
	if c.Password == "" {
		return fmt.Errorf("SKODA_PASSWORD is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("CACHE_MAX_AGE must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
