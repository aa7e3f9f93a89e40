package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	AI     AIConfig     `yaml:"ai"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Name           string   `yaml:"name"`
	Version        string   `yaml:"version"`
	BodyLimitMB    int64    `yaml:"bodyLimitMb"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// RedisConfig Redis 配置，Host 为空时反馈只记录日志
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled 是否配置了 Redis
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// AIConfig 生成式 AI 服务配置
type AIConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	BaseURL  string        `yaml:"baseUrl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Configured 是否存在可用的 API Key
func (c AIConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3000,
			Name:        "shopassist",
			Version:     "2.0.0",
			BodyLimitMB: 10,
		},
		Redis: RedisConfig{Port: 6379},
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-1.5-flash",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig 加载配置文件，文件不存在时使用默认值；环境变量（含 .env）优先于文件
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("AI_API_KEY"); ok {
		cfg.AI.APIKey = v
	}
	if v, ok := lookup("AI_MODEL"); ok && v != "" {
		cfg.AI.Model = v
	}
	if v, ok := lookup("AI_PROVIDER"); ok && v != "" {
		cfg.AI.Provider = v
	}
	if v, ok := lookup("AI_BASE_URL"); ok && v != "" {
		cfg.AI.BaseURL = v
	}
	if v, ok := lookup("AI_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AI_TIMEOUT 格式错误: %w", err)
		}
		cfg.AI.Timeout = d
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT 格式错误: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		host, port, found := strings.Cut(v, ":")
		cfg.Redis.Host = host
		if found {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR 格式错误: %w", err)
			}
			cfg.Redis.Port = p
		}
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func (c *Config) normalize() {
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.AI.BaseURL = strings.TrimRight(c.AI.BaseURL, "/")
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}
	if c.Server.BodyLimitMB <= 0 {
		c.Server.BodyLimitMB = 10
	}
}
