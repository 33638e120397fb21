package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	Crisis   CrisisConfig
	Auth     AuthConfig
	Mail     MailConfig
	Queue    QueueConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Mail.BaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	if cfg.Mail.SignupURL == "" {
		cfg.Mail.SignupURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/") + "/register"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验跨字段约束。
func (c *Config) Validate() error {
	if _, err := c.Server.Addr(); err != nil {
		return err
	}
	if c.Server.OriginPattern != "" {
		if _, err := regexp.Compile(c.Server.OriginPattern); err != nil {
			return fmt.Errorf("invalid FRONTEND_ORIGIN_PATTERN: %w", err)
		}
	}
	if len(c.Crisis.Keywords) == 0 {
		return errors.New("CRISIS_KEYWORDS must list at least one phrase")
	}
	if c.AI.RichHistory <= 0 || c.AI.FallbackHistory <= 0 || c.AI.StreamHistory <= 0 {
		return errors.New("history windows must be positive")
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port          string   `env:"PORT" envDefault:"8080"`
	Origins       []string `env:"FRONTEND_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	OriginPattern string   `env:"FRONTEND_ORIGIN_PATTERN" envDefault:"^https://.*\\.onrender\\.com$"`
	StaticDir     string   `env:"STATIC_DIR" envDefault:"static"`
	UploadDir     string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
}

// Addr 解析服务器监听地址。
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// DatabaseConfig 描述持久化配置。
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envDefault:"sqlite://data/nonotalk.db"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey          string        `env:"OPENAI_API_KEY"`
	AccessKey       string        `env:"AI_ACCESS_KEY"`
	SecretKey       string        `env:"AI_SECRET_KEY"`
	Model           string        `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL         string        `env:"OPENAI_API_BASE" envDefault:"https://api.openai.com/v1"`
	Region          string        `env:"AI_REGION"`
	Temperature     float32       `env:"AI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens       int           `env:"AI_MAX_TOKENS" envDefault:"150"`
	StreamMaxTokens int           `env:"AI_STREAM_MAX_TOKENS" envDefault:"180"`
	RichHistory     int           `env:"AI_HISTORY_RICH" envDefault:"50"`
	FallbackHistory int           `env:"AI_HISTORY_FALLBACK" envDefault:"6"`
	StreamHistory   int           `env:"AI_HISTORY_STREAM" envDefault:"8"`
	Warmup          bool          `env:"AI_WARMUP" envDefault:"true"`
	WarmupTimeout   time.Duration `env:"AI_WARMUP_TIMEOUT" envDefault:"20s"`
	PersonaID       string        `env:"AI_PERSONA" envDefault:"nono"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("model credentials missing: set OPENAI_API_KEY or AI_ACCESS_KEY + AI_SECRET_KEY")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

// CrisisConfig 危机关键词配置。
type CrisisConfig struct {
	Keywords []string `env:"CRISIS_KEYWORDS" envSeparator:"," envDefault:"suicide,envie d'en finir,je veux mourir,plus envie de vivre"`
}

// AuthConfig 会话 Cookie 配置。
type AuthConfig struct {
	CookieName   string        `env:"SESSION_COOKIE" envDefault:"nonotalk_session"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
}

// MailConfig SMTP 邀请邮件配置。BaseURL 由 Load 根据 PUBLIC_BASE_URL 填充，用于邮件中的图片地址。
type MailConfig struct {
	Host      string        `env:"SMTP_HOST"`
	Port      int           `env:"SMTP_PORT" envDefault:"587"`
	User      string        `env:"SMTP_USER"`
	Password  string        `env:"SMTP_PASSWORD"`
	From      string        `env:"SMTP_FROM"`
	FromName  string        `env:"SMTP_FROM_NAME" envDefault:"NonoTalk"`
	Secure    string        `env:"SMTP_SECURE" envDefault:"starttls"`
	SignupURL string        `env:"APP_SIGNUP_URL"`
	Timeout   time.Duration `env:"SMTP_TIMEOUT" envDefault:"20s"`
	BaseURL   string
}

// Enabled 表示是否配置了 SMTP 主机。
func (c MailConfig) Enabled() bool {
	return c.Host != ""
}

// QueueConfig 后台任务队列配置，未设置 REDIS_URL 时同步执行。
type QueueConfig struct {
	RedisURL    string `env:"REDIS_URL"`
	Concurrency int    `env:"QUEUE_CONCURRENCY" envDefault:"5"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}
