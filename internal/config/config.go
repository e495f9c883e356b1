package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Transcribe TranscribeConfig
	Store      StoreConfig
	Assets     AssetsConfig
	Log        LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	transcribe, err := loadTranscribeConfig()
	if err != nil {
		return nil, err
	}

	assets, err := loadAssetsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Transcribe: transcribe,
		Store:      StoreConfig{DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Assets:     assets,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	MaxUploadBytes     int64
}

// loadServerConfig 解析服务器监听地址及请求限制。
func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(strings.TrimSpace(os.Getenv("PORT")))
	if err != nil {
		return ServerConfig{}, err
	}

	rate, err := parseIntEnv("RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return ServerConfig{}, err
	}
	if rate < 0 {
		return ServerConfig{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE value %d: must not be negative", rate)
	}

	uploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 32)
	if err != nil {
		return ServerConfig{}, err
	}
	if uploadMB <= 0 {
		return ServerConfig{}, fmt.Errorf("invalid MAX_UPLOAD_MB value %d: must be positive", uploadMB)
	}

	return ServerConfig{
		Addr:               addr,
		AllowedOrigins:     splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute: rate,
		MaxUploadBytes:     int64(uploadMB) << 20,
	}, nil
}

func parseAddr(port string) (string, error) {
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

// Provider 选择对话补全的后端。
type Provider string

const (
	ProviderArk    Provider = "ark"
	ProviderOpenAI Provider = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    Provider
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   int
	Timeout     time.Duration
	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string
}

// Enabled 表示所选 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIKey != "" && c.OpenAIModel != ""
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用 Ark 配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := Provider(strings.ToLower(getEnvOrDefault("AI_PROVIDER", string(ProviderArk))))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: want ark or openai", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseIntEnv("AI_MAX_TOKENS", 300)
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseSecondsEnv("AI_TIMEOUT", 60)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:    provider,
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
		OpenAIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIURL:   strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel: getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
	}, nil
}

// TranscribeConfig 描述语音转写（Whisper）配置。
type TranscribeConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// Enabled 表示是否提供了转写所需的密钥。
func (c TranscribeConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadTranscribeConfig() (TranscribeConfig, error) {
	timeout, err := parseSecondsEnv("TRANSCRIBE_TIMEOUT", 60)
	if err != nil {
		return TranscribeConfig{}, err
	}

	return TranscribeConfig{
		APIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:  strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:    getEnvOrDefault("TRANSCRIBE_MODEL", "whisper-1"),
		Language: strings.TrimSpace(os.Getenv("TRANSCRIBE_LANGUAGE")),
		Timeout:  timeout,
	}, nil
}

// StoreConfig 描述治疗师档案的持久化配置。
type StoreConfig struct {
	DatabaseURL string
}

// AssetsConfig 描述录音文件的对象存储配置。
type AssetsConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// Enabled 表示是否配置了对象存储。
func (c AssetsConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

func loadAssetsConfig() (AssetsConfig, error) {
	useSSL, err := parseBoolEnv("S3_USE_SSL", true)
	if err != nil {
		return AssetsConfig{}, err
	}

	return AssetsConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		Bucket:    getEnvOrDefault("S3_BUCKET", "therapist-audio"),
		Region:    strings.TrimSpace(os.Getenv("S3_REGION")),
		UseSSL:    useSSL,
		PublicURL: strings.TrimRight(strings.TrimSpace(os.Getenv("S3_PUBLIC_URL")), "/"),
	}, nil
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := parseIntEnv(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
