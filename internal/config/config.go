package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	Sheets    SheetsConfig
	Desk      DeskConfig
	Log       LogConfig
}

// ConfigError 表示某个外部配置缺失或无效。启动时展示一次，并关闭依赖它的功能。
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrNotSet 表示必需的环境变量为空。
var ErrNotSet = errors.New("not set")

// Load 从环境变量加载配置。格式错误的值直接返回错误；缺失的凭证不在这里报错，
// 由各自的 Check 方法决定是否降级。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	desk, err := loadDeskConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Assistant: assistant,
		Sheets:    loadSheetsConfig(),
		Desk:      desk,
		Log:       loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// AssistantConfig 描述 Assistants 服务相关配置。
type AssistantConfig struct {
	APIKey          string
	BaseURL         string
	PollInterval    time.Duration
	PollMaxAttempts int
	MaxRetries      int
}

// Check 在缺少 API Key 时返回 ConfigError。
func (c AssistantConfig) Check() error {
	if c.APIKey == "" {
		return &ConfigError{Setting: "OPENAI_API_KEY", Err: ErrNotSet}
	}
	return nil
}

func loadAssistantConfig() (AssistantConfig, error) {
	interval, err := parseDurationEnv("ASSISTANT_POLL_INTERVAL", time.Second)
	if err != nil {
		return AssistantConfig{}, err
	}
	if interval <= 0 {
		return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_POLL_INTERVAL value %q: must be positive", interval)
	}

	attempts, err := parseIntEnv("ASSISTANT_POLL_MAX_ATTEMPTS", 120)
	if err != nil {
		return AssistantConfig{}, err
	}
	if attempts < 1 {
		attempts = 1
	}

	retries, err := parseIntEnv("ASSISTANT_MAX_RETRIES", 2)
	if err != nil {
		return AssistantConfig{}, err
	}
	if retries < 0 {
		retries = 0
	}

	return AssistantConfig{
		APIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:         strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		PollInterval:    interval,
		PollMaxAttempts: attempts,
		MaxRetries:      retries,
	}, nil
}

// SheetsConfig 描述反馈表格配置。
type SheetsConfig struct {
	// CredentialsFile 是 service account JSON 的路径。变量名沿用线上部署的 GOOGLE_API_KEY。
	CredentialsFile string
	SpreadsheetID   string
	Range           string
}

// Credentials 校验配置并读取凭证文件。任何问题都以 ConfigError 返回。
func (c SheetsConfig) Credentials() ([]byte, error) {
	if c.CredentialsFile == "" {
		return nil, &ConfigError{Setting: "GOOGLE_API_KEY", Err: ErrNotSet}
	}
	if c.SpreadsheetID == "" {
		return nil, &ConfigError{Setting: "GOOGLE_SHEET_ID", Err: ErrNotSet}
	}

	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Setting: "GOOGLE_API_KEY", Err: fmt.Errorf("credentials file not found at %s", c.CredentialsFile)}
		}
		return nil, &ConfigError{Setting: "GOOGLE_API_KEY", Err: err}
	}
	return data, nil
}

func loadSheetsConfig() SheetsConfig {
	return SheetsConfig{
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SHEET_ID")),
		Range:           strings.TrimSpace(os.Getenv("GOOGLE_SHEET_RANGE")),
	}
}

// DeskConfig 描述表单会话行为。
type DeskConfig struct {
	HideDelay      time.Duration
	SessionIdleTTL time.Duration
	PersonasFile   string
}

func loadDeskConfig() (DeskConfig, error) {
	hide, err := parseDurationEnv("FEEDBACK_HIDE_DELAY", 3*time.Second)
	if err != nil {
		return DeskConfig{}, err
	}

	ttl, err := parseDurationEnv("SESSION_IDLE_TTL", 12*time.Hour)
	if err != nil {
		return DeskConfig{}, err
	}

	return DeskConfig{
		HideDelay:      hide,
		SessionIdleTTL: ttl,
		PersonasFile:   strings.TrimSpace(os.Getenv("PERSONAS_FILE")),
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
