package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	minCheckInterval = 60 * time.Second
	minDeployTimeout = 60 * time.Second
)

type Config struct {
	DB       DBConfig       `json:"db" yaml:"db"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Alerts   AlertsConfig   `json:"alerts" yaml:"alerts"`
	Deploy   DeployConfig   `json:"deploy" yaml:"deploy"`
	Library  LibraryConfig  `json:"library" yaml:"library"`
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
}

// DBConfig - локальная БД бота с историей деплоев и алертов.
type DBConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`
}

type ServerConfig struct {
	AppPort      string `json:"app_port" yaml:"app_port"`
	WebhookToken string `json:"webhook_token" yaml:"webhook_token"`
}

type BackendConfig struct {
	UseMock               bool    `json:"use_mock" yaml:"use_mock"`
	BaseURL               string  `json:"base_url" yaml:"base_url"`
	HealthPath            string  `json:"health_path" yaml:"health_path"`
	MonitoringAPIKey      string  `json:"monitoring_api_key,omitempty" yaml:"monitoring_api_key,omitempty"`
	RequestTimeoutSeconds float64 `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

type TelegramConfig struct {
	BotToken       string  `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	AllowedChatIDs []int64 `json:"allowed_chat_ids" yaml:"allowed_chat_ids"`
	UsersPageSize  int     `json:"users_page_size" yaml:"users_page_size"`
}

type AlertsConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	NotifyOnStart        bool    `json:"notify_on_start" yaml:"notify_on_start"`
	CheckIntervalSeconds int     `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	RecipientChatIDs     []int64 `json:"recipient_chat_ids" yaml:"recipient_chat_ids"`
	Limits               Limits  `json:"limits" yaml:"limits"`
}

// Limits - пороги расширенного мониторинга.
type Limits struct {
	MaxActiveHTTPRequests    int64   `json:"max_active_http_requests" yaml:"max_active_http_requests"`
	MaxDBInUseConnections    int64   `json:"max_db_in_use_connections" yaml:"max_db_in_use_connections"`
	MaxGoroutines            int64   `json:"max_goroutines" yaml:"max_goroutines"`
	MaxGoMemoryMB            int64   `json:"max_go_memory_mb" yaml:"max_go_memory_mb"`
	MinUploadsDiskFreeMB     int64   `json:"min_uploads_disk_free_mb" yaml:"min_uploads_disk_free_mb"`
	MaxUpload4xxTotal        uint64  `json:"max_upload_4xx_total" yaml:"max_upload_4xx_total"`
	MaxUpload5xxTotal        uint64  `json:"max_upload_5xx_total" yaml:"max_upload_5xx_total"`
	MaxUpload4xxRatePct      float64 `json:"max_upload_4xx_rate_pct" yaml:"max_upload_4xx_rate_pct"`
	MaxUpload5xxRatePct      float64 `json:"max_upload_5xx_rate_pct" yaml:"max_upload_5xx_rate_pct"`
	MinUploadRequestsForRate uint64  `json:"min_upload_requests_for_rate" yaml:"min_upload_requests_for_rate"`
}

type DeployConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	ScriptPath     string  `json:"script_path" yaml:"script_path"`
	RepoURL        string  `json:"repo_url" yaml:"repo_url"`
	Branch         string  `json:"branch" yaml:"branch"`
	AppDir         string  `json:"app_dir" yaml:"app_dir"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	AllowedChatIDs []int64 `json:"allowed_chat_ids" yaml:"allowed_chat_ids"`
}

// LibraryConfig описывает контейнер с PostgreSQL backend'а для прямых запросов.
type LibraryConfig struct {
	ContainerName string `json:"container_name" yaml:"container_name"`
	DBName        string `json:"db_name" yaml:"db_name"`
	DBUser        string `json:"db_user" yaml:"db_user"`
}

// DiscordConfig - необязательное зеркало алертов в канал Discord.
type DiscordConfig struct {
	BotToken  string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	ChannelID string `json:"channel_id" yaml:"channel_id"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		DB: DBConfig{
			DSN:            "monitoring-bot.db",
			MigrationsPath: "migrations",
		},
		Server: ServerConfig{AppPort: "8090"},
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8080",
			HealthPath:            "/health",
			RequestTimeoutSeconds: 10,
		},
		Telegram: TelegramConfig{UsersPageSize: 8},
		Alerts: AlertsConfig{
			Enabled:              true,
			NotifyOnStart:        true,
			CheckIntervalSeconds: 300,
			Limits: Limits{
				MaxActiveHTTPRequests:    300,
				MaxDBInUseConnections:    50,
				MaxGoroutines:            500,
				MaxGoMemoryMB:            512,
				MinUploadsDiskFreeMB:     512,
				MaxUpload4xxTotal:        200,
				MaxUpload5xxTotal:        20,
				MaxUpload4xxRatePct:      25,
				MaxUpload5xxRatePct:      5,
				MinUploadRequestsForRate: 20,
			},
		},
		Deploy: DeployConfig{
			Enabled:        true,
			ScriptPath:     "/opt/cloudtune/backend/scripts/deploy-from-github.sh",
			RepoURL:        "https://github.com/epitaph76/cloudtune.git",
			Branch:         "master",
			AppDir:         "/opt/cloudtune",
			TimeoutSeconds: 1800,
		},
		Library: LibraryConfig{
			ContainerName: "cloudtune-db",
			DBName:        "cloudtune",
			DBUser:        "cloudtune",
		},
	}
}

// Load читает .env, затем файл конфигурации (JSON или YAML, необязательный),
// затем применяет переменные окружения поверх.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("decode json config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = strings.TrimSpace(token)
	}
	if v, ok := lookup("BACKEND_BASE_URL"); ok {
		cfg.Backend.BaseURL = v
	}
	if v, ok := lookup("BACKEND_MONITORING_API_KEY"); ok {
		cfg.Backend.MonitoringAPIKey = v
	}
	if v, ok := lookup("BACKEND_HEALTH_PATH"); ok {
		cfg.Backend.HealthPath = v
	}
	if v, ok := lookup("REQUEST_TIMEOUT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Backend.RequestTimeoutSeconds = f
		}
	}
	if v, ok := lookup("BACKEND_USE_MOCK"); ok {
		cfg.Backend.UseMock = ParseBool(v, cfg.Backend.UseMock)
	}

	if v, ok := lookup("TELEGRAM_ALLOWED_CHAT_IDS"); ok {
		cfg.Telegram.AllowedChatIDs = ParseChatIDs(v)
	}
	if v, ok := lookup("USERS_PAGE_SIZE"); ok {
		cfg.Telegram.UsersPageSize = ParseInt(v, cfg.Telegram.UsersPageSize)
	}

	if v, ok := lookup("ALERTS_ENABLED"); ok {
		cfg.Alerts.Enabled = ParseBool(v, cfg.Alerts.Enabled)
	}
	if v, ok := lookup("ALERT_NOTIFY_ON_START"); ok {
		cfg.Alerts.NotifyOnStart = ParseBool(v, cfg.Alerts.NotifyOnStart)
	}
	if v, ok := lookup("ALERT_CHECK_INTERVAL_SECONDS"); ok {
		cfg.Alerts.CheckIntervalSeconds = ParseInt(v, cfg.Alerts.CheckIntervalSeconds)
	}
	if v, ok := lookup("ALERT_RECIPIENT_CHAT_IDS"); ok {
		cfg.Alerts.RecipientChatIDs = ParseChatIDs(v)
	}

	l := &cfg.Alerts.Limits
	envInt64("ALERT_MAX_ACTIVE_HTTP_REQUESTS", &l.MaxActiveHTTPRequests)
	envInt64("ALERT_MAX_DB_IN_USE_CONNECTIONS", &l.MaxDBInUseConnections)
	envInt64("ALERT_MAX_GOROUTINES", &l.MaxGoroutines)
	envInt64("ALERT_MAX_GO_MEMORY_MB", &l.MaxGoMemoryMB)
	envInt64("ALERT_MIN_UPLOADS_DISK_FREE_MB", &l.MinUploadsDiskFreeMB)
	envUint64("ALERT_MAX_UPLOAD_4XX_TOTAL", &l.MaxUpload4xxTotal)
	envUint64("ALERT_MAX_UPLOAD_5XX_TOTAL", &l.MaxUpload5xxTotal)
	envUint64("ALERT_MIN_UPLOAD_REQUESTS_FOR_RATE", &l.MinUploadRequestsForRate)
	envPercent("ALERT_MAX_UPLOAD_4XX_RATE_PCT", &l.MaxUpload4xxRatePct)
	envPercent("ALERT_MAX_UPLOAD_5XX_RATE_PCT", &l.MaxUpload5xxRatePct)

	if v, ok := lookup("DEPLOY_ENABLED"); ok {
		cfg.Deploy.Enabled = ParseBool(v, cfg.Deploy.Enabled)
	}
	if v, ok := lookup("DEPLOY_SCRIPT_PATH"); ok {
		cfg.Deploy.ScriptPath = v
	}
	if v, ok := lookup("DEPLOY_REPO_URL"); ok {
		cfg.Deploy.RepoURL = v
	}
	if v, ok := lookup("DEPLOY_BRANCH"); ok {
		cfg.Deploy.Branch = v
	}
	if v, ok := lookup("DEPLOY_APP_DIR"); ok {
		cfg.Deploy.AppDir = v
	}
	if v, ok := lookup("DEPLOY_TIMEOUT_SECONDS"); ok {
		cfg.Deploy.TimeoutSeconds = ParseInt(v, cfg.Deploy.TimeoutSeconds)
	}
	if v, ok := lookup("DEPLOY_ALLOWED_CHAT_IDS"); ok {
		cfg.Deploy.AllowedChatIDs = ParseChatIDs(v)
	}

	if v, ok := lookup("DB_CONTAINER_NAME"); ok {
		cfg.Library.ContainerName = v
	}
	if v, ok := lookup("DB_NAME"); ok {
		cfg.Library.DBName = v
	}
	if v, ok := lookup("DB_USER"); ok {
		cfg.Library.DBUser = v
	}

	if v, ok := lookup("DISCORD_BOT_TOKEN"); ok {
		cfg.Discord.BotToken = v
	}
	if v, ok := lookup("DISCORD_CHANNEL_ID"); ok {
		cfg.Discord.ChannelID = v
	}
	if v, ok := lookup("OPS_SERVER_PORT"); ok {
		cfg.Server.AppPort = v
	}
	if v, ok := lookup("OPS_SERVER_TOKEN"); ok {
		cfg.Server.WebhookToken = v
	}

	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	if cfg.Backend.HealthPath == "" {
		cfg.Backend.HealthPath = "/health"
	}
}

// Validate проверяет обязательные параметры запуска бота.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Backend.MonitoringAPIKey == "" && !c.Backend.UseMock {
		return errors.New("BACKEND_MONITORING_API_KEY is required")
	}
	return nil
}

// RequestTimeout - таймаут одного HTTP-запроса к backend'у.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSeconds * float64(time.Second))
}

// CheckInterval - период watchdog'а, не меньше минуты.
func (c *Config) CheckInterval() time.Duration {
	d := time.Duration(c.Alerts.CheckIntervalSeconds) * time.Second
	if d < minCheckInterval {
		return minCheckInterval
	}
	return d
}

// DeployTimeout - лимит выполнения скрипта деплоя, не меньше минуты.
func (c *Config) DeployTimeout() time.Duration {
	d := time.Duration(c.Deploy.TimeoutSeconds) * time.Second
	if d < minDeployTimeout {
		return minDeployTimeout
	}
	return d
}

// DeployChatIDs - чаты, которым разрешен деплой. Пустой список деплой-чатов
// наследует общий allowlist.
func (c *Config) DeployChatIDs() []int64 {
	if len(c.Deploy.AllowedChatIDs) > 0 {
		return c.Deploy.AllowedChatIDs
	}
	return c.Telegram.AllowedChatIDs
}

// ParseBool понимает 1/true/yes/on и 0/false/no/off, иначе возвращает def.
func ParseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// ParseInt возвращает def для нечисловых и неположительных значений.
func ParseInt(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// ParseChatIDs разбирает список chat id через запятую, пропуская некорректные.
func ParseChatIDs(raw string) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Skipping invalid chat id: %s", part)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envInt64(key string, dst *int64) {
	if v, ok := lookup(key); ok {
		*dst = int64(ParseInt(v, int(*dst)))
	}
}

func envUint64(key string, dst *uint64) {
	if v, ok := lookup(key); ok {
		*dst = uint64(ParseInt(v, int(*dst)))
	}
}

func envPercent(key string, dst *float64) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			*dst = f
		}
	}
}
