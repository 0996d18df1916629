package smoketest

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cloudtune-ops/internal/config"
)

const (
	minPollSleep    = 200 * time.Millisecond
	minLongTimeout  = 60 * time.Second
	defaultPassword = "DeployCheck_123!"
)

// Config - параметры прогона smoke-теста после деплоя.
type Config struct {
	APIBaseURL       string
	MainLandingURL   string
	ResumeLandingURL string
	HealthPath       string
	Timeout          time.Duration
	PollAttempts     int
	PollSleep        time.Duration
}

// ConfigFromEnv читает POST_DEPLOY_TEST_* из окружения процесса.
func ConfigFromEnv() Config {
	return ConfigFromLookup(os.LookupEnv)
}

// ConfigFromLookup собирает Config из произвольного источника переменных.
// Пустые значения заменяются значениями по умолчанию. Лендинги можно
// отключить, задав переменную пустой строкой.
func ConfigFromLookup(lookup func(string) (string, bool)) Config {
	getenv := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	landing := func(key, def string) string {
		v, ok := lookup(key)
		if !ok {
			v = def
		}
		return strings.TrimRight(strings.TrimSpace(v), "/")
	}

	return Config{
		APIBaseURL:       strings.TrimRight(get("POST_DEPLOY_TEST_API_BASE_URL", "http://127.0.0.1:8080"), "/"),
		MainLandingURL:   landing("POST_DEPLOY_TEST_MAIN_LANDING_URL", "https://api-mp3-player.ru"),
		ResumeLandingURL: landing("POST_DEPLOY_TEST_RESUME_LANDING_URL", "https://resume.api-mp3-player.ru"),
		HealthPath:       get("POST_DEPLOY_TEST_HEALTH_PATH", "/health"),
		Timeout:          time.Duration(config.ParseInt(getenv("POST_DEPLOY_TEST_TIMEOUT_SECONDS"), 20)) * time.Second,
		PollAttempts:     max(config.ParseInt(getenv("POST_DEPLOY_TEST_POLL_ATTEMPTS"), 20), 1),
		PollSleep:        max(parseSeconds(getenv("POST_DEPLOY_TEST_POLL_SLEEP_SECONDS"), 2*time.Second), minPollSleep),
	}
}

// longTimeout - таймаут для загрузки и скачивания файла.
func (c Config) longTimeout() time.Duration {
	return max(c.Timeout, minLongTimeout)
}

func parseSeconds(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return time.Duration(sec * float64(time.Second))
}
