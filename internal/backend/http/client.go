package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloudtune-ops/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	monitoringKeyHeader = "X-Monitoring-Key"
	healthDetailLimit   = 120
	maxErrorBodyBytes   = 64 << 10
)

// ErrBadResponse возвращается, если backend ответил 200, но тело не соответствует контракту.
var ErrBadResponse = errors.New("Некорректный формат ответа backend")

// StatusError - backend ответил статусом, отличным от ожидаемого.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Backend вернул %d: %s", e.Code, e.Body)
}

// MonitoringClient ходит во внутренний API мониторинга CloudTune.
type MonitoringClient struct {
	client     *http.Client
	baseURL    string
	healthPath string
	apiKey     string
	validate   *validator.Validate
}

func NewMonitoringClient(baseURL, healthPath, apiKey string, timeout time.Duration) *MonitoringClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if healthPath == "" {
		healthPath = "/health"
	}
	return &MonitoringClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthPath: healthPath,
		apiKey:     apiKey,
		validate:   validator.New(),
	}
}

// HealthPath возвращает путь, по которому проверяется живость backend'а.
func (c *MonitoringClient) HealthPath() string {
	return c.healthPath
}

// Probe выполняет одну проверку health-эндпоинта. Ошибок не возвращает:
// любой сбой транспорта превращается в статус DOWN с текстом ошибки.
func (c *MonitoringClient) Probe(ctx context.Context) models.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return models.HealthStatus{Detail: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.HealthStatus{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return models.HealthStatus{IsUp: true, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return models.HealthStatus{
		Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncateRunes(string(body), healthDetailLimit)),
	}
}

// FetchText возвращает текстовый отчет /api/monitor/<kind>.
func (c *MonitoringClient) FetchText(ctx context.Context, kind string) (string, error) {
	var payload textResponse
	if err := c.getJSON(ctx, "/api/monitor/"+kind, nil, &payload); err != nil {
		return "", err
	}
	if err := c.validate.Struct(payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return *payload.Text, nil
}

// FetchSnapshot возвращает технический снимок backend'а.
func (c *MonitoringClient) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var payload snapshotPayload
	if err := c.getJSON(ctx, "/api/monitor/snapshot", nil, &payload); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrBadResponse, err)
	}
	return payload.toModel(), nil
}

// ListUsers возвращает страницу списка пользователей.
func (c *MonitoringClient) ListUsers(ctx context.Context, page, limit int) (*models.UsersPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(max(page, 1)))
	query.Set("limit", strconv.Itoa(max(limit, 1)))

	var payload models.UsersPage
	if err := c.getJSON(ctx, "/api/monitor/users/list", query, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// DeleteUserByEmail удаляет пользователя со всеми его данными.
func (c *MonitoringClient) DeleteUserByEmail(ctx context.Context, email string) (*models.DeleteUserResult, error) {
	query := url.Values{}
	query.Set("email", email)

	var payload models.DeleteUserResult
	if err := c.do(ctx, http.MethodDelete, "/api/monitor/users/by-email", query, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *MonitoringClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

func (c *MonitoringClient) do(ctx context.Context, method, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(monitoringKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{Code: resp.StatusCode, Body: errorText(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

// errorText достает поле error из JSON-ответа, иначе возвращает тело как есть.
func errorText(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
