package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloudtune-ops/internal/models"
)

// MonitoringClientMock имитирует API мониторинга backend'а CloudTune.
// Используется при backend.use_mock=true и в тестах.
type MonitoringClientMock struct {
	mu sync.Mutex

	// FailNextCall используется для тестирования сценариев с ошибками.
	FailNextCall bool
	Down         bool
	Snapshot     models.Snapshot
	Users        []models.MonitorUser
	Texts        map[string]string

	probes int
}

// NewMonitoringClientMock создает мок со здоровым backend'ом и правдоподобными метриками.
func NewMonitoringClientMock() *MonitoringClientMock {
	return &MonitoringClientMock{
		Snapshot: models.Snapshot{
			TimestampUTC:       time.Now().UTC().Format(time.RFC3339),
			UptimeSeconds:      7200,
			HTTPActiveRequests: 4,
			HTTPTotalRequests:  1532,
			DBOpenConnections:  6,
			DBInUseConnections: 2,
			Goroutines:         48,
			GoMemoryAllocBytes: 64 << 20,
			GoMemorySysBytes:   128 << 20,
			GoHeapInUseBytes:   72 << 20,
			UsersTotal:         3,
			SongsTotal:         120,
			PlaylistsTotal:     9,
			UploadsSizeBytes:   3 << 30,
			UploadsFilesCount:  120,
			UploadsFSFreeBytes: 40 << 30,
		},
		Users: []models.MonitorUser{
			{ID: 1, Email: "alice@example.com", Username: "alice", UsedBytes: 1 << 30, CreatedAt: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)},
			{ID: 2, Email: "bob@example.com", Username: "bob", UsedBytes: 512 << 20, CreatedAt: time.Date(2025, 10, 5, 12, 30, 0, 0, time.UTC)},
			{ID: 3, Email: "carol@example.com", Username: "carol", UsedBytes: 0, CreatedAt: time.Date(2026, 1, 15, 8, 45, 0, 0, time.UTC)},
		},
		Texts: map[string]string{
			"status":      "Status: ok\nUptime: 2h0m0s",
			"storage":     "Uploads size: 3.00 GB\nUploads free: 40.00 GB",
			"connections": "HTTP active: 4\nDB open: 6\nDB in use: 2",
			"runtime":     "Goroutines: 48\nGo alloc: 64.00 MB",
			"all":         "Status\nUptime: 2h0m0s\nRuntime\nGoroutines: 48",
		},
	}
}

func (m *MonitoringClientMock) failed() bool {
	if m.FailNextCall {
		m.FailNextCall = false // Сбрасываем флаг после использования
		return true
	}
	return false
}

// SetDown переключает имитируемую доступность backend'а.
func (m *MonitoringClientMock) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Down = down
}

// Probes возвращает количество выполненных проверок здоровья.
func (m *MonitoringClientMock) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

func (m *MonitoringClientMock) HealthPath() string {
	return "/health"
}

func (m *MonitoringClientMock) Probe(_ context.Context) models.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.Down {
		return models.HealthStatus{Detail: "HTTP 503: mock backend is down"}
	}
	return models.HealthStatus{IsUp: true, Detail: "HTTP 200"}
}

func (m *MonitoringClientMock) FetchText(_ context.Context, kind string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed() {
		return "", errors.New("mock backend failed")
	}
	text, ok := m.Texts[kind]
	if !ok {
		return "", fmt.Errorf("Backend вернул 404: unknown report %q", kind)
	}
	return text, nil
}

func (m *MonitoringClientMock) FetchSnapshot(_ context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed() {
		return nil, errors.New("mock backend failed")
	}
	snap := m.Snapshot
	return &snap, nil
}

func (m *MonitoringClientMock) ListUsers(_ context.Context, page, limit int) (*models.UsersPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed() {
		return nil, errors.New("mock backend failed")
	}

	page = max(page, 1)
	limit = max(limit, 1)
	total := len(m.Users)
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	users := make([]models.MonitorUser, end-start)
	copy(users, m.Users[start:end])

	return &models.UsersPage{
		Page:       page,
		Limit:      limit,
		TotalUsers: total,
		TotalPages: totalPages,
		Users:      users,
	}, nil
}

func (m *MonitoringClientMock) DeleteUserByEmail(_ context.Context, email string) (*models.DeleteUserResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed() {
		return nil, errors.New("mock backend failed")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for i, u := range m.Users {
		if strings.ToLower(u.Email) != email {
			continue
		}
		m.Users = append(m.Users[:i], m.Users[i+1:]...)
		return &models.DeleteUserResult{
			Message: "User deleted successfully",
			Email:   email,
			UserID:  fmt.Sprint(u.ID),
			Summary: models.DeleteUserSummary{UserID: int(u.ID)},
		}, nil
	}
	return nil, errors.New("Backend вернул 404: User not found")
}
