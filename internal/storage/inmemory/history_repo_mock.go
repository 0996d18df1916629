package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/service"
)

// MockDeployRepository - это in-memory реализация DeployRepository для тестов
// и для запуска без файла БД.
type MockDeployRepository struct {
	mu      sync.RWMutex
	records []*models.DeployRecord
	nextID  uint
}

func NewMockDeployRepository() service.DeployRepository {
	return &MockDeployRepository{nextID: 1}
}

func (m *MockDeployRepository) Create(ctx context.Context, record *models.DeployRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.nextID
	record.CreatedAt = time.Now()
	m.records = append(m.records, record)
	m.nextID++
	return nil
}

func (m *MockDeployRepository) ListRecent(ctx context.Context, limit int) ([]*models.DeployRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]*models.DeployRecord(nil), m.records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockAlertRepository - это in-memory реализация AlertRepository.
type MockAlertRepository struct {
	mu      sync.RWMutex
	records []*models.AlertRecord
	nextID  uint
}

func NewMockAlertRepository() service.AlertRepository {
	return &MockAlertRepository{nextID: 1}
}

func (m *MockAlertRepository) Create(ctx context.Context, record *models.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.nextID
	record.CreatedAt = time.Now()
	m.records = append(m.records, record)
	m.nextID++
	return nil
}

func (m *MockAlertRepository) ListRecent(ctx context.Context, limit int) ([]*models.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.AlertRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
