package service

import (
	"context"

	"cloudtune-ops/internal/models"
)

// DeployRepository определяет интерфейс для хранения истории деплоев.
type DeployRepository interface {
	Create(ctx context.Context, record *models.DeployRecord) error
	ListRecent(ctx context.Context, limit int) ([]*models.DeployRecord, error)
}

// AlertRepository определяет интерфейс для хранения отправленных алертов.
type AlertRepository interface {
	Create(ctx context.Context, record *models.AlertRecord) error
	ListRecent(ctx context.Context, limit int) ([]*models.AlertRecord, error)
}

// BackendClient определяет интерфейс для взаимодействия
// с внутренним API мониторинга backend'а CloudTune.
type BackendClient interface {
	Probe(ctx context.Context) models.HealthStatus
	HealthPath() string
	FetchText(ctx context.Context, kind string) (string, error)
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
	ListUsers(ctx context.Context, page, limit int) (*models.UsersPage, error)
	DeleteUserByEmail(ctx context.Context, email string) (*models.DeleteUserResult, error)
}

// LibraryQuerier выполняет прямые запросы к БД backend'а.
type LibraryQuerier interface {
	UserByEmail(ctx context.Context, email string) (*models.LibraryUser, error)
	StorageSummary(ctx context.Context, userID int64) (models.StorageSummary, error)
	Tracks(ctx context.Context, userID int64, page, limit int) ([]models.Track, int, error)
	Playlists(ctx context.Context, userID int64, page, limit int) ([]models.Playlist, int, error)
	PlaylistCount(ctx context.Context, userID int64) (int, error)
}
