package service

import (
	"context"
	"errors"
	"strings"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/monitor"

	"github.com/go-playground/validator/v10"
)

// UserListPageSize - размер страницы треков и плейлистов в карточке пользователя.
const UserListPageSize = 5

var (
	ErrInvalidEmail      = errors.New("invalid email")
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionExpired    = errors.New("user session expired")
	ErrHistoryDisabled   = errors.New("history storage is not configured")
	ErrLibraryDisabled   = errors.New("database lookups are not configured")
	errUnknownReportKind = errors.New("unknown monitoring report")
)

// ReportKinds - текстовые отчеты, которые отдает /api/monitor/<kind>.
var ReportKinds = []string{"status", "storage", "connections", "runtime", "all"}

// Page - страница списка с уже ограниченным номером.
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	Total      int
}

// MonitoringService предоставляет бизнес-логику команд бота мониторинга.
type MonitoringService struct {
	backend       BackendClient
	library       LibraryQuerier
	sessions      *UserSessions
	deploys       DeployRepository
	alerts        AlertRepository
	state         *monitor.State
	usersPageSize int
	validate      *validator.Validate
}

// NewMonitoringService создает новый экземпляр MonitoringService.
// library, deploys и alerts могут быть nil: соответствующие команды вернут ошибку.
func NewMonitoringService(backend BackendClient, library LibraryQuerier, sessions *UserSessions, deploys DeployRepository, alerts AlertRepository, state *monitor.State, usersPageSize int) *MonitoringService {
	if sessions == nil {
		sessions = NewUserSessions(DefaultSessionTTL)
	}
	if state == nil {
		state = monitor.NewState()
	}
	return &MonitoringService{
		backend:       backend,
		library:       library,
		sessions:      sessions,
		deploys:       deploys,
		alerts:        alerts,
		state:         state,
		usersPageSize: max(usersPageSize, 1),
		validate:      validator.New(),
	}
}

// Report возвращает текстовый отчет backend'а указанного вида.
func (s *MonitoringService) Report(ctx context.Context, kind string) (string, error) {
	for _, k := range ReportKinds {
		if k == kind {
			return s.backend.FetchText(ctx, kind)
		}
	}
	return "", errUnknownReportKind
}

func (s *MonitoringService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.backend.FetchSnapshot(ctx)
}

// UsersPage возвращает страницу списка пользователей backend'а.
func (s *MonitoringService) UsersPage(ctx context.Context, page int) (*models.UsersPage, error) {
	return s.backend.ListUsers(ctx, max(page, 1), s.usersPageSize)
}

// WatchdogState возвращает последнее наблюдение watchdog'а.
func (s *MonitoringService) WatchdogState() monitor.Observation {
	return s.state.Current()
}

// NormalizeEmail приводит email к нижнему регистру и проверяет формат.
func (s *MonitoringService) NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// LooksLikeEmail сообщает, можно ли считать текст сообщения email-адресом.
func (s *MonitoringService) LooksLikeEmail(raw string) bool {
	_, err := s.NormalizeEmail(raw)
	return err == nil
}

// FindUser ищет пользователя по email и открывает для него сессию карточки.
func (s *MonitoringService) FindUser(ctx context.Context, rawEmail string) (*models.LibraryUser, string, error) {
	email, err := s.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, "", err
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, "", err
	}
	return user, s.sessions.Create(email), nil
}

// UserByToken загружает пользователя по токену сессии карточки.
// Возвращает email даже при ErrUserNotFound, чтобы его можно было показать.
func (s *MonitoringService) UserByToken(ctx context.Context, token string) (*models.LibraryUser, string, error) {
	email, ok := s.sessions.Resolve(token)
	if !ok {
		return nil, "", ErrSessionExpired
	}
	user, err := s.lookup(ctx, email)
	return user, email, err
}

func (s *MonitoringService) lookup(ctx context.Context, email string) (*models.LibraryUser, error) {
	if s.library == nil {
		return nil, ErrLibraryDisabled
	}
	user, err := s.library.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *MonitoringService) StorageSummary(ctx context.Context, userID int64) (models.StorageSummary, error) {
	if s.library == nil {
		return models.StorageSummary{}, ErrLibraryDisabled
	}
	return s.library.StorageSummary(ctx, userID)
}

func (s *MonitoringService) PlaylistCount(ctx context.Context, userID int64) (int, error) {
	if s.library == nil {
		return 0, ErrLibraryDisabled
	}
	return s.library.PlaylistCount(ctx, userID)
}

// TracksPage возвращает страницу треков; номер страницы ограничивается [1, TotalPages].
func (s *MonitoringService) TracksPage(ctx context.Context, userID int64, page int) (Page[models.Track], error) {
	if s.library == nil {
		return Page[models.Track]{}, ErrLibraryDisabled
	}
	return paged(ctx, page, UserListPageSize, func(ctx context.Context, page int) ([]models.Track, int, error) {
		return s.library.Tracks(ctx, userID, page, UserListPageSize)
	})
}

// PlaylistsPage возвращает страницу плейлистов; номер страницы ограничивается [1, TotalPages].
func (s *MonitoringService) PlaylistsPage(ctx context.Context, userID int64, page int) (Page[models.Playlist], error) {
	if s.library == nil {
		return Page[models.Playlist]{}, ErrLibraryDisabled
	}
	return paged(ctx, page, UserListPageSize, func(ctx context.Context, page int) ([]models.Playlist, int, error) {
		return s.library.Playlists(ctx, userID, page, UserListPageSize)
	})
}

func paged[T any](ctx context.Context, page, size int, load func(ctx context.Context, page int) ([]T, int, error)) (Page[T], error) {
	page = max(page, 1)
	items, total, err := load(ctx, page)
	if err != nil {
		return Page[T]{}, err
	}

	totalPages := TotalPages(total, size)
	if page > totalPages {
		page = totalPages
		items, total, err = load(ctx, page)
		if err != nil {
			return Page[T]{}, err
		}
		totalPages = TotalPages(total, size)
	}
	return Page[T]{Items: items, Page: page, TotalPages: totalPages, Total: total}, nil
}

// TotalPages - количество страниц, не меньше одной.
func TotalPages(total, size int) int {
	size = max(size, 1)
	return max((total+size-1)/size, 1)
}

// OpenSession выдает токен для кнопок подтверждения без обращения к БД.
func (s *MonitoringService) OpenSession(rawEmail string) (email, token string, err error) {
	email, err = s.NormalizeEmail(rawEmail)
	if err != nil {
		return "", "", err
	}
	return email, s.sessions.Create(email), nil
}

// ResolveSession возвращает email по токену кнопки.
func (s *MonitoringService) ResolveSession(token string) (string, error) {
	email, ok := s.sessions.Resolve(token)
	if !ok {
		return "", ErrSessionExpired
	}
	return email, nil
}

// DeleteUser удаляет пользователя через API мониторинга backend'а.
func (s *MonitoringService) DeleteUser(ctx context.Context, rawEmail string) (*models.DeleteUserResult, error) {
	email, err := s.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	return s.backend.DeleteUserByEmail(ctx, email)
}

// RecentDeploys возвращает последние запуски деплоя.
func (s *MonitoringService) RecentDeploys(ctx context.Context, limit int) ([]*models.DeployRecord, error) {
	if s.deploys == nil {
		return nil, ErrHistoryDisabled
	}
	return s.deploys.ListRecent(ctx, limit)
}

// RecentAlerts возвращает последние разосланные алерты.
func (s *MonitoringService) RecentAlerts(ctx context.Context, limit int) ([]*models.AlertRecord, error) {
	if s.alerts == nil {
		return nil, ErrHistoryDisabled
	}
	return s.alerts.ListRecent(ctx, limit)
}
