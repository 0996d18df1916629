package models

import "time"

// HealthStatus - результат одной проверки health-эндпоинта backend'а.
type HealthStatus struct {
	IsUp   bool
	Detail string
}

// Snapshot - технический снимок backend'а из /api/monitor/snapshot.
type Snapshot struct {
	TimestampUTC        string `json:"timestamp_utc"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
	HTTPActiveRequests  int64  `json:"http_active_requests"`
	HTTPTotalRequests   uint64 `json:"http_total_requests"`
	DBOpenConnections   int64  `json:"db_open_connections"`
	DBInUseConnections  int64  `json:"db_in_use_connections"`
	DBWaitCount         int64  `json:"db_wait_count"`
	Goroutines          int64  `json:"goroutines"`
	GoMemoryAllocBytes  uint64 `json:"go_memory_alloc_bytes"`
	GoMemorySysBytes    uint64 `json:"go_memory_sys_bytes"`
	GoHeapInUseBytes    uint64 `json:"go_heap_in_use_bytes"`
	GoGCCount           uint32 `json:"go_gc_count"`
	UsersTotal          int64  `json:"users_total"`
	SongsTotal          int64  `json:"songs_total"`
	PlaylistsTotal      int64  `json:"playlists_total"`
	SongsTotalSizeBytes int64  `json:"songs_total_size_bytes"`
	DBSizeBytes         int64  `json:"db_size_bytes"`
	UploadsSizeBytes    int64  `json:"uploads_size_bytes"`
	UploadsFilesCount   int64  `json:"uploads_files_count"`
	UploadsFSTotalBytes uint64 `json:"uploads_fs_total_bytes"`
	UploadsFSFreeBytes  uint64 `json:"uploads_fs_free_bytes"`

	// Upload равен nil, если backend не отдает счетчики загрузок.
	Upload *UploadStats `json:"upload,omitempty"`
}

// UploadStats - счетчики загрузок и доли ошибочных ответов в процентах.
type UploadStats struct {
	RequestsTotal      uint64  `json:"upload_requests_total"`
	Status4xxTotal     uint64  `json:"upload_status_4xx_total"`
	Status5xxTotal     uint64  `json:"upload_status_5xx_total"`
	ClientErrorRatePct float64 `json:"upload_client_error_rate_pct"`
	ServerErrorRatePct float64 `json:"upload_server_error_rate_pct"`
}

// IssueKey - идентификатор порогового нарушения.
type IssueKey string

const (
	IssueHTTPActive     IssueKey = "http_active"
	IssueDBInUse        IssueKey = "db_in_use"
	IssueGoroutines     IssueKey = "goroutines"
	IssueMemory         IssueKey = "memory"
	IssueDiskFree       IssueKey = "disk_free"
	IssueUpload4xxTotal IssueKey = "upload_4xx_total"
	IssueUpload5xxTotal IssueKey = "upload_5xx_total"
	IssueUpload4xxRate  IssueKey = "upload_4xx_rate"
	IssueUpload5xxRate  IssueKey = "upload_5xx_rate"
)

// IssueSet - текущие нарушения порогов: ключ присутствует только пока порог нарушен.
type IssueSet map[IssueKey]string

// Clone возвращает независимую копию набора.
func (s IssueSet) Clone() IssueSet {
	out := make(IssueSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// MonitorUser - строка списка пользователей из /api/monitor/users/list.
type MonitorUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	UsedBytes int64     `json:"used_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// UsersPage - страница списка пользователей.
type UsersPage struct {
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalUsers int           `json:"total_users"`
	TotalPages int           `json:"total_pages"`
	Users      []MonitorUser `json:"users"`
}

// DeleteUserSummary - сводка удаления пользователя и связанных данных.
type DeleteUserSummary struct {
	UserID             int   `json:"user_id"`
	CandidateSongs     int   `json:"candidate_songs"`
	DeletedSongs       int   `json:"deleted_songs"`
	DeletedFiles       int   `json:"deleted_files"`
	FileDeleteErrors   int   `json:"file_delete_errors"`
	DeletedPlaylists   int64 `json:"deleted_playlists"`
	DeletedLibraryRows int64 `json:"deleted_library_rows"`
}

// DeleteUserResult - ответ backend'а на удаление пользователя по email.
type DeleteUserResult struct {
	Message string            `json:"message"`
	Email   string            `json:"email"`
	UserID  string            `json:"user_id"`
	Summary DeleteUserSummary `json:"summary"`
}
