package http

import "cloudtune-ops/internal/models"

type textResponse struct {
	Text *string `json:"text" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// snapshotPayload - снимок в том виде, в каком его отдает backend. Метрики,
// по которым считаются пороги, обязательны: их отсутствие означает
// несовместимый backend, а не нулевое значение.
type snapshotPayload struct {
	TimestampUTC        string  `json:"timestamp_utc"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
	HTTPActiveRequests  *int64  `json:"http_active_requests" validate:"required"`
	HTTPTotalRequests   uint64  `json:"http_total_requests"`
	DBOpenConnections   int64   `json:"db_open_connections"`
	DBInUseConnections  *int64  `json:"db_in_use_connections" validate:"required"`
	DBWaitCount         int64   `json:"db_wait_count"`
	Goroutines          *int64  `json:"goroutines" validate:"required"`
	GoMemoryAllocBytes  *uint64 `json:"go_memory_alloc_bytes" validate:"required"`
	GoMemorySysBytes    uint64  `json:"go_memory_sys_bytes"`
	GoHeapInUseBytes    uint64  `json:"go_heap_in_use_bytes"`
	GoGCCount           uint32  `json:"go_gc_count"`
	UsersTotal          int64   `json:"users_total"`
	SongsTotal          int64   `json:"songs_total"`
	PlaylistsTotal      int64   `json:"playlists_total"`
	SongsTotalSizeBytes int64   `json:"songs_total_size_bytes"`
	DBSizeBytes         int64   `json:"db_size_bytes"`
	UploadsSizeBytes    int64   `json:"uploads_size_bytes"`
	UploadsFilesCount   int64   `json:"uploads_files_count"`
	UploadsFSTotalBytes uint64  `json:"uploads_fs_total_bytes"`
	UploadsFSFreeBytes  *uint64 `json:"uploads_fs_free_bytes" validate:"required"`

	UploadRequestsTotal      *uint64 `json:"upload_requests_total"`
	UploadStatus4xxTotal     uint64  `json:"upload_status_4xx_total"`
	UploadStatus5xxTotal     uint64  `json:"upload_status_5xx_total"`
	UploadClientErrorRatePct float64 `json:"upload_client_error_rate_pct"`
	UploadServerErrorRatePct float64 `json:"upload_server_error_rate_pct"`
}

func (p *snapshotPayload) toModel() *models.Snapshot {
	s := &models.Snapshot{
		TimestampUTC:        p.TimestampUTC,
		UptimeSeconds:       p.UptimeSeconds,
		HTTPActiveRequests:  *p.HTTPActiveRequests,
		HTTPTotalRequests:   p.HTTPTotalRequests,
		DBOpenConnections:   p.DBOpenConnections,
		DBInUseConnections:  *p.DBInUseConnections,
		DBWaitCount:         p.DBWaitCount,
		Goroutines:          *p.Goroutines,
		GoMemoryAllocBytes:  *p.GoMemoryAllocBytes,
		GoMemorySysBytes:    p.GoMemorySysBytes,
		GoHeapInUseBytes:    p.GoHeapInUseBytes,
		GoGCCount:           p.GoGCCount,
		UsersTotal:          p.UsersTotal,
		SongsTotal:          p.SongsTotal,
		PlaylistsTotal:      p.PlaylistsTotal,
		SongsTotalSizeBytes: p.SongsTotalSizeBytes,
		DBSizeBytes:         p.DBSizeBytes,
		UploadsSizeBytes:    p.UploadsSizeBytes,
		UploadsFilesCount:   p.UploadsFilesCount,
		UploadsFSTotalBytes: p.UploadsFSTotalBytes,
		UploadsFSFreeBytes:  *p.UploadsFSFreeBytes,
	}
	if p.UploadRequestsTotal != nil {
		s.Upload = &models.UploadStats{
			RequestsTotal:      *p.UploadRequestsTotal,
			Status4xxTotal:     p.UploadStatus4xxTotal,
			Status5xxTotal:     p.UploadStatus5xxTotal,
			ClientErrorRatePct: p.UploadClientErrorRatePct,
			ServerErrorRatePct: p.UploadServerErrorRatePct,
		}
	}
	return s
}
