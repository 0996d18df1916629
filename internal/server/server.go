package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/monitor"
	"cloudtune-ops/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	shutdownTimeout     = 5 * time.Second
)

// WatchdogTrigger запрашивает внеочередную проверку backend'а.
type WatchdogTrigger interface {
	Trigger() bool
}

// Start запускает ops HTTP-сервер и останавливает его при отмене ctx.
func Start(ctx context.Context, appPort string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", appPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting ops HTTP server on port %s", appPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops HTTP server shutdown: %w", err)
	}
	log.Println("Ops HTTP server stopped.")
	return nil
}

// NewRouter создает роутер ops API. trigger равен nil, если watchdog выключен;
// metrics равен nil, если экспорт метрик не настроен.
func NewRouter(svc *service.MonitoringService, trigger WatchdogTrigger, metrics http.Handler, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz(svc))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(webhookAuthMiddleware(token))
		r.Get("/watchdog", handleGetWatchdog(svc))
		r.Post("/watchdog/check", handleWatchdogCheck(trigger))
		r.Get("/deploys", handleListDeploys(svc))
		r.Get("/alerts", handleListAlerts(svc))
	})
	return r
}

// --- Middlewares ---

func webhookAuthMiddleware(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedToken == "" { // Если токен не задан, пропускаем проверку
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			if parts[1] != expectedToken {
				http.Error(w, "Invalid token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Responses ---

type watchdogResponse struct {
	Backend   string            `json:"backend"`
	Detail    string            `json:"detail,omitempty"`
	CheckedAt *time.Time        `json:"checked_at,omitempty"`
	Issues    map[string]string `json:"issues"`
	LastError string            `json:"last_error,omitempty"`
	Cycles    uint64            `json:"cycles"`
}

func toWatchdogResponse(obs monitor.Observation) watchdogResponse {
	resp := watchdogResponse{
		Backend:   obs.Backend.String(),
		Detail:    obs.Detail,
		Issues:    make(map[string]string, len(obs.Issues)),
		LastError: obs.LastError,
		Cycles:    obs.Cycles,
	}
	if !obs.CheckedAt.IsZero() {
		at := obs.CheckedAt.UTC()
		resp.CheckedAt = &at
	}
	for k, v := range obs.Issues {
		resp.Issues[string(k)] = v
	}
	return resp
}

type deployResponse struct {
	ID         uint      `json:"id"`
	ChatID     int64     `json:"chat_id"`
	Username   string    `json:"username,omitempty"`
	Branch     string    `json:"branch"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

type alertResponse struct {
	ID         uint              `json:"id"`
	Kind       string            `json:"kind"`
	IssueKey   string            `json:"issue_key,omitempty"`
	Text       string            `json:"text"`
	Recipients int               `json:"recipients"`
	Delivered  int               `json:"delivered"`
	Issues     map[string]string `json:"issues,omitempty"`
	SentAt     time.Time         `json:"sent_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func historyLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(limit, maxHistoryLimit), nil
}

// --- Handlers ---

func handleHealthz(svc *service.MonitoringService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obs := svc.WatchdogState()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"backend": obs.Backend.String(),
			"cycles":  obs.Cycles,
		})
	}
}

func handleGetWatchdog(svc *service.MonitoringService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toWatchdogResponse(svc.WatchdogState()))
	}
}

func handleWatchdogCheck(trigger WatchdogTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			http.Error(w, "Watchdog is disabled", http.StatusServiceUnavailable)
			return
		}
		queued := trigger.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
	}
}

func handleListDeploys(svc *service.MonitoringService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := historyLimit(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := svc.RecentDeploys(r.Context(), limit)
		if err != nil {
			writeHistoryError(w, err)
			return
		}
		out := make([]deployResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, deployResponse{
				ID:         rec.ID,
				ChatID:     rec.ChatID,
				Username:   rec.Username,
				Branch:     rec.Branch,
				Status:     string(rec.Status),
				ExitCode:   rec.ExitCode,
				StartedAt:  rec.StartedAt,
				FinishedAt: rec.FinishedAt,
				DurationMS: rec.Duration().Milliseconds(),
				Error:      rec.Error,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleListAlerts(svc *service.MonitoringService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := historyLimit(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := svc.RecentAlerts(r.Context(), limit)
		if err != nil {
			writeHistoryError(w, err)
			return
		}
		out := make([]alertResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, toAlertResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toAlertResponse(rec *models.AlertRecord) alertResponse {
	resp := alertResponse{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		IssueKey:   rec.IssueKey,
		Text:       rec.Text,
		Recipients: rec.Recipients,
		Delivered:  rec.Delivered,
		SentAt:     rec.SentAt,
	}
	if len(rec.Issues) > 0 {
		resp.Issues = map[string]string(rec.Issues)
	}
	return resp
}

func writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrHistoryDisabled) {
		http.Error(w, "History storage is disabled", http.StatusServiceUnavailable)
		return
	}
	log.Printf("Failed to load history: %v", err)
	http.Error(w, "Failed to load history", http.StatusInternalServerError)
}
