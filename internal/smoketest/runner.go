// Package smoketest checks a freshly deployed CloudTune API end to end:
// health, auth, storage, upload, library, playlists, download and deletion.
package smoketest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minDownloadBytes = 128

// Runner выполняет шаги проверки последовательно и пишет журнал
// строками [STEP]/[OK] в out.
type Runner struct {
	cfg       Config
	api       *apiClient
	out       io.Writer
	newSuffix func() string
}

func NewRunner(cfg Config, out io.Writer) *Runner {
	return &Runner{
		cfg: cfg,
		api: &apiClient{
			http:    &http.Client{},
			baseURL: cfg.APIBaseURL,
			timeout: cfg.Timeout,
		},
		out:       out,
		newSuffix: randomSuffix,
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// run хранит данные, созданные в ходе прогона, для следующих шагов и очистки.
type run struct {
	suffix      string
	email       string
	username    string
	token       string
	songID      int64
	songDeleted bool
	playlistID  int64
}

type step struct {
	title string
	fn    func(ctx context.Context, s *run) error
}

// Run возвращает nil, если все проверки прошли. Ошибки проверок имеют
// тип *Failure. Очистка выполняется всегда; ее ошибка проваливает
// только успешный прогон.
func (r *Runner) Run(ctx context.Context) (err error) {
	suffix := r.newSuffix()
	s := &run{
		suffix:   suffix,
		email:    fmt.Sprintf("deploy.check.%s@example.com", suffix),
		username: "deploy_check_" + suffix,
	}

	defer func() {
		cleanupErr := r.cleanup(ctx, s)
		switch {
		case cleanupErr == nil:
		case err == nil:
			err = cleanupErr
		default:
			fmt.Fprintf(r.out, "[WARN] cleanup failed: %v\n", cleanupErr)
		}
	}()

	steps := []step{
		{"poll health endpoint until backend is ready", r.pollHealth},
		{"check /api/status", r.checkStatus},
		{"register a fresh test user", r.register},
		{"login with created credentials", r.login},
		{"check protected storage endpoint", r.checkStorage},
		{"upload a WAV file", r.upload},
		{"validate library contains uploaded song", r.checkLibrary},
		{"fetch uploaded song details", r.checkSong},
		{"create playlist", r.createPlaylist},
		{"add song to playlist", r.addToPlaylist},
		{"validate playlist songs endpoint", r.checkPlaylistSongs},
		{"download uploaded song", r.download},
		{"delete uploaded song", r.deleteSong},
		{"verify deleted song is inaccessible", r.checkDeleted},
		{"check main landing URL", r.landing("main", r.cfg.MainLandingURL)},
		{"check resume landing URL", r.landing("resume", r.cfg.ResumeLandingURL)},
	}
	for _, st := range steps {
		fmt.Fprintf(r.out, "[STEP] %s\n", st.title)
		if err := st.fn(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) ok(format string, args ...any) {
	fmt.Fprintf(r.out, "[OK] "+format+"\n", args...)
}

func (r *Runner) pollHealth(ctx context.Context, _ *run) error {
	url := r.cfg.APIBaseURL + r.cfg.HealthPath
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.cfg.PollSleep), uint64(max(r.cfg.PollAttempts, 1)-1)),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		resp, err := r.api.do(ctx, http.MethodGet, url, nil, nil, 0)
		if err != nil {
			return err
		}
		if resp.Status != http.StatusOK {
			return fmt.Errorf("HTTP %d", resp.Status)
		}
		return nil
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return failf("health check did not become healthy: %s (last error: %v)", url, err)
	}
	r.ok("health check is up (attempt %d/%d)", attempt, r.cfg.PollAttempts)
	return nil
}

func (r *Runner) checkStatus(ctx context.Context, _ *run) error {
	const label = "GET /api/status"
	resp, err := r.api.get(ctx, "/api/status", "")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return err
	}
	payload, err := decodeObject(resp, label)
	if err != nil {
		return err
	}
	if _, ok := payload["status"].(string); !ok {
		return failf("%s: missing textual 'status' field: %s", label, resp.Body)
	}
	r.ok("status endpoint responds with valid payload")
	return nil
}

func (r *Runner) register(ctx context.Context, s *run) error {
	const label = "POST /auth/register"
	token, err := r.authenticate(ctx, "/auth/register", label, map[string]string{
		"email":    s.email,
		"username": s.username,
		"password": defaultPassword,
	})
	if err != nil {
		return err
	}
	s.token = token
	r.ok("register flow works")
	return nil
}

func (r *Runner) login(ctx context.Context, s *run) error {
	const label = "POST /auth/login"
	token, err := r.authenticate(ctx, "/auth/login", label, map[string]string{
		"email":    s.email,
		"password": defaultPassword,
	})
	if err != nil {
		return err
	}
	s.token = token
	r.ok("login flow works")
	return nil
}

// authenticate отправляет учетные данные и возвращает выданный JWT.
func (r *Runner) authenticate(ctx context.Context, path, label string, body map[string]string) (string, error) {
	resp, err := r.api.postJSON(ctx, path, "", body)
	if err != nil {
		return "", err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return "", err
	}
	payload, err := decodeObject(resp, label)
	if err != nil {
		return "", err
	}
	token, err := requireString(payload, "token", label)
	if err != nil {
		return "", err
	}
	// Подпись проверяет backend; здесь важен только формат токена.
	if _, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err != nil {
		return "", failf("%s: token is not a valid JWT: %v", label, err)
	}
	return token, nil
}

func (r *Runner) checkStorage(ctx context.Context, s *run) error {
	const label = "GET /api/storage/usage"
	payload, err := r.getObject(ctx, "/api/storage/usage", s.token, label)
	if err != nil {
		return err
	}
	for _, key := range []string{"used_bytes", "quota_bytes", "remaining_bytes"} {
		if _, ok := payload[key]; !ok {
			return failf("%s: missing key '%s'", label, key)
		}
	}
	r.ok("storage endpoint works")
	return nil
}

func (r *Runner) upload(ctx context.Context, s *run) error {
	const label = "POST /api/songs/upload"
	resp, err := r.api.postFile(ctx, "/api/songs/upload", s.token, "file", "test.wav", "audio/wav", silentWAV(), r.cfg.longTimeout())
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return err
	}
	payload, err := decodeObject(resp, label)
	if err != nil {
		return err
	}
	id, err := requireID(payload, "song_id", label)
	if err != nil {
		return err
	}
	s.songID = id
	r.ok("upload works, song_id=%d", id)
	return nil
}

func (r *Runner) checkLibrary(ctx context.Context, s *run) error {
	const label = "GET /api/songs/library"
	payload, err := r.getObject(ctx, "/api/songs/library", s.token, label)
	if err != nil {
		return err
	}
	found, err := containsID(payload, "songs", s.songID, label)
	if err != nil {
		return err
	}
	if !found {
		return failf("%s: uploaded song not found", label)
	}
	r.ok("library contains uploaded song")
	return nil
}

func (r *Runner) checkSong(ctx context.Context, s *run) error {
	const label = "GET /api/songs/:id"
	payload, err := r.getObject(ctx, fmt.Sprintf("/api/songs/%d", s.songID), s.token, label)
	if err != nil {
		return err
	}
	if _, ok := payload["song"]; !ok {
		return failf("%s: missing 'song'", label)
	}
	r.ok("song details endpoint works")
	return nil
}

func (r *Runner) createPlaylist(ctx context.Context, s *run) error {
	const label = "POST /api/playlists"
	resp, err := r.api.postJSON(ctx, "/api/playlists", s.token, map[string]string{
		"name": "Deploy Test " + s.suffix,
	})
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return err
	}
	payload, err := decodeObject(resp, label)
	if err != nil {
		return err
	}
	id, err := requireID(payload, "playlist_id", label)
	if err != nil {
		return err
	}
	s.playlistID = id
	r.ok("playlist created, playlist_id=%d", id)
	return nil
}

func (r *Runner) addToPlaylist(ctx context.Context, s *run) error {
	path := fmt.Sprintf("/api/playlists/%d/songs/%d", s.playlistID, s.songID)
	resp, err := r.api.do(ctx, http.MethodPost, r.api.url(path), bearer(s.token), nil, 0)
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, "POST /api/playlists/:playlist_id/songs/:song_id"); err != nil {
		return err
	}
	r.ok("song added to playlist")
	return nil
}

func (r *Runner) checkPlaylistSongs(ctx context.Context, s *run) error {
	const label = "GET /api/playlists/:playlist_id/songs"
	payload, err := r.getObject(ctx, fmt.Sprintf("/api/playlists/%d/songs", s.playlistID), s.token, label)
	if err != nil {
		return err
	}
	found, err := containsID(payload, "songs", s.songID, label)
	if err != nil {
		return err
	}
	if !found {
		return failf("%s: uploaded song not found in playlist", label)
	}
	r.ok("playlist contains uploaded song")
	return nil
}

func (r *Runner) download(ctx context.Context, s *run) error {
	const label = "GET /api/songs/download/:id"
	url := r.api.url(fmt.Sprintf("/api/songs/download/%d", s.songID))
	resp, err := r.api.do(ctx, http.MethodGet, url, bearer(s.token), nil, r.cfg.longTimeout())
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return err
	}
	if len(resp.Body) < minDownloadBytes {
		return failf("%s: response body too small", label)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "audio") && !strings.Contains(contentType, "octet-stream") {
		return failf("%s: unexpected content-type '%s'", label, contentType)
	}
	r.ok("download endpoint works")
	return nil
}

func (r *Runner) deleteSong(ctx context.Context, s *run) error {
	resp, err := r.api.delete(ctx, fmt.Sprintf("/api/songs/%d", s.songID), s.token)
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK, "DELETE /api/songs/:id"); err != nil {
		return err
	}
	s.songDeleted = true
	r.ok("song deletion works")
	return nil
}

func (r *Runner) checkDeleted(ctx context.Context, s *run) error {
	resp, err := r.api.get(ctx, fmt.Sprintf("/api/songs/%d", s.songID), s.token)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusForbidden && resp.Status != http.StatusNotFound {
		return failf("GET deleted /api/songs/:id: expected 403/404, got %d", resp.Status)
	}
	r.ok("deleted song is not accessible")
	return nil
}

// landing проверяет внешнюю страницу; пустой url пропускает шаг.
func (r *Runner) landing(name, url string) func(context.Context, *run) error {
	return func(ctx context.Context, _ *run) error {
		if url == "" {
			r.ok("%s landing check skipped", name)
			return nil
		}
		resp, err := r.api.do(ctx, http.MethodGet, url, nil, nil, 0)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.StatusOK, "GET "+url); err != nil {
			return err
		}
		r.ok("%s landing is reachable", name)
		return nil
	}
}

func (r *Runner) getObject(ctx context.Context, path, token, label string) (map[string]any, error) {
	resp, err := r.api.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if err := expectStatus(resp, http.StatusOK, label); err != nil {
		return nil, err
	}
	return decodeObject(resp, label)
}

// cleanup удаляет плейлист, песню (если шаг удаления не дошел) и профиль
// тестового пользователя. Отсутствующий маршрут удаления профиля не ошибка.
func (r *Runner) cleanup(ctx context.Context, s *run) error {
	if s.token == "" {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	fmt.Fprintln(r.out, "[STEP] cleanup test data")

	var errs []error
	if s.playlistID != 0 {
		errs = append(errs, r.remove(ctx, fmt.Sprintf("/api/playlists/%d", s.playlistID), s.token, "DELETE /api/playlists/:playlist_id", http.StatusNotFound))
	}
	if s.songID != 0 && !s.songDeleted {
		errs = append(errs, r.remove(ctx, fmt.Sprintf("/api/songs/%d", s.songID), s.token, "DELETE /api/songs/:id", http.StatusNotFound))
	}
	errs = append(errs, r.remove(ctx, "/api/profile", s.token, "DELETE /api/profile", http.StatusNotFound, http.StatusMethodNotAllowed))

	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.ok("test data removed")
	return nil
}

// remove считает успехом 200 и любой из tolerated статусов.
func (r *Runner) remove(ctx context.Context, path, token, label string, tolerated ...int) error {
	resp, err := r.api.delete(ctx, path, token)
	if err != nil {
		return err
	}
	if resp.Status == http.StatusOK {
		return nil
	}
	for _, code := range tolerated {
		if resp.Status == code {
			r.ok("%s: HTTP %d, skipped", label, code)
			return nil
		}
	}
	return expectStatus(resp, http.StatusOK, label)
}
