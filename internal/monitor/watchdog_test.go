package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	backendhttp "cloudtune-ops/internal/backend/http"
	"cloudtune-ops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProber struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func (p *scriptedProber) Probe(_ context.Context) models.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	up := p.script[len(p.script)-1]
	if p.calls < len(p.script) {
		up = p.script[p.calls]
	}
	p.calls++
	if up {
		return models.HealthStatus{IsUp: true, Detail: "HTTP 200"}
	}
	return models.HealthStatus{Detail: "HTTP 500: down"}
}

func (p *scriptedProber) HealthPath() string { return "/health" }

type fakeFetcher struct {
	snapshots []*models.Snapshot
	errs      []error
	calls     int
	panicOn   int
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context) (*models.Snapshot, error) {
	i := f.calls
	f.calls++
	if f.panicOn > 0 && f.calls == f.panicOn {
		panic("broken snapshot")
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.snapshots) {
		return f.snapshots[i], nil
	}
	return f.snapshots[len(f.snapshots)-1], nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Broadcast(_ context.Context, text string) models.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return models.Delivery{Recipients: 1, Delivered: 1}
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type memoryAlertStore struct {
	mu      sync.Mutex
	records []*models.AlertRecord
}

func (s *memoryAlertStore) Create(_ context.Context, r *models.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func countWith(messages []string, marker string) int {
	n := 0
	for _, m := range messages {
		if strings.Contains(m, marker) {
			n++
		}
	}
	return n
}

const (
	markStarted   = "Мониторинг запущен"
	markDown      = "BACKEND НЕДОСТУПЕН"
	markRecovered = "BACKEND ВОССТАНОВЛЕН"
	markExceeded  = "Порог мониторинга превышен"
	markCleared   = "Порог мониторинга восстановлен"
	markError     = "Ошибка расширенного мониторинга"
)

func newTestWatchdog(prober Prober, fetcher SnapshotFetcher, notifier Notifier, store AlertStore) *Watchdog {
	w := NewWatchdog(prober, fetcher, notifier, store, nil, nil, Options{
		Interval:      time.Minute,
		NotifyOnStart: true,
		Limits:        testLimits(),
	})
	w.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func runCycles(w *Watchdog, n int) {
	for i := 0; i < n; i++ {
		w.safeCycle(context.Background())
	}
}

func TestWatchdog_StartupNoticeOnly(t *testing.T) {
	notifier := &recordingNotifier{}
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}}, notifier, nil)

	runCycles(w, 3)

	msgs := notifier.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], markStarted)
	assert.Contains(t, msgs[0], "<b>UP</b>")
	assert.Contains(t, msgs[0], "2026-03-01 12:00:00 UTC")
	assert.Equal(t, StateUp, w.State().Backend())
	assert.Equal(t, uint64(3), w.State().Current().Cycles)
}

func TestWatchdog_NotifyOnStartDisabled(t *testing.T) {
	notifier := &recordingNotifier{}
	w := newTestWatchdog(&scriptedProber{script: []bool{false, true}}, &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}}, notifier, nil)
	w.notifyOnStart = false

	runCycles(w, 2)

	msgs := notifier.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], markRecovered)
}

func TestWatchdog_DownAndRecoveryAreEdgeTriggered(t *testing.T) {
	notifier := &recordingNotifier{}
	store := &memoryAlertStore{}
	prober := &scriptedProber{script: []bool{true, false, false, true, true}}
	w := newTestWatchdog(prober, &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}}, notifier, store)

	runCycles(w, 5)

	msgs := notifier.all()
	assert.Equal(t, 1, countWith(msgs, markStarted))
	assert.Equal(t, 1, countWith(msgs, markDown))
	assert.Equal(t, 1, countWith(msgs, markRecovered))
	assert.Len(t, msgs, 3)

	require.Len(t, store.records, 3)
	assert.Equal(t, models.AlertBackendDown, store.records[1].Kind)
	assert.Equal(t, 1, store.records[1].Delivered)
}

func TestWatchdog_NoDuplicateExceededNotices(t *testing.T) {
	notifier := &recordingNotifier{}
	hot := healthySnapshot()
	hot.Goroutines = 900
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, &fakeFetcher{snapshots: []*models.Snapshot{hot}}, notifier, nil)

	runCycles(w, 4)

	msgs := notifier.all()
	assert.Equal(t, 1, countWith(msgs, markExceeded))
	assert.Equal(t, 0, countWith(msgs, markCleared))
	assert.Contains(t, w.State().Current().Issues, models.IssueGoroutines)
}

func TestWatchdog_ChangedIssueTextIsRenotified(t *testing.T) {
	notifier := &recordingNotifier{}
	first := healthySnapshot()
	first.Goroutines = 900
	second := healthySnapshot()
	second.Goroutines = 950
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, &fakeFetcher{snapshots: []*models.Snapshot{first, second, healthySnapshot()}}, notifier, nil)

	runCycles(w, 3)

	msgs := notifier.all()
	assert.Equal(t, 2, countWith(msgs, markExceeded))
	assert.Equal(t, 1, countWith(msgs, markCleared))
	assert.Contains(t, msgs[len(msgs)-1], "goroutines")
}

func TestWatchdog_RecoveryStartsFromCleanBaseline(t *testing.T) {
	notifier := &recordingNotifier{}
	hot := healthySnapshot()
	hot.GoMemoryAllocBytes = 900 * bytesPerMB
	prober := &scriptedProber{script: []bool{true, false, true}}
	w := newTestWatchdog(prober, &fakeFetcher{snapshots: []*models.Snapshot{hot}}, notifier, nil)

	runCycles(w, 3)

	msgs := notifier.all()
	// The issue is raised again after recovery, and never "cleared" while down.
	assert.Equal(t, 2, countWith(msgs, markExceeded))
	assert.Equal(t, 0, countWith(msgs, markCleared))
	assert.Equal(t, 1, countWith(msgs, markRecovered))
}

func TestWatchdog_FetchErrorResetsBaseline(t *testing.T) {
	notifier := &recordingNotifier{}
	hot := healthySnapshot()
	hot.DBInUseConnections = 80
	fetcher := &fakeFetcher{
		snapshots: []*models.Snapshot{hot},
		errs:      []error{nil, errors.New("Backend вернул 500: <oops>"), nil},
	}
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, fetcher, notifier, nil)

	runCycles(w, 3)

	msgs := notifier.all()
	assert.Equal(t, 1, countWith(msgs, markError))
	assert.Equal(t, 2, countWith(msgs, markExceeded))
	assert.Equal(t, 0, countWith(msgs, markCleared))
	assert.Equal(t, 1, countWith(msgs, "&lt;oops&gt;"))
}

func TestWatchdog_PanicDoesNotStopLoop(t *testing.T) {
	notifier := &recordingNotifier{}
	fetcher := &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}, panicOn: 1}
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, fetcher, notifier, nil)

	assert.NotPanics(t, func() { runCycles(w, 2) })
	assert.Equal(t, 2, fetcher.calls)
}

func TestWatchdog_RunStopsOnCancelAndHonorsTrigger(t *testing.T) {
	notifier := &recordingNotifier{}
	prober := &scriptedProber{script: []bool{true}}
	w := newTestWatchdog(prober, &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}}, notifier, nil)
	w.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.State().Current().Cycles == 1 }, time.Second, 5*time.Millisecond)

	w.Trigger()
	require.Eventually(t, func() bool { return w.State().Current().Cycles == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop after cancellation")
	}
}

func TestWatchdog_TriggerCoalesces(t *testing.T) {
	w := newTestWatchdog(&scriptedProber{script: []bool{true}}, &fakeFetcher{snapshots: []*models.Snapshot{healthySnapshot()}}, &recordingNotifier{}, nil)

	assert.True(t, w.Trigger())
	assert.False(t, w.Trigger())
}

// 500, 200, 200 against a real HTTP backend: the startup notice reports DOWN,
// then exactly one recovery notice follows.
func TestWatchdog_EndToEndAgainstHTTPBackend(t *testing.T) {
	var healthCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if healthCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("db unavailable"))
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/api/monitor/snapshot":
			_, _ = w.Write([]byte(`{"http_active_requests":1,"db_in_use_connections":1,"goroutines":20,
				"go_memory_alloc_bytes":1048576,"uploads_fs_free_bytes":10737418240}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := backendhttp.NewMonitoringClient(srv.URL, "/health", "key", time.Second)
	notifier := &recordingNotifier{}
	w := newTestWatchdog(client, client, notifier, nil)

	runCycles(w, 3)

	msgs := notifier.all()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], markStarted)
	assert.Contains(t, msgs[0], "<b>DOWN</b>")
	assert.Contains(t, msgs[0], "HTTP 500: db unavailable")
	assert.Contains(t, msgs[1], markRecovered)
	assert.Equal(t, 0, countWith(msgs, markDown))
}
