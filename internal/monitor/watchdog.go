package monitor

import (
	"context"
	"log"
	"runtime/debug"
	"time"

	"cloudtune-ops/internal/config"
	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/telemetry"
)

// Prober checks backend liveness.
type Prober interface {
	Probe(ctx context.Context) models.HealthStatus
	HealthPath() string
}

// SnapshotFetcher loads the backend's technical snapshot.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Notifier delivers an alert to every recipient.
type Notifier interface {
	Broadcast(ctx context.Context, text string) models.Delivery
}

// AlertStore keeps the history of sent alerts.
type AlertStore interface {
	Create(ctx context.Context, record *models.AlertRecord) error
}

type Options struct {
	Interval      time.Duration
	NotifyOnStart bool
	Limits        config.Limits
}

// Watchdog polls backend health on an interval and broadcasts alerts on
// availability transitions and on threshold changes.
type Watchdog struct {
	prober   Prober
	fetcher  SnapshotFetcher
	notifier Notifier
	store    AlertStore
	state    *State
	metrics  *telemetry.Metrics

	interval      time.Duration
	notifyOnStart bool
	limits        config.Limits
	now           func() time.Time
	trigger       chan struct{}

	// Owned by the Run goroutine.
	prev   BackendState
	issues models.IssueSet
}

// NewWatchdog creates a watchdog. store may be nil.
func NewWatchdog(prober Prober, fetcher SnapshotFetcher, notifier Notifier, store AlertStore, state *State, metrics *telemetry.Metrics, opts Options) *Watchdog {
	if state == nil {
		state = NewState()
	}
	if metrics == nil {
		metrics = telemetry.NewNoop()
	}
	return &Watchdog{
		prober:        prober,
		fetcher:       fetcher,
		notifier:      notifier,
		store:         store,
		state:         state,
		metrics:       metrics,
		interval:      opts.Interval,
		notifyOnStart: opts.NotifyOnStart,
		limits:        opts.Limits,
		now:           time.Now,
		trigger:       make(chan struct{}, 1),
		prev:          StateUnknown,
		issues:        models.IssueSet{},
	}
}

func (w *Watchdog) State() *State {
	return w.state
}

func (w *Watchdog) Interval() time.Duration {
	return w.interval
}

// Trigger requests an immediate check. Requests made while one is already
// pending are merged. Reports whether a new request was queued.
func (w *Watchdog) Trigger() bool {
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run checks the backend immediately and then on every tick until ctx is
// cancelled. A failing cycle never stops the loop.
func (w *Watchdog) Run(ctx context.Context) error {
	log.Printf("Watchdog started: interval=%s", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.safeCycle(ctx)

		select {
		case <-ctx.Done():
			log.Println("Watchdog stopped.")
			return nil
		case <-ticker.C:
		case <-w.trigger:
		}
	}
}

func (w *Watchdog) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Watchdog cycle panicked: %v\n%s", r, debug.Stack())
		}
	}()
	w.cycle(ctx)
}

func (w *Watchdog) cycle(ctx context.Context) {
	status := w.prober.Probe(ctx)
	if ctx.Err() != nil {
		// Shutting down: a cancelled probe says nothing about the backend.
		return
	}

	at := w.now()
	current := stateOf(status.IsUp)
	healthPath := w.prober.HealthPath()

	switch {
	case w.prev == StateUnknown:
		if w.notifyOnStart {
			w.send(ctx, models.AlertMonitoringStarted, "", startedText(at, healthPath, status.IsUp, status.Detail))
		}
	case w.prev == StateUp && current == StateDown:
		w.send(ctx, models.AlertBackendDown, "", downText(at, healthPath, status.Detail))
	case w.prev == StateDown && current == StateUp:
		w.send(ctx, models.AlertBackendRecovered, "", recoveredText(at, healthPath, status.Detail))
	}
	w.prev = current

	obs := Observation{
		Backend:   current,
		Detail:    status.Detail,
		CheckedAt: at,
	}

	if current == StateUp {
		if err := w.checkThresholds(ctx, at); err != nil {
			log.Printf("Failed to evaluate backend snapshot: %v", err)
			w.send(ctx, models.AlertMonitoringError, "", monitoringErrorText(at, err))
			w.issues = models.IssueSet{}
			obs.LastError = err.Error()
		}
	} else {
		w.issues = models.IssueSet{}
	}

	obs.Issues = w.issues
	w.state.publish(obs)
	w.metrics.CycleCompleted(ctx, current.String())
}

func (w *Watchdog) checkThresholds(ctx context.Context, at time.Time) error {
	snapshot, err := w.fetcher.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	current := Evaluate(snapshot, w.limits)
	raised, cleared := Diff(w.issues, current)
	w.issues = current

	for _, key := range raised {
		w.send(ctx, models.AlertThresholdExceeded, key, exceededText(at, current[key]))
	}
	for _, key := range cleared {
		w.send(ctx, models.AlertThresholdCleared, key, clearedText(at, string(key)))
	}
	return nil
}

func (w *Watchdog) send(ctx context.Context, kind models.AlertKind, key models.IssueKey, text string) {
	delivery := w.notifier.Broadcast(ctx, text)
	w.metrics.AlertSent(ctx, string(kind))

	if w.store == nil {
		return
	}
	record := &models.AlertRecord{
		Kind:       kind,
		IssueKey:   string(key),
		Text:       text,
		Recipients: delivery.Recipients,
		Delivered:  delivery.Delivered,
		Issues:     models.IssueMap(w.issues),
		SentAt:     w.now().UTC(),
	}
	if err := w.store.Create(ctx, record); err != nil {
		log.Printf("Failed to save alert history: %v", err)
	}
}
