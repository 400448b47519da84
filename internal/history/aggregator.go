// Package history maintains a continuously refreshed view of the
// detection backend's attack log, pre-reduced into the trigger and
// action distributions the dashboard renders.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prabujayant/LLM-safety-gateway/internal/detect"
	"github.com/prabujayant/LLM-safety-gateway/internal/metrics"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultLimit        = 50
)

// Source lists recent detection records. *detect.Client satisfies it.
type Source interface {
	History(ctx context.Context, limit int) ([]detect.AttackLogItem, error)
}

// LabelCount is one bucket of a distribution, in first-seen order.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Snapshot is the aggregator's published state. It is replaced
// wholesale on every successful poll; readers never see a half-updated
// view.
type Snapshot struct {
	Records   []detect.AttackLogItem `json:"records"`
	Triggers  []LabelCount           `json:"triggers"`
	Actions   []LabelCount           `json:"actions"`
	Degraded  bool                   `json:"degraded"`
	LastError string                 `json:"last_error,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithPollInterval sets how often the backend is polled.
func WithPollInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithLimit sets how many records each poll requests.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// Aggregator polls the detection backend's history endpoint and keeps
// the latest reduced snapshot available to HTTP handlers. A failed poll
// keeps the previous records and marks the snapshot degraded instead of
// dropping data.
type Aggregator struct {
	source   Source
	interval time.Duration
	limit    int
	logger   *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewAggregator creates an aggregator over the given source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:   source,
		interval: defaultPollInterval,
		limit:    defaultLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the most recent published state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Run polls immediately and then on every tick until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	a.Poll(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Poll(ctx)
		}
	}
}

// Poll fetches the history once and publishes a new snapshot. A fetch
// error preserves the last known records and exposes the failure via
// the Degraded and LastError fields. A poll canceled by ctx leaves the
// published state untouched.
func (a *Aggregator) Poll(ctx context.Context) {
	items, err := a.source.History(ctx, a.limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		metrics.PollFailuresTotal.Inc()
		a.logger.WarnContext(ctx, "history poll failed", "error", err)

		a.mu.Lock()
		a.snap.Degraded = true
		a.snap.LastError = err.Error()
		a.mu.Unlock()
		return
	}

	snap := Snapshot{
		Records:   items,
		Triggers:  reduceTriggers(items),
		Actions:   reduceActions(items),
		UpdatedAt: time.Now().UTC(),
	}
	metrics.HistoryRecords.Set(float64(len(items)))

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()
}

// TriggerLabel names the detection signal that contributed most to a
// record's score. Ties resolve toward regex, then entropy.
func TriggerLabel(item detect.AttackLogItem) string {
	switch {
	case item.RegexScore >= item.EntropyScore && item.RegexScore >= item.AnomalyScore:
		return "Regex"
	case item.EntropyScore >= item.AnomalyScore:
		return "Entropy"
	default:
		return "Anomaly"
	}
}

func reduceTriggers(items []detect.AttackLogItem) []LabelCount {
	return countBy(items, TriggerLabel)
}

func reduceActions(items []detect.AttackLogItem) []LabelCount {
	return countBy(items, func(item detect.AttackLogItem) string {
		return item.Action
	})
}

// countBy buckets items by label, keeping buckets in the order their
// labels first appear.
func countBy(items []detect.AttackLogItem, label func(detect.AttackLogItem) string) []LabelCount {
	index := make(map[string]int)
	var counts []LabelCount
	for _, item := range items {
		l := label(item)
		i, ok := index[l]
		if !ok {
			i = len(counts)
			index[l] = i
			counts = append(counts, LabelCount{Label: l})
		}
		counts[i].Count++
	}
	return counts
}
