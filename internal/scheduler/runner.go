// Package scheduler drives scan cycles: it decides which monitors are due,
// runs the extraction pipeline for each, and aggregates the outcomes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/dedup"
	"github.com/tracemotorsports/parthawk/internal/extractor"
	"github.com/tracemotorsports/parthawk/internal/filter"
	"github.com/tracemotorsports/parthawk/internal/metrics"
	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// Notifier fans a batch of new listings out to the user's channels.
type Notifier interface {
	Notify(ctx context.Context, m monitor.Monitor, email string, items []monitor.FoundListing)
}

// Config controls cycle execution.
type Config struct {
	// Workers bounds concurrent monitor scans. Ignored in sequential mode.
	Workers int
	// Sequential forces one-monitor-at-a-time scanning. Required when the
	// cycle shares a single browser session across monitors.
	Sequential bool
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Runner owns one scan cycle at a time.
type Runner struct {
	cfg      Config
	monitors monitor.MonitorStore
	listings monitor.ListingStore
	router   *extractor.Router
	filter   *filter.Filter
	dedup    *dedup.Engine
	notifier Notifier
	clock    monitor.Clock
	ids      monitor.IDGenerator
	logger   *zap.Logger

	mu   sync.Mutex
	last *monitor.BatchSummary
}

// New creates a Runner.
func New(
	cfg Config,
	monitors monitor.MonitorStore,
	listings monitor.ListingStore,
	router *extractor.Router,
	f *filter.Filter,
	d *dedup.Engine,
	notifier Notifier,
	clock monitor.Clock,
	ids monitor.IDGenerator,
	logger *zap.Logger,
) *Runner {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		monitors: monitors,
		listings: listings,
		router:   router,
		filter:   f,
		dedup:    d,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// RunCycle scans every active monitor once. A failing monitor never affects
// the others; only a failure to load the monitor list is returned as an
// error. When force is set, interval gating is bypassed.
func (r *Runner) RunCycle(ctx context.Context, force bool) (monitor.BatchSummary, error) {
	start := r.clock.Now()
	summary := monitor.BatchSummary{StartedAt: start}
	if id, err := r.ids.NewID(); err == nil {
		summary.CycleID = id
	}

	active, err := r.monitors.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active monitors: %w", err)
	}
	r.logger.Info("scan cycle started",
		zap.String("cycle_id", summary.CycleID),
		zap.Int("monitors", len(active)),
		zap.Bool("force", force),
	)

	outcomes := r.scanAll(ctx, active, start, force)
	for _, o := range outcomes {
		summary.Add(o)
		metrics.MonitorOutcomes.WithLabelValues(string(o.Status)).Inc()
	}

	summary.FinishedAt = r.clock.Now()
	metrics.ScanCycles.Inc()
	r.logger.Info("scan cycle complete",
		zap.String("cycle_id", summary.CycleID),
		zap.Int("scanned", summary.Scanned),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("unsupported", summary.Unsupported),
		zap.Int("new_items", summary.NewItems),
	)

	r.mu.Lock()
	r.last = &summary
	r.mu.Unlock()
	return summary, nil
}

// LastSummary returns the most recent cycle's summary, or false when no cycle
// has completed yet.
func (r *Runner) LastSummary() (monitor.BatchSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return monitor.BatchSummary{}, false
	}
	return *r.last, true
}

func (r *Runner) scanAll(ctx context.Context, active []monitor.Monitor, start time.Time, force bool) []monitor.Outcome {
	outcomes := make([]monitor.Outcome, len(active))

	if r.cfg.Sequential {
		for i, m := range active {
			outcomes[i] = r.scanOne(ctx, m, start, force)
		}
		return outcomes
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Workers)
	for i, m := range active {
		wg.Add(1)
		go func(i int, m monitor.Monitor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = r.scanOne(ctx, m, start, force)
		}(i, m)
	}
	wg.Wait()
	return outcomes
}

// scanOne runs the full pipeline for a single monitor. Panics are confined
// here so one misbehaving extractor cannot take down the cycle.
func (r *Runner) scanOne(ctx context.Context, m monitor.Monitor, start time.Time, force bool) (out monitor.Outcome) {
	out = monitor.Outcome{MonitorID: m.ID, Status: monitor.ScanScanned}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("monitor scan panicked",
				zap.String("monitor_id", m.ID),
				zap.Any("panic", rec),
			)
			out = monitor.Outcome{
				MonitorID: m.ID,
				Status:    monitor.ScanFailed,
				Reason:    fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	log := r.logger.With(zap.String("monitor_id", m.ID), zap.String("source", string(m.Source)))

	if !force && m.LastScannedAt != nil {
		next := m.LastScannedAt.Add(m.Interval())
		if start.Before(next) {
			log.Debug("monitor not due", zap.Time("next_scan_at", next))
			return monitor.Outcome{MonitorID: m.ID, Status: monitor.ScanSkipped}
		}
	}

	ext, err := r.router.Lookup(m.Source)
	if err != nil {
		log.Warn("monitor source unsupported")
		return monitor.Outcome{
			MonitorID: m.ID,
			Status:    monitor.ScanUnsupported,
			Reason:    err.Error(),
		}
	}

	q := queryFrom(m)
	candidates, err := ext.Search(ctx, q)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return failedOutcome(m.ID, fmt.Errorf("extract: %w", err))
	}

	kept := r.filter.Apply(q, candidates)

	fresh, err := r.dedup.FilterNew(ctx, m.ID, m.Source, kept)
	if err != nil {
		log.Error("deduplication failed", zap.Error(err))
		return failedOutcome(m.ID, fmt.Errorf("dedup: %w", err))
	}

	var inserted []monitor.FoundListing
	if len(fresh) > 0 {
		inserted = r.toListings(m, fresh)
		if err := r.listings.Insert(ctx, inserted); err != nil {
			log.Error("persisting listings failed", zap.Error(err))
			return failedOutcome(m.ID, fmt.Errorf("insert listings: %w", err))
		}
		metrics.ListingsFound.WithLabelValues(string(m.Source)).Add(float64(len(inserted)))
	}

	if err := r.monitors.UpdateLastScanned(ctx, m.ID, start); err != nil {
		log.Warn("advancing last-scanned time failed", zap.Error(err))
	}

	if len(inserted) > 0 && r.notifier != nil {
		email, err := r.monitors.UserEmail(ctx, m.UserID)
		if err != nil {
			log.Warn("resolving user email failed", zap.Error(err))
		}
		r.notifier.Notify(ctx, m, email, inserted)
	}

	log.Info("monitor scanned",
		zap.Int("candidates", len(candidates)),
		zap.Int("new", len(inserted)),
	)
	out.NewItems = len(inserted)
	return out
}

func (r *Runner) toListings(m monitor.Monitor, fresh []monitor.Candidate) []monitor.FoundListing {
	now := r.clock.Now()
	out := make([]monitor.FoundListing, 0, len(fresh))
	for _, c := range fresh {
		id, err := r.ids.NewID()
		if err != nil {
			id = c.ListingID
		}
		out = append(out, monitor.FoundListing{
			ID:        id,
			MonitorID: m.ID,
			ListingID: c.ListingID,
			Title:     c.Title,
			Price:     c.Price,
			URL:       c.URL,
			ImageURL:  c.ImageURL,
			Source:    m.Source,
			FoundAt:   now,
		})
	}
	return out
}

func failedOutcome(monitorID string, err error) monitor.Outcome {
	return monitor.Outcome{
		MonitorID: monitorID,
		Status:    monitor.ScanFailed,
		Reason:    err.Error(),
	}
}

func queryFrom(m monitor.Monitor) monitor.Query {
	return monitor.Query{
		Keywords:         m.Keywords,
		MaxPrice:         m.PriceCeiling(),
		NegativeKeywords: m.NegativeKeywords,
		VehicleQualifier: m.VehicleQualifier,
		Region:           m.Region,
		ExactMatch:       m.ExactMatch,
	}
}
