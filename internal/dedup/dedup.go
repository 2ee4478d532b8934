// Package dedup filters freshly extracted candidates against previously
// persisted listings so a monitor is never notified about the same item twice.
package dedup

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// Classifieds listing URLs embed a stable numeric id before the .html suffix;
// everything else in the URL (subdomain, category path, tracking params) can
// change between page loads.
var classifiedsURLID = regexp.MustCompile(`/(\d+)\.html`)

// Engine is the sole gate against duplicate notifications. It is consulted
// once per scan per monitor, after filtering and before persistence.
type Engine struct {
	listings monitor.ListingStore
	logger   *zap.Logger
}

// New creates an Engine backed by the given listing store.
func New(listings monitor.ListingStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{listings: listings, logger: logger}
}

// FilterNew returns the candidates not already persisted for the monitor.
// A candidate is new iff neither its native listing id nor its full URL
// appears in the existing-identity set.
func (e *Engine) FilterNew(
	ctx context.Context,
	monitorID string,
	source monitor.Source,
	candidates []monitor.Candidate,
) ([]monitor.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := e.listings.ListByMonitor(ctx, monitorID)
	if err != nil {
		return nil, fmt.Errorf("list existing listings: %w", err)
	}

	seen := identitySet(source, existing)

	fresh := make([]monitor.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if anySeen(seen, c.ListingID, c.URL, urlIdentity(source, c.URL)) {
			continue
		}
		fresh = append(fresh, c)
	}

	e.logger.Debug("deduplication complete",
		zap.String("monitor_id", monitorID),
		zap.Int("candidates", len(candidates)),
		zap.Int("new", len(fresh)),
	)
	return fresh, nil
}

// identitySet builds every identity each persisted listing is known under.
// The stored listing id and the raw URL are always included; for HTML-derived
// sources the numeric id recovered from the persisted URL is added as well,
// since those rows may predate id extraction.
func identitySet(source monitor.Source, existing []monitor.FoundListing) map[string]struct{} {
	seen := make(map[string]struct{}, len(existing)*2)
	for _, l := range existing {
		if l.ListingID != "" {
			seen[l.ListingID] = struct{}{}
		}
		if l.URL != "" {
			seen[l.URL] = struct{}{}
		}
		if id := urlIdentity(source, l.URL); id != "" {
			seen[id] = struct{}{}
		}
	}
	return seen
}

func anySeen(seen map[string]struct{}, identities ...string) bool {
	for _, id := range identities {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return true
		}
	}
	return false
}

func urlIdentity(source monitor.Source, rawURL string) string {
	if rawURL == "" {
		return ""
	}
	switch source {
	case monitor.SourceCraigslist:
		m := classifiedsURLID.FindStringSubmatch(rawURL)
		if m == nil {
			return ""
		}
		return m[1]
	default:
		return ""
	}
}
