package monitor

import (
	"time"
)

// Status represents the lifecycle state of a monitor.
type Status string

// Monitor status values persisted in the monitor store.
const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// Source identifies a marketplace a monitor watches.
type Source string

// Supported and declared-unsupported marketplace sources.
const (
	SourceEbay       Source = "ebay"
	SourceCraigslist Source = "craigslist"
	SourceOfferUp    Source = "offerup"
	SourceFacebook   Source = "facebook"
	SourceCarPart    Source = "car-part"
)

// Monitor is a persisted user-defined watch. Criteria fields are owned by the
// user; only the scheduler advances LastScannedAt.
type Monitor struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Keywords         string     `json:"keywords"`
	NegativeKeywords []string   `json:"negative_keywords,omitempty"`
	MaxPrice         float64    `json:"max_price"`
	Source           Source     `json:"source"`
	Region           string     `json:"region,omitempty"`
	VehicleQualifier string     `json:"vehicle_qualifier,omitempty"`
	ExactMatch       bool       `json:"exact_match"`
	ScanInterval     int        `json:"scan_interval_minutes"`
	LastScannedAt    *time.Time `json:"last_scanned_at,omitempty"`
	Status           Status     `json:"status"`
	WebhookURL       string     `json:"webhook_url,omitempty"`
}

// Interval returns the scan interval as a duration, defaulting to one hour.
func (m Monitor) Interval() time.Duration {
	if m.ScanInterval <= 0 {
		return time.Hour
	}
	return time.Duration(m.ScanInterval) * time.Minute
}

// PriceCeiling returns the monitor's max price, defaulting to an effectively
// unbounded ceiling when unset.
func (m Monitor) PriceCeiling() float64 {
	if m.MaxPrice <= 0 {
		return 1_000_000
	}
	return m.MaxPrice
}

// Query captures everything an extractor needs to search one source.
type Query struct {
	Keywords         string
	MaxPrice         float64
	NegativeKeywords []string
	VehicleQualifier string
	Region           string
	ExactMatch       bool
}

// Candidate is an unpersisted listing returned by an extractor during one
// scan. It is either promoted to a FoundListing or discarded.
type Candidate struct {
	ListingID string  `json:"listing_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	URL       string  `json:"url"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// FoundListing is a persisted, deduplicated listing that was new as of some
// scan. Rows are created once and only ever soft-deleted via Dismissed.
type FoundListing struct {
	ID        string    `json:"id"`
	MonitorID string    `json:"monitor_id"`
	ListingID string    `json:"listing_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"image_url,omitempty"`
	Source    Source    `json:"source"`
	FoundAt   time.Time `json:"found_at"`
	Dismissed bool      `json:"dismissed"`
}

// ScanStatus is the terminal state of one monitor in one cycle.
type ScanStatus string

// Terminal scan states.
const (
	ScanScanned     ScanStatus = "scanned"
	ScanSkipped     ScanStatus = "skipped"
	ScanFailed      ScanStatus = "failed"
	ScanUnsupported ScanStatus = "unsupported"
)

// Outcome records what happened to one monitor during one cycle.
type Outcome struct {
	MonitorID string     `json:"monitor_id"`
	Status    ScanStatus `json:"status"`
	NewItems  int        `json:"new_items"`
	Reason    string     `json:"reason,omitempty"`
}

// BatchSummary aggregates a full cycle's outcomes for the triggering caller.
type BatchSummary struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Scanned     int       `json:"scanned"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Unsupported int       `json:"unsupported"`
	NewItems    int       `json:"new_items"`
	Monitors    []Outcome `json:"monitors"`
}

// Add folds one outcome into the summary counts.
func (s *BatchSummary) Add(o Outcome) {
	switch o.Status {
	case ScanScanned:
		s.Scanned++
	case ScanSkipped:
		s.Skipped++
	case ScanFailed:
		s.Failed++
	case ScanUnsupported:
		s.Unsupported++
	}
	s.NewItems += o.NewItems
	s.Monitors = append(s.Monitors, o)
}
