package monitor

import (
	"context"
	"time"
)

// Extractor converts a query into candidate listings for one source.
// Implementations must not let transport errors escape: a failed call returns
// an error, never panics, and never partial garbage.
type Extractor interface {
	Search(ctx context.Context, query Query) ([]Candidate, error)
}

// MonitorStore reads and updates persisted monitors.
type MonitorStore interface {
	ListActive(ctx context.Context) ([]Monitor, error)
	UpdateLastScanned(ctx context.Context, monitorID string, scannedAt time.Time) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

// ListingStore persists found listings, partitioned by monitor.
type ListingStore interface {
	ListByMonitor(ctx context.Context, monitorID string) ([]FoundListing, error)
	Insert(ctx context.Context, listings []FoundListing) error
	Dismiss(ctx context.Context, monitorID, listingID string) error
}

// EmailSender hands a notification off to the email-delivery collaborator.
type EmailSender interface {
	Send(ctx context.Context, to, subject string, items []FoundListing) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle and row IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
