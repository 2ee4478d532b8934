package postgres

import (
	"context"
	"fmt"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// ListingStore implements monitor.ListingStore on Postgres.
type ListingStore struct {
	pool db
}

// NewListingStore constructs a ListingStore from an existing pool.
func NewListingStore(pool db) (*ListingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ListingStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ListByMonitor returns every listing persisted for a monitor, dismissed rows
// included. Dedup builds its seen set from this result, and a dismissed
// listing must stay seen or it would be re-reported on every scan.
func (s *ListingStore) ListByMonitor(ctx context.Context, monitorID string) ([]monitor.FoundListing, error) {
	query := `
		SELECT id, monitor_id, listing_id, title, price, url, image_url,
		       source, found_at, dismissed
		FROM found_listings
		WHERE monitor_id = $1
		ORDER BY found_at DESC`
	rows, err := s.pool.Query(ctx, query, monitorID)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []monitor.FoundListing
	for rows.Next() {
		var (
			l     monitor.FoundListing
			image *string
		)
		if err := rows.Scan(
			&l.ID, &l.MonitorID, &l.ListingID, &l.Title, &l.Price, &l.URL,
			&image, &l.Source, &l.FoundAt, &l.Dismissed,
		); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		if image != nil {
			l.ImageURL = *image
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return out, nil
}

// Insert persists a batch of new listings. A listing id already present for
// the monitor is left untouched, keeping re-inserts harmless.
func (s *ListingStore) Insert(ctx context.Context, listings []monitor.FoundListing) error {
	query := `
		INSERT INTO found_listings (
			id, monitor_id, listing_id, title, price, url, image_url,
			source, found_at, dismissed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (monitor_id, listing_id) DO NOTHING`
	for _, l := range listings {
		var image *string
		if l.ImageURL != "" {
			image = &l.ImageURL
		}
		if _, err := s.pool.Exec(ctx, query,
			l.ID, l.MonitorID, l.ListingID, l.Title, l.Price, l.URL,
			image, l.Source, l.FoundAt, l.Dismissed,
		); err != nil {
			return fmt.Errorf("insert listing %s: %w", l.ListingID, err)
		}
	}
	return nil
}

// Dismiss soft-deletes one listing for a monitor.
func (s *ListingStore) Dismiss(ctx context.Context, monitorID, listingID string) error {
	query := `UPDATE found_listings SET dismissed = TRUE WHERE monitor_id = $1 AND listing_id = $2`
	tag, err := s.pool.Exec(ctx, query, monitorID, listingID)
	if err != nil {
		return fmt.Errorf("dismiss listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s not found for monitor %s", listingID, monitorID)
	}
	return nil
}
