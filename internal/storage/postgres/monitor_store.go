package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// MonitorStore implements monitor.MonitorStore on Postgres.
type MonitorStore struct {
	pool db
}

// NewMonitorStore constructs a MonitorStore from an existing pool.
func NewMonitorStore(pool db) (*MonitorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &MonitorStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *MonitorStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const monitorColumns = `
	id, user_id, keywords, negative_keywords, max_price, source, region,
	vehicle_qualifier, exact_match, scan_interval_minutes, last_scanned_at,
	status, webhook_url`

// ListActive returns every monitor in the active state.
func (s *MonitorStore) ListActive(ctx context.Context) ([]monitor.Monitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM monitors WHERE status = $1 ORDER BY id`, monitorColumns)
	rows, err := s.pool.Query(ctx, query, monitor.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active monitors: %w", err)
	}
	defer rows.Close()

	var out []monitor.Monitor
	for rows.Next() {
		var (
			m         monitor.Monitor
			negatives []string
			region    *string
			qualifier *string
			webhook   *string
		)
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Keywords, &negatives, &m.MaxPrice, &m.Source,
			&region, &qualifier, &m.ExactMatch, &m.ScanInterval,
			&m.LastScannedAt, &m.Status, &webhook,
		); err != nil {
			return nil, fmt.Errorf("scan monitor row: %w", err)
		}
		m.NegativeKeywords = negatives
		if region != nil {
			m.Region = *region
		}
		if qualifier != nil {
			m.VehicleQualifier = *qualifier
		}
		if webhook != nil {
			m.WebhookURL = *webhook
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitor rows: %w", err)
	}
	return out, nil
}

// UpdateLastScanned advances a monitor's last-scanned timestamp.
func (s *MonitorStore) UpdateLastScanned(ctx context.Context, monitorID string, scannedAt time.Time) error {
	query := `UPDATE monitors SET last_scanned_at = $1 WHERE id = $2`
	tag, err := s.pool.Exec(ctx, query, scannedAt, monitorID)
	if err != nil {
		return fmt.Errorf("update last scanned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("monitor %s not found", monitorID)
	}
	return nil
}

// UserEmail resolves the alert address for a user.
func (s *MonitorStore) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	query := `SELECT email FROM users WHERE id = $1`
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&email); err != nil {
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}
