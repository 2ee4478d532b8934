package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

func TestListActiveScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewMonitorStore(mock)
	require.NoError(t, err)

	scanned := time.Unix(1700000000, 0).UTC()
	region := "west"
	qualifier := "2010 Infiniti EX35"
	webhook := "https://hooks.example.com/x"

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "keywords", "negative_keywords", "max_price", "source",
		"region", "vehicle_qualifier", "exact_match", "scan_interval_minutes",
		"last_scanned_at", "status", "webhook_url",
	}).
		AddRow("m1", "u1", "ex35 headlight", []string{"broken"}, 500.0,
			monitor.SourceCraigslist, &region, &qualifier, false, 60,
			&scanned, monitor.StatusActive, &webhook).
		AddRow("m2", "u1", "26060-1BA0A", []string{}, 0.0,
			monitor.SourceEbay, nil, nil, true, 0,
			nil, monitor.StatusActive, nil)

	mock.ExpectQuery("SELECT (.+) FROM monitors WHERE status").
		WithArgs(monitor.StatusActive).
		WillReturnRows(rows)

	got, err := store.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, []string{"broken"}, got[0].NegativeKeywords)
	require.Equal(t, "west", got[0].Region)
	require.Equal(t, "2010 Infiniti EX35", got[0].VehicleQualifier)
	require.Equal(t, webhook, got[0].WebhookURL)
	require.Equal(t, scanned, *got[0].LastScannedAt)

	require.Equal(t, "m2", got[1].ID)
	require.Nil(t, got[1].LastScannedAt)
	require.Empty(t, got[1].Region)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastScanned(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewMonitorStore(mock)
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("UPDATE monitors SET last_scanned_at").
		WithArgs(at, "m1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateLastScanned(context.Background(), "m1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastScannedMissingMonitor(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewMonitorStore(mock)
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("UPDATE monitors SET last_scanned_at").
		WithArgs(at, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateLastScanned(context.Background(), "ghost", at)
	require.ErrorContains(t, err, "not found")
}

func TestUserEmail(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewMonitorStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT email FROM users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("u@example.com"))

	email, err := store.UserEmail(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u@example.com", email)
	require.NoError(t, mock.ExpectationsWereMet())
}
