// Package app initializes and holds the long-lived services of the scan
// service, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/clock/system"
	"github.com/tracemotorsports/parthawk/internal/config"
	"github.com/tracemotorsports/parthawk/internal/dedup"
	"github.com/tracemotorsports/parthawk/internal/extractor"
	"github.com/tracemotorsports/parthawk/internal/extractor/classifieds"
	"github.com/tracemotorsports/parthawk/internal/extractor/ebayapi"
	"github.com/tracemotorsports/parthawk/internal/extractor/headless"
	"github.com/tracemotorsports/parthawk/internal/filter"
	"github.com/tracemotorsports/parthawk/internal/id/uuid"
	"github.com/tracemotorsports/parthawk/internal/logging"
	"github.com/tracemotorsports/parthawk/internal/monitor"
	"github.com/tracemotorsports/parthawk/internal/notify"
	"github.com/tracemotorsports/parthawk/internal/scheduler"
	"github.com/tracemotorsports/parthawk/internal/storage/postgres"
)

// App holds the shared, long-lived services for the scan service. It is
// built once at startup and torn down once at shutdown.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
	Runner *scheduler.Runner

	monitors *postgres.MonitorStore
	listings *postgres.ListingStore
	session  *headless.Session
}

// New builds the full service graph from configuration. It fails fast when
// any critical collaborator cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("initializing services")

	if err := postgres.Migrate(cfg.DB.DSN); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	monitorStore, err := postgres.NewMonitorStore(pool)
	if err != nil {
		return nil, fmt.Errorf("build monitor store: %w", err)
	}
	listingStore, err := postgres.NewListingStore(pool)
	if err != nil {
		return nil, fmt.Errorf("build listing store: %w", err)
	}

	clk := system.New()
	ids := uuid.New()

	router := extractor.NewRouter()
	tokens := ebayapi.NewTokenCache("https://api.ebay.com", cfg.Ebay.AppID, cfg.Ebay.CertID,
		&http.Client{Timeout: 15 * time.Second}, clk)
	router.Register(monitor.SourceEbay, ebayapi.New(ebayapi.Config{
		MarketplaceID: cfg.Ebay.MarketplaceID,
	}, tokens, logger))
	router.Register(monitor.SourceCraigslist, classifieds.New(classifieds.Config{}, logger))

	var session *headless.Session
	sequential := cfg.Scan.Sequential
	if cfg.Headless.Enabled {
		sessionCfg := headless.SessionConfig{
			PageTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		}
		if cfg.Headless.RemoteURL != "" {
			session, err = headless.NewRemoteSession(ctx, cfg.Headless.RemoteURL, sessionCfg, logger)
		} else {
			session, err = headless.NewSession(ctx, sessionCfg, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("launch browser session: %w", err)
		}
		router.Register(monitor.SourceOfferUp, headless.New(session, headless.Config{
			MaxPages:    cfg.Headless.MaxPages,
			PageRetries: cfg.Headless.PageRetries,
		}, logger))
		// Monitors take turns on the shared browser.
		sequential = true
	}

	dispatcher := notify.NewDispatcher(
		notify.NewEmailClient(notify.EmailConfig{
			APIKey: cfg.Email.APIKey,
			From:   cfg.Email.From,
		}, logger),
		notify.NewWebhookClient(logger),
		logger,
	)

	runner := scheduler.New(
		scheduler.Config{Workers: cfg.Scan.Workers, Sequential: sequential},
		monitorStore, listingStore, router,
		filter.New(logger),
		dedup.New(listingStore, logger),
		dispatcher, clk, ids, logger,
	)

	return &App{
		Cfg:      cfg,
		Logger:   logger,
		Runner:   runner,
		monitors: monitorStore,
		listings: listingStore,
		session:  session,
	}, nil
}

// Close releases every service the App owns.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.monitors != nil {
		a.monitors.Close()
	}
	_ = a.Logger.Sync()
}
