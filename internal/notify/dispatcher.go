// Package notify delivers new-listing alerts over email and user webhooks.
// Delivery is best effort: a channel failure is logged and metered, never
// surfaced into the scan outcome.
package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/metrics"
	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// WebhookPoster posts one alert message to a webhook URL.
type WebhookPoster interface {
	Post(ctx context.Context, webhookURL string, m monitor.Monitor, items []monitor.FoundListing) error
}

// Dispatcher fans one alert out to the user's channels.
type Dispatcher struct {
	email   monitor.EmailSender
	webhook WebhookPoster
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher. Either channel may be nil to disable it.
func NewDispatcher(email monitor.EmailSender, webhook WebhookPoster, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{email: email, webhook: webhook, logger: logger}
}

// Notify sends the alert on every configured channel concurrently and waits
// for both to finish. One channel failing never stops the other.
func (d *Dispatcher) Notify(ctx context.Context, m monitor.Monitor, email string, items []monitor.FoundListing) {
	if len(items) == 0 {
		return
	}

	var wg sync.WaitGroup

	if d.email != nil && email != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subject := fmt.Sprintf("%d new listing(s) for %q", len(items), m.Keywords)
			if err := d.email.Send(ctx, email, subject, items); err != nil {
				metrics.NotificationFailures.WithLabelValues("email").Inc()
				d.logger.Warn("email notification failed",
					zap.String("monitor_id", m.ID),
					zap.Error(err),
				)
				return
			}
			metrics.NotificationsSent.WithLabelValues("email").Inc()
		}()
	}

	if d.webhook != nil && m.WebhookURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.webhook.Post(ctx, m.WebhookURL, m, items); err != nil {
				metrics.NotificationFailures.WithLabelValues("webhook").Inc()
				d.logger.Warn("webhook notification failed",
					zap.String("monitor_id", m.ID),
					zap.Error(err),
				)
				return
			}
			metrics.NotificationsSent.WithLabelValues("webhook").Inc()
		}()
	}

	wg.Wait()
}
