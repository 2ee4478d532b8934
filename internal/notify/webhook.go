package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// maxEmbeds is the most item embeds one webhook message carries.
const maxEmbeds = 10

const embedColor = 0x2ecc71

// WebhookClient posts listing alerts to a user-supplied webhook URL in the
// Discord message shape. Delivery is one attempt, best effort.
type WebhookClient struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebhookClient creates a WebhookClient with a 10 second delivery budget.
func NewWebhookClient(logger *zap.Logger) *WebhookClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookClient{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookMessage struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Thumbnail   *webhookThumbnail `json:"thumbnail,omitempty"`
}

type webhookThumbnail struct {
	URL string `json:"url"`
}

// Post delivers one alert message for the monitor's new items.
func (c *WebhookClient) Post(ctx context.Context, webhookURL string, m monitor.Monitor, items []monitor.FoundListing) error {
	if webhookURL == "" {
		return fmt.Errorf("empty webhook url")
	}

	content := fmt.Sprintf("Found %d new listing(s) for **%s**", len(items), m.Keywords)
	if m.VehicleQualifier != "" {
		content += fmt.Sprintf(" (%s)", m.VehicleQualifier)
	}

	embeds := make([]webhookEmbed, 0, maxEmbeds)
	for i, it := range items {
		if i == maxEmbeds {
			break
		}
		e := webhookEmbed{
			Title:       it.Title,
			URL:         it.URL,
			Description: fmt.Sprintf("$%.2f on %s", it.Price, it.Source),
			Color:       embedColor,
		}
		if it.ImageURL != "" {
			e.Thumbnail = &webhookThumbnail{URL: it.ImageURL}
		}
		embeds = append(embeds, e)
	}

	payload, err := json.Marshal(webhookMessage{Content: content, Embeds: embeds})
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.logger.Debug("webhook delivered", zap.String("monitor_id", m.ID), zap.Int("items", len(items)))
	return nil
}
