package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

// EmailConfig configures the transactional email client.
type EmailConfig struct {
	BaseURL string
	APIKey  string
	// From is the sender address, e.g. "alerts@parthawk.dev".
	From    string
	Timeout time.Duration
}

func (c *EmailConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.resend.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// EmailClient sends listing alerts through a transactional email API.
// It implements monitor.EmailSender.
type EmailClient struct {
	cfg    EmailConfig
	client *http.Client
	logger *zap.Logger
}

// NewEmailClient creates an EmailClient.
func NewEmailClient(cfg EmailConfig, logger *zap.Logger) *EmailClient {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one alert email listing the new items.
func (c *EmailClient) Send(ctx context.Context, to, subject string, items []monitor.FoundListing) error {
	if to == "" {
		return fmt.Errorf("empty recipient")
	}
	payload, err := json.Marshal(emailRequest{
		From:    c.cfg.From,
		To:      []string{to},
		Subject: subject,
		HTML:    renderItemsHTML(items),
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email api returned status %d", resp.StatusCode)
	}

	c.logger.Debug("alert email sent", zap.String("to", to), zap.Int("items", len(items)))
	return nil
}

// renderItemsHTML builds the alert body: one table row per listing with
// thumbnail, linked title, price, and source.
func renderItemsHTML(items []monitor.FoundListing) string {
	var b bytes.Buffer
	b.WriteString(`<h2>New listings found</h2><table cellpadding="8">`)
	for _, it := range items {
		b.WriteString("<tr>")
		if it.ImageURL != "" {
			fmt.Fprintf(&b, `<td><img src="%s" width="96" alt=""></td>`, html.EscapeString(it.ImageURL))
		} else {
			b.WriteString("<td></td>")
		}
		fmt.Fprintf(&b, `<td><a href="%s">%s</a><br>$%.2f &middot; %s</td>`,
			html.EscapeString(it.URL),
			html.EscapeString(it.Title),
			it.Price,
			html.EscapeString(string(it.Source)),
		)
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
