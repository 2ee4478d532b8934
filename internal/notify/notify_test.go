package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/monitor"
)

func sampleItems(n int) []monitor.FoundListing {
	out := make([]monitor.FoundListing, n)
	for i := range out {
		out[i] = monitor.FoundListing{
			ID:        "row",
			MonitorID: "m1",
			ListingID: "ebay-1",
			Title:     "EX35 headlight <OEM>",
			Price:     249.99,
			URL:       "https://example.com/item/1",
			ImageURL:  "https://example.com/item/1.jpg",
			Source:    monitor.SourceEbay,
		}
	}
	return out
}

func TestEmailClientSend(t *testing.T) {
	t.Parallel()

	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewEmailClient(EmailConfig{
		BaseURL: srv.URL,
		APIKey:  "key-123",
		From:    "alerts@parthawk.dev",
	}, zap.NewNop())

	err := c.Send(context.Background(), "u@example.com", "2 new listings", sampleItems(2))
	require.NoError(t, err)
	require.Equal(t, []string{"u@example.com"}, got.To)
	require.Equal(t, "alerts@parthawk.dev", got.From)
	require.Contains(t, got.HTML, "EX35 headlight &lt;OEM&gt;")
	require.Contains(t, got.HTML, "$249.99")
	require.Contains(t, got.HTML, `href="https://example.com/item/1"`)
}

func TestEmailClientErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewEmailClient(EmailConfig{BaseURL: srv.URL}, zap.NewNop())
	err := c.Send(context.Background(), "u@example.com", "s", sampleItems(1))
	require.ErrorContains(t, err, "422")
}

func TestEmailClientEmptyRecipient(t *testing.T) {
	t.Parallel()

	c := NewEmailClient(EmailConfig{}, zap.NewNop())
	require.Error(t, c.Send(context.Background(), "", "s", sampleItems(1)))
}

func TestWebhookClientPost(t *testing.T) {
	t.Parallel()

	var got webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := monitor.Monitor{ID: "m1", Keywords: "ex35 headlight", VehicleQualifier: "2010 Infiniti EX35", WebhookURL: srv.URL}
	c := NewWebhookClient(zap.NewNop())

	err := c.Post(context.Background(), srv.URL, m, sampleItems(3))
	require.NoError(t, err)
	require.Contains(t, got.Content, "3 new listing(s)")
	require.Contains(t, got.Content, "ex35 headlight")
	require.Contains(t, got.Content, "2010 Infiniti EX35")
	require.Len(t, got.Embeds, 3)
	require.Equal(t, "EX35 headlight <OEM>", got.Embeds[0].Title)
	require.Equal(t, "$249.99 on ebay", got.Embeds[0].Description)
	require.NotNil(t, got.Embeds[0].Thumbnail)
}

func TestWebhookClientCapsEmbeds(t *testing.T) {
	t.Parallel()

	var got webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWebhookClient(zap.NewNop())
	err := c.Post(context.Background(), srv.URL, monitor.Monitor{Keywords: "ex35"}, sampleItems(25))
	require.NoError(t, err)
	require.Contains(t, got.Content, "25 new listing(s)")
	require.Len(t, got.Embeds, maxEmbeds)
}

type recordingSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingSender) Send(context.Context, string, string, []monitor.FoundListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

type recordingPoster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingPoster) Post(context.Context, string, monitor.Monitor, []monitor.FoundListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func TestDispatcherFansOutBothChannels(t *testing.T) {
	t.Parallel()

	email := &recordingSender{}
	hook := &recordingPoster{}
	d := NewDispatcher(email, hook, zap.NewNop())

	m := monitor.Monitor{ID: "m1", Keywords: "ex35", WebhookURL: "https://hooks.example.com/x"}
	d.Notify(context.Background(), m, "u@example.com", sampleItems(1))

	require.Equal(t, 1, email.calls)
	require.Equal(t, 1, hook.calls)
}

func TestDispatcherChannelFailuresAreIndependent(t *testing.T) {
	t.Parallel()

	email := &recordingSender{err: errors.New("smtp down")}
	hook := &recordingPoster{}
	d := NewDispatcher(email, hook, zap.NewNop())

	m := monitor.Monitor{ID: "m1", Keywords: "ex35", WebhookURL: "https://hooks.example.com/x"}
	d.Notify(context.Background(), m, "u@example.com", sampleItems(1))

	require.Equal(t, 1, email.calls)
	require.Equal(t, 1, hook.calls)
}

func TestDispatcherSkipsUnconfiguredChannels(t *testing.T) {
	t.Parallel()

	email := &recordingSender{}
	hook := &recordingPoster{}
	d := NewDispatcher(email, hook, zap.NewNop())

	// No email address and no webhook URL: nothing is attempted.
	d.Notify(context.Background(), monitor.Monitor{ID: "m1"}, "", sampleItems(1))
	require.Zero(t, email.calls)
	require.Zero(t, hook.calls)

	// Empty batch never notifies.
	m := monitor.Monitor{ID: "m1", WebhookURL: "https://hooks.example.com/x"}
	d.Notify(context.Background(), m, "u@example.com", nil)
	require.Zero(t, email.calls)
	require.Zero(t, hook.calls)
}
