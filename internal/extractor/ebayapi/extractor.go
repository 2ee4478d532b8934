// Package ebayapi implements the API-backed extractor for the eBay Browse
// API. It is the fastest and most reliable extractor class: one filtered,
// newest-first request per scan.
package ebayapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/filter"
	"github.com/tracemotorsports/parthawk/internal/metrics"
	"github.com/tracemotorsports/parthawk/internal/monitor"
)

const sourceLabel = string(monitor.SourceEbay)

// Config controls the API extractor.
type Config struct {
	BaseURL       string
	MarketplaceID string
	PageSize      int
	Timeout       time.Duration
}

// Extractor implements monitor.Extractor against the Browse API.
type Extractor struct {
	cfg    Config
	tokens *TokenCache
	client *http.Client
	logger *zap.Logger
}

// New creates an Extractor. The token cache is injected so it can be shared
// and tested independently.
func New(cfg Config, tokens *TokenCache, logger *zap.Logger) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.ebay.com"
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = "EBAY_US"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Search issues one filtered, newest-first request. Freshness ordering makes
// a single page sufficient for this extractor class, so it never paginates.
// Transport and auth failures are logged and yield an empty result; they do
// not cross the extractor boundary.
func (e *Extractor) Search(ctx context.Context, q monitor.Query) ([]monitor.Candidate, error) {
	keywords := filter.EffectiveKeywords(q)
	e.logger.Info("api search",
		zap.String("source", sourceLabel),
		zap.String("keywords", keywords),
		zap.Float64("max_price", q.MaxPrice),
	)
	metrics.ExtractorRequests.WithLabelValues(sourceLabel).Inc()

	token, err := e.tokens.Token(ctx)
	if err != nil {
		metrics.ExtractorErrors.WithLabelValues(sourceLabel).Inc()
		e.logger.Warn("api auth failed", zap.Error(err))
		return nil, nil
	}

	items, err := e.searchOnce(ctx, token, keywords, q.MaxPrice)
	if err != nil {
		metrics.ExtractorErrors.WithLabelValues(sourceLabel).Inc()
		e.logger.Warn("api search failed", zap.Error(err))
		return nil, nil
	}

	candidates := make([]monitor.Candidate, 0, len(items))
	for _, item := range items {
		c := item.toCandidate()
		if filter.ExcludesTitle(c.Title, q.NegativeKeywords) {
			continue
		}
		candidates = append(candidates, c)
	}
	e.logger.Info("api search complete",
		zap.Int("returned", len(items)),
		zap.Int("after_local_filter", len(candidates)),
	)
	return candidates, nil
}

func (e *Extractor) searchOnce(ctx context.Context, token, keywords string, maxPrice float64) ([]itemSummary, error) {
	filters := strings.Join([]string{
		fmt.Sprintf("price:[..%s]", strconv.FormatFloat(maxPrice, 'f', -1, 64)),
		"priceCurrency:USD",
		"buyingOptions:{FIXED_PRICE|AUCTION}",
	}, ",")

	params := url.Values{
		"q":      {keywords},
		"limit":  {strconv.Itoa(e.cfg.PageSize)},
		"sort":   {"newlyListed"},
		"filter": {filters},
	}
	endpoint := e.cfg.BaseURL + "/buy/browse/v1/item_summary/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", e.cfg.MarketplaceID)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized {
		// Expired credential despite the reuse window; force a refresh so the
		// next monitor in the cycle does not hit the same wall.
		e.tokens.Invalidate()
		return nil, fmt.Errorf("search request unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request returned status %d", resp.StatusCode)
	}

	var payload struct {
		ItemSummaries []itemSummary `json:"itemSummaries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.ItemSummaries, nil
}

type itemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Price      struct {
		Value string `json:"value"`
	} `json:"price"`
	Image struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	ThumbnailImages []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"thumbnailImages"`
}

// toCandidate normalizes an API item to the shared candidate shape. Item ids
// arrive wrapped as "v1|123456789|0"; the middle segment is the stable id,
// prefixed with the source name to avoid cross-source collisions.
func (s itemSummary) toCandidate() monitor.Candidate {
	id := s.ItemID
	if parts := strings.Split(s.ItemID, "|"); len(parts) >= 2 && parts[1] != "" {
		id = parts[1]
	}

	price, _ := strconv.ParseFloat(s.Price.Value, 64)

	itemURL := s.ItemWebURL
	if itemURL == "" {
		itemURL = "https://www.ebay.com/itm/" + id
	}

	image := s.Image.ImageURL
	if image == "" && len(s.ThumbnailImages) > 0 {
		image = s.ThumbnailImages[0].ImageURL
	}

	title := s.Title
	if title == "" {
		title = "Unknown Item"
	}

	return monitor.Candidate{
		ListingID: "ebay-" + id,
		Title:     title,
		Price:     price,
		URL:       itemURL,
		ImageURL:  image,
	}
}
