package headless

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tracemotorsports/parthawk/internal/filter"
	"github.com/tracemotorsports/parthawk/internal/metrics"
	"github.com/tracemotorsports/parthawk/internal/monitor"
)

const sourceLabel = string(monitor.SourceOfferUp)

var (
	itemDetailURL = regexp.MustCompile(`/item/detail/(\d+)`)
	priceText     = regexp.MustCompile(`\$([\d,]+(?:\.\d{2})?)`)
)

// challengeMarkers are title fragments that mean the site served a bot
// interstitial instead of results.
var challengeMarkers = []string{
	"verify", "captcha", "are you a human", "access denied",
	"attention required", "just a moment", "robot",
}

// pager abstracts one rendered page load so pagination can be tested without
// a browser.
type pager interface {
	// LoadPage returns the rendered document and its title.
	LoadPage(ctx context.Context, pageURL string) (html string, title string, err error)
	// Rotate discards the current fingerprint so the next load presents a
	// fresh identity.
	Rotate()
}

type sessionPager struct {
	session *Session
	fp      fingerprint
}

func (p *sessionPager) LoadPage(ctx context.Context, pageURL string) (string, string, error) {
	return p.session.fetchPage(ctx, p.fp, pageURL)
}

func (p *sessionPager) Rotate() {
	p.fp = randomFingerprint()
}

// Config controls the browser extractor.
type Config struct {
	BaseURL string
	// MaxPages caps pagination.
	MaxPages int
	// PageRetries is the number of extra attempts per page.
	PageRetries int
	// MaxConsecutiveFailures stops pagination once this many pages in a row
	// fail outright.
	MaxConsecutiveFailures int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://offerup.com"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.PageRetries <= 0 {
		c.PageRetries = 2
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 2
	}
}

// Extractor implements monitor.Extractor by paging through rendered search
// results in a headless browser.
type Extractor struct {
	cfg    Config
	pages  pager
	logger *zap.Logger
}

// New creates an Extractor on top of a browser session.
func New(session *Session, cfg Config, logger *zap.Logger) *Extractor {
	return newWithPager(&sessionPager{session: session, fp: randomFingerprint()}, cfg, logger)
}

func newWithPager(p pager, cfg Config, logger *zap.Logger) *Extractor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, pages: p, logger: logger}
}

// Search pages through results until the page cap, a page with nothing new,
// or too many consecutive page failures. Collected candidates are returned
// even when pagination stops early.
func (e *Extractor) Search(ctx context.Context, q monitor.Query) ([]monitor.Candidate, error) {
	keywords := filter.EffectiveKeywords(q)
	e.logger.Info("headless search", zap.String("keywords", keywords))

	var out []monitor.Candidate
	seen := make(map[string]struct{})
	consecutiveFailures := 0

	for pageNum := 1; pageNum <= e.cfg.MaxPages; pageNum++ {
		metrics.ExtractorRequests.WithLabelValues(sourceLabel).Inc()

		html, err := e.loadWithRetry(ctx, e.searchURL(keywords, q.MaxPrice, pageNum))
		if err != nil {
			metrics.ExtractorErrors.WithLabelValues(sourceLabel).Inc()
			consecutiveFailures++
			e.logger.Warn("result page failed",
				zap.Int("page", pageNum),
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Error(err),
			)
			if consecutiveFailures >= e.cfg.MaxConsecutiveFailures {
				e.logger.Warn("stopping pagination after repeated failures",
					zap.Int("collected", len(out)))
				return out, nil
			}
			continue
		}
		consecutiveFailures = 0

		newIDs := 0
		for _, c := range e.parseListings(html) {
			if _, dup := seen[c.ListingID]; dup {
				continue
			}
			seen[c.ListingID] = struct{}{}
			newIDs++
			if filter.ExcludesTitle(c.Title, q.NegativeKeywords) {
				continue
			}
			out = append(out, c)
		}
		e.logger.Debug("result page parsed",
			zap.Int("page", pageNum),
			zap.Int("new_ids", newIDs),
		)
		if newIDs == 0 {
			break
		}
	}

	e.logger.Info("headless search complete", zap.Int("candidates", len(out)))
	return out, nil
}

func (e *Extractor) searchURL(keywords string, maxPrice float64, pageNum int) string {
	params := url.Values{
		"q":         {keywords},
		"price_max": {strconv.FormatFloat(maxPrice, 'f', -1, 64)},
		"page":      {strconv.Itoa(pageNum)},
	}
	return e.cfg.BaseURL + "/search?" + params.Encode()
}

// loadWithRetry loads one page, retrying on errors. A challenge page counts
// as a failed attempt and rotates the fingerprint before the next try.
func (e *Extractor) loadWithRetry(ctx context.Context, pageURL string) (string, error) {
	attempts := 1 + e.cfg.PageRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("page load canceled: %w", err)
		}
		html, title, err := e.pages.LoadPage(ctx, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		if isChallengeTitle(title) {
			metrics.BotChallenges.Inc()
			e.logger.Warn("bot challenge served",
				zap.String("title", title),
				zap.Int("attempt", attempt),
			)
			e.pages.Rotate()
			lastErr = fmt.Errorf("bot challenge page %q", title)
			continue
		}
		return html, nil
	}
	return "", fmt.Errorf("page load exhausted %d attempts: %w", attempts, lastErr)
}

func isChallengeTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseListings extracts candidates from a rendered results page. Structured
// item cards are preferred; when the layout shifts, any link matching the
// item detail URL pattern still yields a minimal candidate.
func (e *Extractor) parseListings(html string) []monitor.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("parse result page failed", zap.Error(err))
		return nil
	}

	out := e.parseCards(doc)
	if len(out) > 0 {
		return out
	}
	return e.parseLinks(doc)
}

func (e *Extractor) parseCards(doc *goquery.Document) []monitor.Candidate {
	var out []monitor.Candidate
	doc.Find("div[data-testid='item-card'], div.item-card").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		c, ok := e.candidateFromLink(href, sel)
		if !ok {
			return
		}
		if title, exists := link.Attr("aria-label"); exists && title != "" {
			c.Title = title
		}
		out = append(out, c)
	})
	return out
}

func (e *Extractor) parseLinks(doc *goquery.Document) []monitor.Candidate {
	var out []monitor.Candidate
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !itemDetailURL.MatchString(href) {
			return
		}
		if c, ok := e.candidateFromLink(href, sel); ok {
			out = append(out, c)
		}
	})
	return out
}

func (e *Extractor) candidateFromLink(href string, sel *goquery.Selection) (monitor.Candidate, bool) {
	m := itemDetailURL.FindStringSubmatch(href)
	if m == nil {
		return monitor.Candidate{}, false
	}
	absolute := href
	if strings.HasPrefix(href, "/") {
		absolute = e.cfg.BaseURL + href
	}

	title := strings.TrimSpace(sel.Find("span.title, p.title").First().Text())
	if title == "" {
		if alt, ok := sel.Find("img[alt]").First().Attr("alt"); ok {
			title = strings.TrimSpace(alt)
		}
	}
	if title == "" {
		title = strings.TrimSpace(sel.Text())
	}
	if title == "" {
		title = "Unknown Item"
	}

	var price float64
	if pm := priceText.FindStringSubmatch(sel.Text()); pm != nil {
		price, _ = strconv.ParseFloat(strings.ReplaceAll(pm[1], ",", ""), 64)
	}

	image := ""
	if src, ok := sel.Find("img[src]").First().Attr("src"); ok && strings.HasPrefix(src, "http") {
		image = src
	}

	return monitor.Candidate{
		ListingID: "ou-" + m[1],
		Title:     title,
		Price:     price,
		URL:       absolute,
		ImageURL:  image,
	}, true
}
