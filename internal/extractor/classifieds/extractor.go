// Package classifieds implements the direct HTML-fetch extractor for
// classifieds-style listing sites. One logical region fans out to several
// sub-region endpoints, each fetched with a single polite GET and parsed
// structurally.
package classifieds

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tracemotorsports/parthawk/internal/filter"
	"github.com/tracemotorsports/parthawk/internal/metrics"
	"github.com/tracemotorsports/parthawk/internal/monitor"
)

const sourceLabel = string(monitor.SourceCraigslist)

var (
	// The stable numeric listing id sits before the .html suffix of every
	// item detail URL.
	listingURLID = regexp.MustCompile(`/(\d+)\.html`)
	priceText    = regexp.MustCompile(`\$([\d,]+)`)
)

// Config controls the HTML extractor.
type Config struct {
	// BaseURLTemplate builds a sub-region search endpoint; the single %s is
	// the sub-region name. Overridable for tests.
	BaseURLTemplate string
	UserAgent       string
	Timeout         time.Duration
	// PolitenessDelay spaces out sub-region requests.
	PolitenessDelay time.Duration
}

// Extractor implements monitor.Extractor by fetching and parsing search
// result pages per sub-region.
type Extractor struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// New creates an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.BaseURLTemplate == "" {
		cfg.BaseURLTemplate = "https://%s.craigslist.org/search/sss"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PolitenessDelay <= 0 {
		cfg.PolitenessDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.SetRequestTimeout(cfg.Timeout)

	return &Extractor{
		cfg:           cfg,
		baseCollector: c,
		limiter:       rate.NewLimiter(rate.Every(cfg.PolitenessDelay), 1),
		logger:        logger,
	}
}

// Search fans out over the monitor's sub-regions, parses each result page,
// and returns candidates deduplicated across sub-regions. A failing
// sub-region is skipped, never fatal to the others.
func (e *Extractor) Search(ctx context.Context, q monitor.Query) ([]monitor.Candidate, error) {
	keywords := filter.EffectiveKeywords(q)
	regions := Subregions(q.Region)
	e.logger.Info("classifieds search",
		zap.String("keywords", keywords),
		zap.String("region", q.Region),
		zap.Int("subregions", len(regions)),
	)

	var out []monitor.Candidate
	seen := make(map[string]struct{})

	for _, region := range regions {
		if err := e.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("politeness wait: %w", err)
		}

		body, err := e.fetch(ctx, region, keywords, q.MaxPrice)
		if err != nil {
			metrics.ExtractorErrors.WithLabelValues(sourceLabel).Inc()
			e.logger.Warn("subregion fetch failed",
				zap.String("subregion", region),
				zap.Error(err),
			)
			continue
		}

		found := e.parse(body, region)
		added := 0
		for _, c := range found {
			// The same posting appears under multiple sub-region
			// subdomains with one stable numeric id.
			key := c.ListingID
			if m := listingURLID.FindStringSubmatch(c.URL); m != nil {
				key = m[1]
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if filter.ExcludesTitle(c.Title, q.NegativeKeywords) {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
			added++
		}
		e.logger.Debug("subregion parsed",
			zap.String("subregion", region),
			zap.Int("fragments", len(found)),
			zap.Int("added", added),
		)
	}

	e.logger.Info("classifieds search complete", zap.Int("candidates", len(out)))
	return out, nil
}

func (e *Extractor) fetch(ctx context.Context, region, keywords string, maxPrice float64) ([]byte, error) {
	metrics.ExtractorRequests.WithLabelValues(sourceLabel).Inc()

	endpoint := fmt.Sprintf(e.cfg.BaseURLTemplate, region)
	params := url.Values{
		"query":     {keywords},
		"max_price": {strconv.FormatFloat(maxPrice, 'f', -1, 64)},
		"sort":      {"date"},
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := e.baseCollector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != 200 {
			fetchErr = fmt.Errorf("subregion returned status %d", r.StatusCode)
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(endpoint + "?" + params.Encode())
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("subregion fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit subregion: %w", err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("subregion response: %w", fetchErr)
	}
	return body, nil
}

// parse extracts listing fragments, tolerating the two known result layouts.
func (e *Extractor) parse(body []byte, region string) []monitor.Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("parse result page failed", zap.String("subregion", region), zap.Error(err))
		return nil
	}

	var out []monitor.Candidate
	doc.Find("li.cl-static-search-result, li.result-row").Each(func(_ int, sel *goquery.Selection) {
		if c, ok := extractFragment(sel, region); ok {
			out = append(out, c)
		}
	})
	return out
}

func extractFragment(sel *goquery.Selection, region string) (monitor.Candidate, bool) {
	link := sel.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		return listingURLID.MatchString(href)
	}).First()
	href, ok := link.Attr("href")
	if !ok {
		return monitor.Candidate{}, false
	}
	m := listingURLID.FindStringSubmatch(href)
	if m == nil {
		return monitor.Candidate{}, false
	}

	title := strings.TrimSpace(sel.Find("div.title, span.label").First().Text())
	if title == "" {
		title = strings.TrimSpace(sel.Find("a.titlestring, a.cl-app-anchor").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(link.Text())
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
		ListingID: fmt.Sprintf("cl-%s-%s", region, m[1]),
		Title:     title,
		Price:     price,
		URL:       href,
		ImageURL:  image,
	}, true
}
