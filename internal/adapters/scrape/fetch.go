// Package scrape fetches and parses HKJC race result pages.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/pkg/logger"
	"github.com/okian/formguide/pkg/metrics"
)

// Default fetcher configuration.
const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Fetcher downloads result pages and turns them into races. It makes one
// attempt per page.
type Fetcher struct {
	client *resty.Client
	logger logger.Logger
}

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.SetTimeout(d)
		}
	}
}

// WithUserAgent overrides the user agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher over a fresh resty client.
func NewFetcher(opts ...Option) *Fetcher {
	client := resty.New()
	client.SetHeader("User-Agent", defaultUserAgent)
	client.SetTimeout(defaultTimeout)
	f := &Fetcher{client: client, logger: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get downloads a page body.
func (f *Fetcher) Get(ctx context.Context, pageURL string) ([]byte, error) {
	start := time.Now()
	res, err := f.client.R().SetContext(ctx).Get(pageURL)
	metrics.RecordPageFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, pageURL, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, pageURL, res.StatusCode())
	}
	return res.Body(), nil
}

// FetchRace downloads and parses the result page at pageURL, then follows the
// sectional times link when the page has one. A missing or broken sectional
// page is logged and leaves the race without sectionals.
func (f *Fetcher) FetchRace(ctx context.Context, pageURL string) (Page, error) {
	body, err := f.Get(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	page, err := ParseResultPage(pageURL, bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	if page.SectionalURL == "" {
		return page, nil
	}

	link, err := resolve(pageURL, page.SectionalURL)
	if err != nil {
		f.logger.Warn(ctx, "bad sectional times link", logger.String("url", page.SectionalURL), logger.Error(err))
		return page, nil
	}
	page.SectionalURL = link
	sbody, err := f.Get(ctx, link)
	if err == nil {
		var secs []model.SectionalTime
		if secs, err = ParseSectionalPage(link, bytes.NewReader(sbody)); err == nil {
			AttachSectionals(&page.Race, secs)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		f.logger.Warn(ctx, "sectional times unavailable",
			logger.String("url", link),
			logger.Error(err),
		)
	}
	return page, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// AttachSectionals stores sectionals on the race and on each runner.
func AttachSectionals(race *model.Race, secs []model.SectionalTime) {
	race.Sectionals = secs
	byHorse := make(map[string]int, len(race.Results))
	for i, r := range race.Results {
		byHorse[r.HorseID] = i
	}
	for _, st := range secs {
		if i, ok := byHorse[st.HorseID]; ok {
			race.Results[i].Sectionals = append(race.Results[i].Sectionals, st)
		}
	}
}
