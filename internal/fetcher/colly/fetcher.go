// Package collyfetcher implements audit.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/audithq/site-auditor/internal/audit"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements audit.Fetcher using the Colly collector. Audited pages
// are fetched on the user's explicit request, so robots.txt is not consulted.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and returns the body with fetch duration.
// Non-2xx responses and transport errors surface as *audit.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (audit.Page, error) {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		page     audit.Page
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		page = audit.Page{
			URL:      r.Request.URL.String(),
			Body:     body,
			Headers:  headers,
			Duration: time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &audit.FetchError{URL: url, Err: fmt.Errorf("status %d: %w", r.StatusCode, err)}
			return
		}
		fetchErr = &audit.FetchError{URL: url, Err: err}
	})

	if err := collector.Visit(url); err != nil {
		return audit.Page{}, &audit.FetchError{URL: url, Err: err}
	}
	collector.Wait()
	if fetchErr != nil {
		return audit.Page{}, fetchErr
	}
	if page.URL == "" {
		return audit.Page{}, &audit.FetchError{URL: url, Err: fmt.Errorf("empty response")}
	}
	return page, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
