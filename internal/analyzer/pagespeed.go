package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/audithq/site-auditor/internal/audit"
)

const maxSpeedRecommendations = 10

// analyzePageSpeed grades load performance. With an API key configured it
// queries the external grading service; on API failure or when no key is set
// it falls back to a timed fetch of the page itself.
func analyzePageSpeed(
	ctx context.Context,
	doc *goquery.Document,
	page audit.Page,
	probe audit.Fetcher,
	cfg TechnicalConfig,
) audit.PageSpeedAnalysis {
	if cfg.SpeedAPIKey != "" && cfg.SpeedEndpoint != "" {
		result, err := gradeViaAPI(ctx, doc, page, probe, cfg)
		if err == nil {
			return result
		}
	}
	return gradeViaTimedFetch(ctx, page.URL, probe, cfg.fetchTimeout())
}

// lighthouseResponse is the slice of the grading API response we consume.
type lighthouseResponse struct {
	LighthouseResult *lighthouseResult `json:"lighthouseResult"`
}

type lighthouseResult struct {
	Categories struct {
		Performance struct {
			Score float64 `json:"score"`
		} `json:"performance"`
	} `json:"categories"`
	Audits map[string]lighthouseAudit `json:"audits"`
}

type lighthouseAudit struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DisplayValue string   `json:"displayValue"`
	Score        *float64 `json:"score"`
	NumericValue *float64 `json:"numericValue"`
}

func gradeViaAPI(
	ctx context.Context,
	doc *goquery.Document,
	page audit.Page,
	probe audit.Fetcher,
	cfg TechnicalConfig,
) (audit.PageSpeedAnalysis, error) {
	apiURL := fmt.Sprintf("%s?url=%s&key=%s&strategy=mobile",
		cfg.SpeedEndpoint, url.QueryEscape(page.URL), url.QueryEscape(cfg.SpeedAPIKey))

	apiCtx, cancel := context.WithTimeout(ctx, cfg.speedTimeout())
	defer cancel()
	apiPage, err := probe.Fetch(apiCtx, apiURL)
	if err != nil {
		return audit.PageSpeedAnalysis{}, &audit.ExternalServiceError{Service: "pagespeed", Err: err}
	}

	var resp lighthouseResponse
	if err := json.Unmarshal(apiPage.Body, &resp); err != nil {
		return audit.PageSpeedAnalysis{}, &audit.ExternalServiceError{Service: "pagespeed", Err: err}
	}
	if resp.LighthouseResult == nil {
		return audit.PageSpeedAnalysis{}, &audit.ExternalServiceError{
			Service: "pagespeed",
			Err:     fmt.Errorf("response missing lighthouse result"),
		}
	}

	lr := resp.LighthouseResult
	score := clampScore(roundToInt(lr.Categories.Performance.Score * 100))
	loadTime := lighthouseLoadTime(lr.Audits)

	recs := lighthouseRecommendations(lr.Audits)
	if len(recs) == 0 {
		recs = staticSpeedRecommendations(doc, page)
	}

	return audit.PageSpeedAnalysis{
		LoadTimeMs:      loadTime,
		Score:           score,
		Recommendations: recs,
	}, nil
}

func lighthouseLoadTime(audits map[string]lighthouseAudit) int64 {
	for _, id := range []string{"interactive", "first-contentful-paint"} {
		if a, ok := audits[id]; ok && a.NumericValue != nil {
			return int64(*a.NumericValue)
		}
	}
	return 0
}

// lighthouseRecommendations extracts failing audits in deterministic order.
func lighthouseRecommendations(audits map[string]lighthouseAudit) []string {
	ids := make([]string, 0, len(audits))
	for id := range audits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recs := []string{}
	for _, id := range ids {
		a := audits[id]
		if a.Score == nil || *a.Score >= 0.9 || a.Title == "" {
			continue
		}
		detail := a.DisplayValue
		if detail == "" {
			detail = a.Description
		}
		if detail != "" {
			recs = append(recs, fmt.Sprintf("%s: %s", a.Title, detail))
		} else {
			recs = append(recs, a.Title)
		}
		if len(recs) == maxSpeedRecommendations {
			break
		}
	}
	return recs
}

// staticSpeedRecommendations derives advice from the fetched page itself.
// Used when the grading API passes everything or returns no actionable
// audits. The compression check needs response headers; a page fetched
// without them skips it.
func staticSpeedRecommendations(doc *goquery.Document, page audit.Page) []string {
	markup := string(page.Body)
	recs := []string{}
	if doc.Find("img").Length() > 20 {
		recs = append(recs, "Consider lazy-loading images to reduce initial page weight")
	}
	if doc.Find(`script[src]`).Length() > 10 {
		recs = append(recs, "Reduce the number of external scripts")
	}
	if doc.Find(`link[rel="stylesheet"]`).Length() > 5 {
		recs = append(recs, "Combine stylesheets to cut render-blocking requests")
	}
	if len(page.Headers) > 0 && page.Headers.Get("Content-Encoding") == "" {
		recs = append(recs, "Enable compression (gzip/brotli)")
	}
	if len(markup) > 500_000 {
		recs = append(recs, "Page markup is very large; consider trimming inline content")
	}
	if !strings.Contains(markup, `loading="lazy"`) && doc.Find("img").Length() > 5 {
		recs = append(recs, "Add native lazy loading to below-the-fold images")
	}
	return recs
}

// gradeViaTimedFetch measures wall-clock fetch duration as a crude speed
// proxy when the grading API is unavailable.
func gradeViaTimedFetch(ctx context.Context, pageURL string, probe audit.Fetcher, timeout time.Duration) audit.PageSpeedAnalysis {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := probe.Fetch(fetchCtx, pageURL)
	if err != nil {
		return audit.PageSpeedAnalysis{
			LoadTimeMs:      0,
			Score:           0,
			Recommendations: []string{"Page could not be fetched for speed measurement"},
		}
	}

	loadTime := page.Duration.Milliseconds()
	score := 100
	recs := []string{}
	switch {
	case loadTime > 3000:
		score -= 30
		recs = append(recs, "Page load time exceeds 3 seconds; optimize server response and assets")
	case loadTime > 2000:
		score -= 15
		recs = append(recs, "Page load time exceeds 2 seconds; consider caching and compression")
	}

	return audit.PageSpeedAnalysis{
		LoadTimeMs:      loadTime,
		Score:           clampScore(score),
		Recommendations: recs,
	}
}
