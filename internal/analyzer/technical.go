package analyzer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/audithq/site-auditor/internal/audit"
)

// TechnicalConfig tunes the technical engine's outbound checks. All zero
// values fall back to sane defaults.
type TechnicalConfig struct {
	SpeedAPIKey   string
	SpeedEndpoint string
	SpeedTimeout  time.Duration
	FetchTimeout  time.Duration
	ProbeTimeout  time.Duration
}

func (c TechnicalConfig) speedTimeout() time.Duration {
	if c.SpeedTimeout > 0 {
		return c.SpeedTimeout
	}
	return 15 * time.Second
}

func (c TechnicalConfig) fetchTimeout() time.Duration {
	if c.FetchTimeout > 0 {
		return c.FetchTimeout
	}
	return 10 * time.Second
}

func (c TechnicalConfig) probeTimeout() time.Duration {
	if c.ProbeTimeout > 0 {
		return c.ProbeTimeout
	}
	return 5 * time.Second
}

// Technical scores transport security, load speed, mobile friendliness, and
// markup validity, and probes robots.txt/sitemap availability. The overall
// score is the unweighted mean of the pageSpeed, mobile, ssl, and structure
// sub-scores; probes contribute issues only. Probe failures degrade their
// sub-check, they never abort the engine.
func Technical(
	ctx context.Context,
	doc *goquery.Document,
	page audit.Page,
	probe audit.Fetcher,
	cfg TechnicalConfig,
) audit.TechnicalResult {
	markup := string(page.Body)
	pageSpeed := analyzePageSpeed(ctx, doc, page, probe, cfg)
	mobile := analyzeMobile(doc, markup)
	ssl := analyzeSSL(page.URL)
	structure := analyzeMarkup(doc, markup)
	robots := probeRobots(ctx, page.URL, probe, cfg.probeTimeout())
	sitemap := probeSitemap(ctx, page.URL, probe, cfg.probeTimeout())

	score := roundToInt(float64(pageSpeed.Score+mobile.Score+ssl.Score+structure.Score) / 4)

	result := audit.TechnicalResult{
		PageSpeed: pageSpeed,
		Mobile:    mobile,
		SSL:       ssl,
		Structure: structure,
		Robots:    robots,
		Sitemap:   sitemap,
		Score:     clampScore(score),
	}
	result.Issues = flattenIssues(
		pageSpeed.Recommendations,
		mobile.Issues,
		structure.Errors,
		robots.Issues,
		sitemap.Issues,
	)
	return result
}

func analyzeSSL(pageURL string) audit.SSLAnalysis {
	enabled := strings.HasPrefix(pageURL, "https://")
	score := 0
	if enabled {
		score = 100
	}
	return audit.SSLAnalysis{Enabled: enabled, Score: score}
}

func analyzeMobile(doc *goquery.Document, markup string) audit.MobileAnalysis {
	issues := []string{}
	score := 100
	responsive := true

	viewport, hasViewport := doc.Find(`meta[name="viewport"]`).Attr("content")
	if !hasViewport || viewport == "" {
		issues = append(issues, "Missing viewport meta tag")
		responsive = false
		score -= 40
	} else if !strings.Contains(viewport, "width=device-width") {
		issues = append(issues, "Viewport not set to device width")
		score -= 20
	}

	if !strings.Contains(markup, "@media") {
		issues = append(issues, "No responsive CSS media queries detected")
		score -= 30
	}

	if doc.Find(`[width], [style*="width:"]`).Length() > 5 {
		issues = append(issues, "Many fixed-width elements detected")
		score -= 15
	}

	smallText := 0
	doc.Find(`[style*="font-size"]`).Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if m := fontSizeRe.FindStringSubmatch(style); m != nil {
			if px, err := strconv.Atoi(m[1]); err == nil && px < 12 {
				smallText++
			}
		}
	})
	if smallText > 0 {
		issues = append(issues, "Small text detected (may be hard to read on mobile)")
		score -= 10
	}

	return audit.MobileAnalysis{
		Responsive: responsive && score > 50,
		Score:      clampScore(score),
		Issues:     issues,
	}
}

func analyzeMarkup(doc *goquery.Document, markup string) audit.MarkupAnalysis {
	errs := []string{}
	score := 100

	if !strings.Contains(markup, "<!DOCTYPE") && !strings.Contains(markup, "<!doctype") {
		errs = append(errs, "Missing DOCTYPE declaration")
		score -= 20
	}

	if lang, ok := doc.Find("html").Attr("lang"); !ok || lang == "" {
		errs = append(errs, "Missing language attribute on HTML element")
		score -= 15
	}

	if doc.Find("title").Length() == 0 {
		errs = append(errs, "Missing title element")
		score -= 25
	}

	if doc.Find("meta[charset]").Length() == 0 && !strings.Contains(markup, "charset=") {
		errs = append(errs, "Missing character encoding declaration")
		score -= 10
	}

	seen := map[string]bool{}
	var duplicateIDs []string
	dupReported := map[string]bool{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id == "" {
			return
		}
		if seen[id] && !dupReported[id] {
			duplicateIDs = append(duplicateIDs, id)
			dupReported[id] = true
			return
		}
		seen[id] = true
	})
	if len(duplicateIDs) > 0 {
		errs = append(errs, fmt.Sprintf("Duplicate IDs found: %s", strings.Join(duplicateIDs, ", ")))
		score -= len(duplicateIDs) * 5
	}

	if missingAlt := doc.Find("img:not([alt])").Length(); missingAlt > 0 {
		errs = append(errs, fmt.Sprintf("%d images missing alt attributes", missingAlt))
		penalty := missingAlt * 2
		if penalty > 20 {
			penalty = 20
		}
		score -= penalty
	}

	return audit.MarkupAnalysis{
		ValidHTML: len(errs) == 0,
		Score:     clampScore(score),
		Errors:    errs,
	}
}

func probeRobots(ctx context.Context, pageURL string, probe audit.Fetcher, timeout time.Duration) audit.ProbeAnalysis {
	issues := []string{}
	robotsURL, err := resolvePath(pageURL, "/robots.txt")
	if err != nil {
		return audit.ProbeAnalysis{Issues: []string{"robots.txt not found or inaccessible"}}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page, err := probe.Fetch(probeCtx, robotsURL)
	if err != nil {
		return audit.ProbeAnalysis{Issues: []string{"robots.txt not found or inaccessible"}}
	}

	content := string(page.Body)
	if !strings.Contains(content, "User-agent:") {
		issues = append(issues, "robots.txt missing User-agent directive")
	}
	if !strings.Contains(content, "Sitemap:") {
		issues = append(issues, "robots.txt missing Sitemap directive")
	}

	return audit.ProbeAnalysis{Exists: true, Accessible: true, Issues: issues}
}

var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps/sitemap.xml"}

func probeSitemap(ctx context.Context, pageURL string, probe audit.Fetcher, timeout time.Duration) audit.ProbeAnalysis {
	issues := []string{}
	for _, path := range sitemapPaths {
		sitemapURL, err := resolvePath(pageURL, path)
		if err != nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		page, err := probe.Fetch(probeCtx, sitemapURL)
		cancel()
		if err != nil {
			continue
		}
		content := string(page.Body)
		if !strings.Contains(content, "<urlset") && !strings.Contains(content, "<sitemapindex") {
			issues = append(issues, "Sitemap format may be invalid")
		}
		if !strings.Contains(content, "<loc>") {
			issues = append(issues, "Sitemap missing URL locations")
		}
		return audit.ProbeAnalysis{Exists: true, Accessible: true, Issues: issues}
	}
	return audit.ProbeAnalysis{Issues: []string{"XML sitemap not found in common locations"}}
}

func resolvePath(pageURL, path string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
