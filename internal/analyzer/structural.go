package analyzer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/audithq/site-auditor/internal/audit"
)

// Structural sub-analysis weights. They sum to 1.00.
const (
	weightTitle           = 0.20
	weightMetaDescription = 0.15
	weightHeadings        = 0.15
	weightImages          = 0.10
	weightLinks           = 0.10
	weightFavicon         = 0.05
	weightOpenGraph       = 0.15
	weightTwitterCard     = 0.10
)

// Structural scores page-structure signals: title, meta description, heading
// outline, images, links, favicon, and social metadata. pageURL must be the
// canonical absolute URL of the document.
func Structural(doc *goquery.Document, pageURL string) audit.StructuralResult {
	title := analyzeTitle(doc)
	metaDesc := analyzeMetaDescription(doc)
	headings := analyzeHeadings(doc)
	images := analyzeImages(doc)
	links := analyzeLinks(doc, pageURL)
	favicon := analyzeFavicon(doc, pageURL)
	openGraph := analyzeOpenGraph(doc)
	twitterCard := analyzeTwitterCard(doc)

	weighted := float64(title.Score)*weightTitle +
		float64(metaDesc.Score)*weightMetaDescription +
		float64(headings.Score)*weightHeadings +
		float64(images.Score)*weightImages +
		float64(links.Score)*weightLinks +
		float64(favicon.Score)*weightFavicon +
		float64(openGraph.Score)*weightOpenGraph +
		float64(twitterCard.Score)*weightTwitterCard

	result := audit.StructuralResult{
		Title:           title,
		MetaDescription: metaDesc,
		Headings:        headings,
		Images:          images,
		Links:           links,
		Favicon:         favicon,
		OpenGraph:       openGraph,
		TwitterCard:     twitterCard,
		Score:           clampScore(roundToInt(weighted)),
	}
	result.Issues = flattenIssues(
		title.Issues,
		metaDesc.Issues,
		headings.Issues,
		images.Issues,
		links.Issues,
		favicon.Issues,
		openGraph.Issues,
		twitterCard.Issues,
	)
	return result
}

func analyzeTitle(doc *goquery.Document) audit.TitleAnalysis {
	text := strings.TrimSpace(doc.Find("title").First().Text())
	length := len(text)
	issues := []string{}
	score := 100

	if text == "" {
		issues = append(issues, "Missing page title")
		score = 0
	} else {
		if length < 30 {
			issues = append(issues, "Title too short (recommended: 50-60 characters)")
			score -= 20
		}
		if length > 60 {
			issues = append(issues, "Title too long (recommended: 50-60 characters)")
			score -= 15
		}
		if !strings.Contains(text, "|") && !strings.Contains(text, "-") {
			issues = append(issues, "Consider adding brand name to title")
			score -= 10
		}
	}

	return audit.TitleAnalysis{
		Exists: text != "",
		Length: length,
		Text:   text,
		Score:  clampScore(score),
		Issues: issues,
	}
}

func analyzeMetaDescription(doc *goquery.Document) audit.MetaDescriptionAnalysis {
	text, _ := doc.Find(`meta[name="description"]`).Attr("content")
	length := len(text)
	issues := []string{}
	score := 100

	if text == "" {
		issues = append(issues, "Missing meta description")
		score = 0
	} else {
		if length < 120 {
			issues = append(issues, "Meta description too short (recommended: 150-160 characters)")
			score -= 20
		}
		if length > 160 {
			issues = append(issues, "Meta description too long (recommended: 150-160 characters)")
			score -= 15
		}
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "click") && !strings.Contains(lower, "learn") {
			issues = append(issues, "Consider adding a call-to-action")
			score -= 10
		}
	}

	return audit.MetaDescriptionAnalysis{
		Exists: text != "",
		Length: length,
		Text:   text,
		Score:  clampScore(score),
		Issues: issues,
	}
}

func analyzeHeadings(doc *goquery.Document) audit.HeadingAnalysis {
	h1Count := doc.Find("h1").Length()
	h2Count := doc.Find("h2").Length()

	var structure []audit.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		level := 0
		if len(tag) == 2 {
			level = int(tag[1] - '0')
		}
		structure = append(structure, audit.Heading{
			Tag:   tag,
			Text:  strings.TrimSpace(s.Text()),
			Level: level,
		})
	})

	issues := []string{}
	score := 100

	if h1Count == 0 {
		issues = append(issues, "Missing H1 tag")
		score -= 30
	} else if h1Count > 1 {
		issues = append(issues, "Multiple H1 tags found (should have only one)")
		score -= 20
	}

	if h2Count == 0 {
		issues = append(issues, "No H2 tags found (recommended for content structure)")
		score -= 15
	}

	// A level skip is reported once, not per violation.
	previousLevel := 0
	for _, h := range structure {
		if h.Level > previousLevel+1 {
			issues = append(issues, "Heading hierarchy not properly structured")
			score -= 10
			break
		}
		previousLevel = h.Level
	}

	return audit.HeadingAnalysis{
		H1Count:   h1Count,
		H2Count:   h2Count,
		Structure: structure,
		Score:     clampScore(score),
		Issues:    issues,
	}
}

func analyzeImages(doc *goquery.Document) audit.ImageAnalysis {
	images := doc.Find("img")
	total := images.Length()
	withoutAlt := 0
	images.Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		if strings.TrimSpace(alt) == "" {
			withoutAlt++
		}
	})

	issues := []string{}
	score := 100.0

	if withoutAlt > 0 {
		issues = append(issues, fmt.Sprintf("%d image(s) missing alt text", withoutAlt))
		score -= float64(withoutAlt) / float64(total) * 40
	}

	if total == 0 {
		issues = append(issues, "No images found (consider adding relevant images)")
		score -= 10
	}

	return audit.ImageAnalysis{
		Total:      total,
		WithoutAlt: withoutAlt,
		Score:      clampScore(roundToInt(score)),
		Issues:     issues,
	}
}

func analyzeLinks(doc *goquery.Document, pageURL string) audit.LinkAnalysis {
	hostname := ""
	if u, err := url.Parse(pageURL); err == nil {
		hostname = u.Hostname()
	}

	internal, external := 0, 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch {
		case strings.HasPrefix(href, "http") && hostname != "" && !strings.Contains(href, hostname):
			external++
		case strings.HasPrefix(href, "/") || (hostname != "" && strings.Contains(href, hostname)):
			internal++
		}
	})

	issues := []string{}
	score := 100

	if internal == 0 {
		issues = append(issues, "No internal links found")
		score -= 20
	}
	if external == 0 {
		issues = append(issues, "No external links found (consider linking to authoritative sources)")
		score -= 10
	}

	return audit.LinkAnalysis{
		Internal: internal,
		External: external,
		Score:    clampScore(score),
		Issues:   issues,
	}
}

var faviconSelectors = []string{
	`link[rel="icon"]`,
	`link[rel="shortcut icon"]`,
	`link[rel="apple-touch-icon"]`,
	`link[rel="apple-touch-icon-precomposed"]`,
}

func analyzeFavicon(doc *goquery.Document, pageURL string) audit.FaviconAnalysis {
	issues := []string{}
	score := 100
	exists := false
	faviconURL := ""

	base, err := url.Parse(pageURL)
	if err != nil {
		return audit.FaviconAnalysis{Score: 50, Issues: []string{"Error analyzing favicon"}}
	}

	for _, selector := range faviconSelectors {
		link := doc.Find(selector).First()
		if link.Length() == 0 {
			continue
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			continue
		}
		switch {
		case strings.HasPrefix(href, "/"):
			faviconURL = fmt.Sprintf("%s://%s%s", base.Scheme, base.Host, href)
		case !strings.HasPrefix(href, "http"):
			faviconURL = fmt.Sprintf("%s://%s/%s", base.Scheme, base.Host, href)
		default:
			faviconURL = href
		}
		exists = true
		break
	}

	if faviconURL == "" {
		faviconURL = fmt.Sprintf("%s://%s/favicon.ico", base.Scheme, base.Host)
	}

	if !exists {
		issues = append(issues, "No favicon link tag found in HTML")
		score -= 20
		issues = append(issues, `Consider adding <link rel="icon" href="/favicon.ico"> to <head>`)
	}

	if exists && doc.Find(`link[rel="apple-touch-icon"]`).Length() == 0 {
		issues = append(issues, "Consider adding Apple touch icons for better mobile support")
		score -= 10
	}

	if exists && doc.Find(`link[rel="icon"]`).Length() == 1 {
		if _, ok := doc.Find(`link[rel="icon"]`).First().Attr("sizes"); !ok {
			issues = append(issues, "Consider specifying favicon sizes attribute")
			score -= 5
		}
	}

	return audit.FaviconAnalysis{
		Exists: exists,
		URL:    faviconURL,
		Score:  clampScore(score),
		Issues: issues,
	}
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).Attr("content")
	return content
}

func metaName(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).Attr("content")
	return content
}

func analyzeOpenGraph(doc *goquery.Document) audit.OpenGraphAnalysis {
	issues := []string{}
	score := 100

	ogTitle := metaProperty(doc, "og:title")
	ogDescription := metaProperty(doc, "og:description")
	ogImage := metaProperty(doc, "og:image")
	ogURL := metaProperty(doc, "og:url")
	ogType := metaProperty(doc, "og:type")
	ogSiteName := metaProperty(doc, "og:site_name")
	ogImageWidth := metaProperty(doc, "og:image:width")
	ogImageHeight := metaProperty(doc, "og:image:height")
	ogImageAlt := metaProperty(doc, "og:image:alt")
	ogLocale := metaProperty(doc, "og:locale")

	if ogTitle == "" {
		issues = append(issues, "Missing og:title meta tag")
		score -= 20
	} else if len(ogTitle) > 60 {
		issues = append(issues, "og:title too long (recommended: under 60 characters)")
		score -= 10
	}

	if ogDescription == "" {
		issues = append(issues, "Missing og:description meta tag")
		score -= 20
	} else if len(ogDescription) > 160 {
		issues = append(issues, "og:description too long (recommended: under 160 characters)")
		score -= 10
	}

	if ogImage == "" {
		issues = append(issues, "Missing og:image meta tag")
		score -= 15
	} else {
		if ogImageWidth == "" || ogImageHeight == "" {
			issues = append(issues, "Consider adding og:image:width and og:image:height")
			score -= 5
		}
		if ogImageAlt == "" {
			issues = append(issues, "Missing og:image:alt for accessibility")
			score -= 5
		}
	}

	if ogURL == "" {
		issues = append(issues, "Missing og:url meta tag")
		score -= 10
	}
	if ogType == "" {
		issues = append(issues, "Missing og:type meta tag")
		score -= 10
	}
	if ogSiteName == "" {
		issues = append(issues, "Consider adding og:site_name meta tag")
		score -= 5
	}
	if ogLocale == "" {
		issues = append(issues, "Consider adding og:locale meta tag")
		score -= 5
	}

	return audit.OpenGraphAnalysis{
		Title:       ogTitle,
		Description: ogDescription,
		Image:       ogImage,
		URL:         ogURL,
		Type:        ogType,
		SiteName:    ogSiteName,
		Score:       clampScore(score),
		Issues:      issues,
	}
}

var validTwitterCardTypes = map[string]bool{
	"summary":             true,
	"summary_large_image": true,
	"app":                 true,
	"player":              true,
}

func analyzeTwitterCard(doc *goquery.Document) audit.TwitterCardAnalysis {
	issues := []string{}
	score := 100

	card := metaName(doc, "twitter:card")
	title := metaName(doc, "twitter:title")
	description := metaName(doc, "twitter:description")
	image := metaName(doc, "twitter:image")
	site := metaName(doc, "twitter:site")
	creator := metaName(doc, "twitter:creator")
	imageAlt := metaName(doc, "twitter:image:alt")

	if card == "" {
		issues = append(issues, "Missing twitter:card meta tag")
		score -= 20
	} else if !validTwitterCardTypes[card] {
		issues = append(issues, "Invalid twitter:card type (use: summary, summary_large_image, app, or player)")
		score -= 15
	}

	if title == "" {
		issues = append(issues, "Missing twitter:title meta tag")
		score -= 15
	} else if len(title) > 70 {
		issues = append(issues, "twitter:title too long (recommended: under 70 characters)")
		score -= 10
	}

	if description == "" {
		issues = append(issues, "Missing twitter:description meta tag")
		score -= 15
	} else if len(description) > 200 {
		issues = append(issues, "twitter:description too long (recommended: under 200 characters)")
		score -= 10
	}

	if image == "" {
		issues = append(issues, "Missing twitter:image meta tag")
		score -= 15
	} else if imageAlt == "" {
		issues = append(issues, "Missing twitter:image:alt for accessibility")
		score -= 10
	}

	if site == "" {
		issues = append(issues, "Consider adding twitter:site meta tag")
		score -= 10
	}
	if creator == "" {
		issues = append(issues, "Consider adding twitter:creator meta tag")
		score -= 5
	}

	return audit.TwitterCardAnalysis{
		Card:        card,
		Title:       title,
		Description: description,
		Image:       image,
		Score:       clampScore(score),
		Issues:      issues,
	}
}

func flattenIssues(lists ...[]string) []string {
	out := []string{}
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}
