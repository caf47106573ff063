package audit

// Result shapes produced by the three engines. Every Score is clamped to
// [0,100]; Issues mixes error and recommendation vocabularies on purpose so
// clients get one flat list per engine.

// TitleAnalysis scores the <title> element.
type TitleAnalysis struct {
	Exists bool     `json:"exists"`
	Length int      `json:"length"`
	Text   string   `json:"text,omitempty"`
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// MetaDescriptionAnalysis scores the description meta tag.
type MetaDescriptionAnalysis struct {
	Exists bool     `json:"exists"`
	Length int      `json:"length"`
	Text   string   `json:"text,omitempty"`
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// Heading is one entry in the document outline.
type Heading struct {
	Tag   string `json:"tag"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// HeadingAnalysis scores the heading structure.
type HeadingAnalysis struct {
	H1Count   int       `json:"h1Count"`
	H2Count   int       `json:"h2Count"`
	Structure []Heading `json:"structure"`
	Score     int       `json:"score"`
	Issues    []string  `json:"issues"`
}

// ImageAnalysis scores image alt-text coverage.
type ImageAnalysis struct {
	Total      int      `json:"total"`
	WithoutAlt int      `json:"withoutAlt"`
	Score      int      `json:"score"`
	Issues     []string `json:"issues"`
}

// LinkAnalysis scores internal/external link presence.
type LinkAnalysis struct {
	Internal int      `json:"internal"`
	External int      `json:"external"`
	Broken   int      `json:"broken"`
	Score    int      `json:"score"`
	Issues   []string `json:"issues"`
}

// FaviconAnalysis scores favicon declarations.
type FaviconAnalysis struct {
	Exists bool     `json:"exists"`
	URL    string   `json:"url,omitempty"`
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// OpenGraphAnalysis scores OpenGraph social metadata.
type OpenGraphAnalysis struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	URL         string   `json:"url,omitempty"`
	Type        string   `json:"type,omitempty"`
	SiteName    string   `json:"siteName,omitempty"`
	Score       int      `json:"score"`
	Issues      []string `json:"issues"`
}

// TwitterCardAnalysis scores Twitter card metadata.
type TwitterCardAnalysis struct {
	Card        string   `json:"card,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Score       int      `json:"score"`
	Issues      []string `json:"issues"`
}

// StructuralResult is the structural engine's output. Score is the rounded
// weighted sum of the sub-scores.
type StructuralResult struct {
	Title           TitleAnalysis           `json:"title"`
	MetaDescription MetaDescriptionAnalysis `json:"metaDescription"`
	Headings        HeadingAnalysis         `json:"headings"`
	Images          ImageAnalysis           `json:"images"`
	Links           LinkAnalysis            `json:"links"`
	Favicon         FaviconAnalysis         `json:"favicon"`
	OpenGraph       OpenGraphAnalysis       `json:"openGraph"`
	TwitterCard     TwitterCardAnalysis     `json:"twitterCard"`
	Score           int                     `json:"score"`
	Issues          []string                `json:"issues"`
}

// DuplicateContentAnalysis reports the paragraph-level Jaccard duplication
// heuristic.
type DuplicateContentAnalysis struct {
	Percentage float64  `json:"percentage"`
	Issues     []string `json:"issues"`
}

// QualityFactors are the components of the content-quality score.
type QualityFactors struct {
	Length     int `json:"length"`
	Uniqueness int `json:"uniqueness"`
	Structure  int `json:"structure"`
}

// ContentQualityAnalysis is the mean of the quality factors.
type ContentQualityAnalysis struct {
	Score   int            `json:"score"`
	Factors QualityFactors `json:"factors"`
}

// ContentResult is the content engine's output.
type ContentResult struct {
	WordCount        int                      `json:"wordCount"`
	ReadabilityScore int                      `json:"readabilityScore"`
	KeywordDensity   map[string]float64       `json:"keywordDensity"`
	DuplicateContent DuplicateContentAnalysis `json:"duplicateContent"`
	ContentQuality   ContentQualityAnalysis   `json:"contentQuality"`
	Score            int                      `json:"score"`
	Issues           []string                 `json:"issues"`
}

// PageSpeedAnalysis scores load performance, via the external grading API
// when configured or a timed fetch otherwise.
type PageSpeedAnalysis struct {
	LoadTimeMs      int64    `json:"loadTime"`
	Score           int      `json:"score"`
	Recommendations []string `json:"recommendations"`
}

// MobileAnalysis scores mobile friendliness heuristics.
type MobileAnalysis struct {
	Responsive bool     `json:"responsive"`
	Score      int      `json:"score"`
	Issues     []string `json:"issues"`
}

// SSLAnalysis is the binary transport-security check.
type SSLAnalysis struct {
	Enabled bool `json:"enabled"`
	Score   int  `json:"score"`
}

// MarkupAnalysis scores basic HTML validity.
type MarkupAnalysis struct {
	ValidHTML bool     `json:"validHTML"`
	Score     int      `json:"score"`
	Errors    []string `json:"errors"`
}

// ProbeAnalysis reports a robots.txt or sitemap existence probe. Probes
// contribute issues but never to the numeric technical score.
type ProbeAnalysis struct {
	Exists     bool     `json:"exists"`
	Accessible bool     `json:"accessible"`
	Issues     []string `json:"issues"`
}

// TechnicalResult is the technical engine's output. Score is the unweighted
// mean of {PageSpeed, Mobile, SSL, Structure} scores.
type TechnicalResult struct {
	PageSpeed PageSpeedAnalysis `json:"pageSpeed"`
	Mobile    MobileAnalysis    `json:"mobile"`
	SSL       SSLAnalysis       `json:"ssl"`
	Structure MarkupAnalysis    `json:"structure"`
	Robots    ProbeAnalysis     `json:"robots"`
	Sitemap   ProbeAnalysis     `json:"sitemap"`
	Score     int               `json:"score"`
	Issues    []string          `json:"issues"`
}
