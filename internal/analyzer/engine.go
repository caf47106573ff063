package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/audithq/site-auditor/internal/audit"
)

// Engine runs one analysis pass over fetched page markup. Implementations
// are stateless and safe for concurrent use.
type Engine interface {
	Type() audit.AnalyzerType
	Analyze(ctx context.Context, page audit.Page) (json.RawMessage, error)
}

func parsePage(page audit.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return doc, nil
}

// StructuralEngine scores on-page structure and metadata.
type StructuralEngine struct{}

func NewStructuralEngine() *StructuralEngine { return &StructuralEngine{} }

func (e *StructuralEngine) Type() audit.AnalyzerType { return audit.AnalyzerStructural }

func (e *StructuralEngine) Analyze(_ context.Context, page audit.Page) (json.RawMessage, error) {
	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Structural(doc, page.URL))
}

// ContentEngine scores textual content quality.
type ContentEngine struct{}

func NewContentEngine() *ContentEngine { return &ContentEngine{} }

func (e *ContentEngine) Type() audit.AnalyzerType { return audit.AnalyzerContent }

func (e *ContentEngine) Analyze(_ context.Context, page audit.Page) (json.RawMessage, error) {
	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Content(doc))
}

// TechnicalEngine scores transport, speed, mobile, and markup health. Its
// probes reuse the worker's fetcher so timeouts and user agent stay uniform.
type TechnicalEngine struct {
	probe audit.Fetcher
	cfg   TechnicalConfig
}

func NewTechnicalEngine(probe audit.Fetcher, cfg TechnicalConfig) *TechnicalEngine {
	return &TechnicalEngine{probe: probe, cfg: cfg}
}

func (e *TechnicalEngine) Type() audit.AnalyzerType { return audit.AnalyzerTechnical }

func (e *TechnicalEngine) Analyze(ctx context.Context, page audit.Page) (json.RawMessage, error) {
	doc, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	result := Technical(ctx, doc, page, e.probe, e.cfg)
	return json.Marshal(result)
}
