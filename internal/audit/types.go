package audit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AnalyzerType identifies one of the three analysis engines. It doubles as
// the queue name each engine's tasks are routed through.
type AnalyzerType string

// Supported analyzer types.
const (
	AnalyzerStructural AnalyzerType = "structural"
	AnalyzerContent    AnalyzerType = "content"
	AnalyzerTechnical  AnalyzerType = "technical"
)

// AnalyzerTypes lists every engine in fan-out order. The orchestrator
// staggers enqueue delays by position in this slice.
func AnalyzerTypes() []AnalyzerType {
	return []AnalyzerType{AnalyzerStructural, AnalyzerContent, AnalyzerTechnical}
}

// Valid reports whether t names a known engine.
func (t AnalyzerType) Valid() bool {
	switch t {
	case AnalyzerStructural, AnalyzerContent, AnalyzerTechnical:
		return true
	default:
		return false
	}
}

// TaskID derives the deterministic task identifier for an analyzer within a
// session. The progress aggregator relies on this shape to look tasks up
// without a side index.
func TaskID(t AnalyzerType, sessionID string) string {
	return fmt.Sprintf("%s-%s", t, sessionID)
}

// TaskState is the lifecycle state of a queued analysis task.
type TaskState string

// Task states. Completed and failed are terminal.
const (
	TaskWaiting   TaskState = "waiting"
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskPayload is the closed, versioned job payload accepted at the queue
// boundary. Every field is explicit; there is no dynamic option bag.
type TaskPayload struct {
	URL         string       `json:"url"`
	UserID      string       `json:"userId"`
	Timestamp   int64        `json:"timestamp"` // epoch millis at enqueue
	Type        AnalyzerType `json:"analysisType"`
	IncludeImgs bool         `json:"includeImages"`
	CheckMobile bool         `json:"checkMobileFriendly"`
}

// Validate rejects payloads that would otherwise poison a queue consumer.
func (p TaskPayload) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("unknown analyzer type %q", p.Type)
	}
	if p.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if _, err := NormalizeURL(p.URL); err != nil {
		return err
	}
	return nil
}

// TaskOptions are the per-enqueue overrides a caller may set. Zero values
// fall back to the owning queue's configuration.
type TaskOptions struct {
	Priority    int           `json:"priority"`
	Delay       time.Duration `json:"delay"`
	Attempts    int           `json:"attempts"`
	BackoffBase time.Duration `json:"backoffDelay"`
}

// Task is the queue-visible record of one unit of analysis work.
type Task struct {
	ID            string       `json:"id"`
	Queue         AnalyzerType `json:"queue"`
	State         TaskState    `json:"state"`
	Progress      int          `json:"progress"`
	Attempt       int          `json:"attempt"`
	MaxAttempts   int          `json:"maxAttempts"`
	FailureReason string       `json:"failureReason,omitempty"`
	Payload       TaskPayload  `json:"payload"`
	EnqueuedAt    time.Time    `json:"enqueuedAt"`
	FinishedAt    *time.Time   `json:"finishedAt,omitempty"`
}

// Page is fetched target markup handed to the engines. Headers carry the
// response headers when the fetcher exposes them; a nil map means unknown.
type Page struct {
	URL      string
	Body     []byte
	Headers  http.Header
	Duration time.Duration
}

// NormalizeURL validates rawURL as a well-formed absolute URL and returns
// its canonical form (lowercased scheme/host, fragment stripped). Invalid
// input yields ErrInvalidURL.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
