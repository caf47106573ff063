// Package orchestrator fans a single analysis request out into per-analyzer
// queue tasks and hands back the identifiers clients poll with.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/audithq/site-auditor/internal/audit"
	"github.com/audithq/site-auditor/internal/metrics"
	"github.com/audithq/site-auditor/internal/queue"
)

// Options are the per-request analysis knobs accepted at the API boundary.
type Options struct {
	Priority            int
	IncludeImages       bool
	CheckMobileFriendly bool
}

// Session is the fan-out receipt for one analysis request.
type Session struct {
	SessionID    string                        `json:"sessionId"`
	TaskIDs      map[audit.AnalyzerType]string `json:"taskIds"`
	TrackingPath string                        `json:"trackingUrl"`
}

// Config controls fan-out behavior.
type Config struct {
	// Stagger delays each analyzer's enqueue by its fan-out position, so
	// the three engines do not hit the target simultaneously.
	Stagger time.Duration
}

// Orchestrator starts analysis sessions against a queue set.
type Orchestrator struct {
	queues *queue.Set
	ids    audit.IDGenerator
	clock  audit.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(queues *queue.Set, ids audit.IDGenerator, clock audit.Clock, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		queues: queues,
		ids:    ids,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// StartSession validates the target URL, mints a session ID, and enqueues
// one task per analyzer under deterministic task IDs. Enqueue delays are
// staggered by fan-out position.
func (o *Orchestrator) StartSession(ctx context.Context, userID, rawURL string, opts Options) (Session, error) {
	normalized, err := audit.NormalizeURL(rawURL)
	if err != nil {
		return Session{}, err
	}
	if userID == "" {
		return Session{}, fmt.Errorf("userId is required")
	}

	sessionID, err := o.ids.NewID()
	if err != nil {
		return Session{}, fmt.Errorf("mint session id: %w", err)
	}

	taskIDs := make(map[audit.AnalyzerType]string, 3)
	for i, analyzerType := range audit.AnalyzerTypes() {
		payload := o.payload(analyzerType, userID, normalized, opts)
		taskOpts := audit.TaskOptions{
			Priority: opts.Priority,
			Delay:    time.Duration(i) * o.cfg.Stagger,
		}
		if err := o.queues.Enqueue(ctx, analyzerType, sessionID, payload, taskOpts); err != nil {
			return Session{}, fmt.Errorf("enqueue %s: %w", analyzerType, err)
		}
		taskIDs[analyzerType] = audit.TaskID(analyzerType, sessionID)
	}

	metrics.ObserveSession()
	o.logger.Info("analysis session started",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.String("url", normalized),
	)

	return Session{
		SessionID:    sessionID,
		TaskIDs:      taskIDs,
		TrackingPath: fmt.Sprintf("/v1/analyses/%s/progress", sessionID),
	}, nil
}

// StartTask enqueues a single analyzer without fanning out the rest. The
// returned task ID follows the same deterministic shape as full sessions.
func (o *Orchestrator) StartTask(ctx context.Context, userID, rawURL string, analyzerType audit.AnalyzerType, opts Options) (string, error) {
	if !analyzerType.Valid() {
		return "", fmt.Errorf("unknown analyzer type %q", analyzerType)
	}
	normalized, err := audit.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("userId is required")
	}

	sessionID, err := o.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("mint session id: %w", err)
	}

	payload := o.payload(analyzerType, userID, normalized, opts)
	if err := o.queues.Enqueue(ctx, analyzerType, sessionID, payload, audit.TaskOptions{Priority: opts.Priority}); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", analyzerType, err)
	}

	o.logger.Info("single analysis task started",
		zap.String("session_id", sessionID),
		zap.String("analyzer", string(analyzerType)),
		zap.String("url", normalized),
	)
	return audit.TaskID(analyzerType, sessionID), nil
}

func (o *Orchestrator) payload(analyzerType audit.AnalyzerType, userID, url string, opts Options) audit.TaskPayload {
	return audit.TaskPayload{
		URL:         url,
		UserID:      userID,
		Timestamp:   o.clock.Now().UnixMilli(),
		Type:        analyzerType,
		IncludeImgs: opts.IncludeImages,
		CheckMobile: opts.CheckMobileFriendly,
	}
}
