// Package memory provides an in-memory record store for development/testing.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/audithq/site-auditor/internal/audit"
)

// RecordStore keeps merged analysis records in a map. The single mutex makes
// the existence check and the partial merge one indivisible operation, the
// same guarantee the Postgres upsert gives.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]audit.Record
	clock   audit.Clock
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore(clock audit.Clock) *RecordStore {
	return &RecordStore{
		records: make(map[string]audit.Record),
		clock:   clock,
	}
}

func key(userID, url string) string {
	return userID + "\x00" + url
}

// UpsertResult inserts or merges one analyzer's output into the (userID, url)
// record, leaving sibling analyzer fields untouched.
func (s *RecordStore) UpsertResult(
	_ context.Context,
	userID, url string,
	typ audit.AnalyzerType,
	title string,
	result json.RawMessage,
) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown analyzer type %q", typ)
	}
	cp := make(json.RawMessage, len(result))
	copy(cp, result)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec, ok := s.records[key(userID, url)]
	if !ok {
		rec = audit.Record{
			UserID:    userID,
			URL:       url,
			CreatedAt: now,
		}
	}
	rec.Title = title
	rec.UpdatedAt = now
	switch typ {
	case audit.AnalyzerStructural:
		rec.Structural = cp
	case audit.AnalyzerContent:
		rec.Content = cp
	case audit.AnalyzerTechnical:
		rec.Technical = cp
	}
	s.records[key(userID, url)] = rec
	return nil
}

// Get returns the merged record or audit.ErrNotFound.
func (s *RecordStore) Get(_ context.Context, userID, url string) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(userID, url)]
	if !ok {
		return audit.Record{}, audit.ErrNotFound
	}
	return rec, nil
}

func (s *RecordStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}
