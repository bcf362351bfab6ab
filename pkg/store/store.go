// Package store persists dream records as a single JSON snapshot, most
// recent first. Every mutation loads the full snapshot and rewrites it.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"dreamer/pkg/schema"
)

type Records struct {
	mu     sync.Mutex
	medium Medium
	now    func() time.Time
}

func New(medium Medium) *Records {
	return &Records{medium: medium, now: time.Now}
}

// NewRecord builds a record with a fresh id and the current time.
func (s *Records) NewRecord(dream string, analysis schema.Analysis) schema.DreamRecord {
	return schema.DreamRecord{
		ID:       ksuid.New().String(),
		Date:     s.now().UTC(),
		Dream:    dream,
		Analysis: analysis,
	}
}

// List returns every record, most recent first. An unreadable snapshot is
// logged and reads as empty.
func (s *Records) List() []schema.DreamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		log.Warn("could not load dream records", "err", err)
		return nil
	}
	return records
}

func (s *Records) Get(id string) (schema.DreamRecord, bool) {
	for _, r := range s.List() {
		if r.ID == id {
			return r, true
		}
	}
	return schema.DreamRecord{}, false
}

// Insert prepends rec and returns the new snapshot. Persistence failures
// are logged and the prior snapshot is returned.
func (s *Records) Insert(rec schema.DreamRecord) []schema.DreamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		// Writing over an unreadable snapshot would lose it.
		log.Error("dream record not saved", "id", rec.ID, "err", err)
		return nil
	}
	if rec.ID == "" {
		rec.ID = ksuid.New().String()
	}

	next := append([]schema.DreamRecord{rec}, records...)
	if err := s.save(next); err != nil {
		log.Error("dream record not saved", "id", rec.ID, "err", err)
		return records
	}
	log.Debug("dream record saved", "id", rec.ID, "count", len(next))
	return next
}

// Update merges patch into the record with the given id. An unknown id
// leaves the medium untouched.
func (s *Records) Update(id string, patch schema.Patch) []schema.DreamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		log.Error("dream record not updated", "id", id, "err", err)
		return nil
	}

	i := slices.IndexFunc(records, func(r schema.DreamRecord) bool { return r.ID == id })
	if i < 0 {
		log.Debug("update skipped, no such record", "id", id)
		return records
	}

	next := slices.Clone(records)
	patch.Apply(&next[i])
	if err := s.save(next); err != nil {
		log.Error("dream record not updated", "id", id, "err", err)
		return records
	}
	return next
}

func (s *Records) load() ([]schema.DreamRecord, error) {
	data, err := s.medium.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []schema.DreamRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}

func (s *Records) save(records []schema.DreamRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return s.medium.Save(data)
}
