// Package recovery persists failure reflections and drives bounded
// replanning when a plan halts.
package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RetryResult is the outcome of the retry a reflection was created for.
type RetryResult string

const (
	RetryPending RetryResult = "pending"
	RetrySuccess RetryResult = "success"
	RetryFailed  RetryResult = "failed"
)

// ReflectionEntry records one past failure and the recovery prompt it
// produced. Entries persist across process restarts.
type ReflectionEntry struct {
	ID            string            `json:"id"`
	TaskSignature string            `json:"task_signature"`
	FailedStep    string            `json:"failed_step"`
	FailureReason string            `json:"failure_reason"`
	Improvement   string            `json:"improvement"`
	RetryResult   RetryResult       `json:"retry_result"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Signature derives the normalized task signature for a step:
// whitespace collapsed, case preserved.
func Signature(step string) string {
	return strings.Join(strings.Fields(step), " ")
}

// ReflectionStore keeps the ordered reflection log in one flat JSON
// file, written via a temp file and an atomic rename.
type ReflectionStore struct {
	path string

	mu      sync.Mutex
	entries []*ReflectionEntry
	loaded  bool
}

// NewReflectionStore creates a store backed by the file at path.
func NewReflectionStore(path string) *ReflectionStore {
	return &ReflectionStore{path: path}
}

func (s *ReflectionStore) load() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read reflection log: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("parse reflection log: %w", err)
	}
	s.loaded = true
	return nil
}

func (s *ReflectionStore) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reflection log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create reflection directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write reflection temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace reflection log: %w", err)
	}
	return nil
}

// Append adds a new pending reflection and returns it.
func (s *ReflectionStore) Append(signature, failedStep, reason, improvement string, metadata map[string]string) (*ReflectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &ReflectionEntry{
		ID:            uuid.NewString(),
		TaskSignature: signature,
		FailedStep:    failedStep,
		FailureReason: reason,
		Improvement:   improvement,
		RetryResult:   RetryPending,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.entries = append(s.entries, entry)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return entry, nil
}

// Finalize sets the retry result of the entry with the given id. It is
// a no-op when the entry is missing or already finalized, so a task
// line is finalized exactly once.
func (s *ReflectionStore) Finalize(id string, result RetryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	for _, e := range s.entries {
		if e.ID == id {
			if e.RetryResult != RetryPending {
				return nil
			}
			e.RetryResult = result
			e.UpdatedAt = time.Now()
			return s.persist()
		}
	}
	return nil
}

// BySignature returns up to limit most recent reflections sharing the
// signature, newest first.
func (s *ReflectionStore) BySignature(signature string, limit int) ([]*ReflectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}

	var out []*ReflectionEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].TaskSignature == signature {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// All returns the full ordered log.
func (s *ReflectionStore) All() ([]*ReflectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	return append([]*ReflectionEntry(nil), s.entries...), nil
}
