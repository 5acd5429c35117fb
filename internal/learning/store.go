// Package learning implements the adaptive-feedback loop: an append-only
// DecisionStore of human fix decisions, and AdaptiveConfidence, which reads
// aggregates from it to downgrade/upgrade proposal confidence, emit prompt
// adjustments, and suppress auto-approval for fix types with poor track
// records. No teacher file owns this concern directly; the single-writer
// mutex + load-the-whole-file-once discipline is grounded on
// internal/evolve.evolve.go's in-memory population bookkeeping, and the
// shape (DecisionStore, AdaptiveConfidence, the named thresholds) follows
// spec.md §4.7, since
// original_source/repotoire/autofix/learning/__init__.py names the public
// surface without shipping its filtered-out implementation.
package learning

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// DecisionStore is an append-only JSONL log of FixDecisions. Writes are
// serialized through a single mutex; reads are served from an in-memory
// cache that is the source of truth once populated — a concurrent writer
// updates both the file and the cache, but nothing re-reads the file to
// pick up changes made by another process.
type DecisionStore struct {
	mu     sync.Mutex
	path   string
	loaded bool
	cache  []model.FixDecision
}

// NewDecisionStore opens (without yet reading) the JSONL log at path.
func NewDecisionStore(path string) *DecisionStore {
	return &DecisionStore{path: path}
}

// Append writes one decision as a JSON line and appends it to the in-memory
// cache, loading the existing file first if this is the first call.
func (s *DecisionStore) Append(d model.FixDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open decision store %q: %w", s.path, err)
	}
	defer f.Close()

	line, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	s.cache = append(s.cache, d)
	return nil
}

// All returns every decision loaded so far, oldest first.
func (s *DecisionStore) All() ([]model.FixDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	out := make([]model.FixDecision, len(s.cache))
	copy(out, s.cache)
	return out, nil
}

// Filter returns decisions matching fixType (if non-empty), repository (if
// non-empty), and at or after since (if non-zero) — a linear scan over the
// in-memory cache, per spec.md.
func (s *DecisionStore) Filter(fixType model.FixType, repository string, since time.Time) ([]model.FixDecision, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	out := make([]model.FixDecision, 0, len(all))
	for _, d := range all {
		if fixType != "" && d.FixType != fixType {
			continue
		}
		if repository != "" && d.Repository != repository {
			continue
		}
		if !since.IsZero() && d.Timestamp.Before(since) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *DecisionStore) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("open decision store %q: %w", s.path, err)
	}
	defer f.Close()

	var decisions []model.FixDecision
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d model.FixDecision
		if err := json.Unmarshal(line, &d); err != nil {
			return fmt.Errorf("decode decision line: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read decision store %q: %w", s.path, err)
	}
	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Timestamp.Before(decisions[j].Timestamp)
	})
	s.cache = decisions
	s.loaded = true
	return nil
}
