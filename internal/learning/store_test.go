package learning

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

func newTestStore(t *testing.T) *DecisionStore {
	t.Helper()
	return NewDecisionStore(filepath.Join(t.TempDir(), "decisions.jsonl"))
}

func TestDecisionStore_AppendAndAllPreserveOrder(t *testing.T) {
	s := newTestStore(t)
	d1 := model.FixDecision{ID: "1", FixID: "fix-1", Decision: model.DecisionApproved, Timestamp: time.Unix(100, 0)}
	d2 := model.FixDecision{ID: "2", FixID: "fix-2", Decision: model.DecisionRejected, Timestamp: time.Unix(200, 0)}

	require.NoError(t, s.Append(d1))
	require.NoError(t, s.Append(d2))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "fix-1", all[0].FixID)
	require.Equal(t, "fix-2", all[1].FixID)
}

func TestDecisionStore_LoadsExistingFileOnFirstRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	s1 := NewDecisionStore(path)
	require.NoError(t, s1.Append(model.FixDecision{ID: "1", FixID: "fix-1", Decision: model.DecisionApproved, Timestamp: time.Unix(1, 0)}))

	s2 := NewDecisionStore(path)
	all, err := s2.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "fix-1", all[0].FixID)
}

func TestDecisionStore_FilterByRepositoryAndSince(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(model.FixDecision{FixID: "a", Repository: "repo-a", FixType: model.FixSimplify, Timestamp: time.Unix(100, 0)}))
	require.NoError(t, s.Append(model.FixDecision{FixID: "b", Repository: "repo-b", FixType: model.FixSimplify, Timestamp: time.Unix(200, 0)}))
	require.NoError(t, s.Append(model.FixDecision{FixID: "c", Repository: "repo-a", FixType: model.FixRefactor, Timestamp: time.Unix(300, 0)}))

	byRepo, err := s.Filter("", "repo-a", time.Time{})
	require.NoError(t, err)
	require.Len(t, byRepo, 2)

	byType, err := s.Filter(model.FixSimplify, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, byType, 2)

	since, err := s.Filter("", "", time.Unix(150, 0))
	require.NoError(t, err)
	require.Len(t, since, 2)
}

func TestDecisionStore_MissingFileStartsEmpty(t *testing.T) {
	s := NewDecisionStore(filepath.Join(t.TempDir(), "nonexistent.jsonl"))
	all, err := s.All()
	require.NoError(t, err)
	require.Empty(t, all)
}
