package dispatch

import (
	"context"
	"sync"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
)

// GroupTracker is the downstream group manager of record. Spawning a present
// group or despawning an absent one is a no-op.
type GroupTracker struct {
	mu      sync.Mutex
	present map[string]map[action.Group]struct{}
	applied uint64
	ignored uint64
}

// NewGroupTracker returns an empty tracker.
func NewGroupTracker() *GroupTracker {
	return &GroupTracker{present: make(map[string]map[action.Group]struct{})}
}

// Dispatch applies spawn and despawn actions and ignores everything else.
func (t *GroupTracker) Dispatch(_ context.Context, env Envelope) {
	switch env.Action.Kind {
	case action.KindSpawnGroup:
		t.Spawn(env.RunID, env.Action.Target.Group)
	case action.KindDespawnGroup:
		t.Despawn(env.RunID, env.Action.Target.Group)
	}
}

// Spawn marks group present for runID. It reports whether anything changed.
func (t *GroupTracker) Spawn(runID string, group action.Group) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	groups, ok := t.present[runID]
	if !ok {
		groups = make(map[action.Group]struct{})
		t.present[runID] = groups
	}
	if _, exists := groups[group]; exists {
		t.ignored++
		return false
	}
	groups[group] = struct{}{}
	t.applied++
	return true
}

// Despawn marks group absent for runID. It reports whether anything changed.
func (t *GroupTracker) Despawn(runID string, group action.Group) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	groups := t.present[runID]
	if _, exists := groups[group]; !exists {
		t.ignored++
		return false
	}
	delete(groups, group)
	t.applied++
	return true
}

// Seed replaces the groups present for runID, used when a run is restored.
func (t *GroupTracker) Seed(runID string, groups []action.Group) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[action.Group]struct{}, len(groups))
	for _, g := range groups {
		set[g] = struct{}{}
	}
	t.present[runID] = set
}

// Present lists the groups present for runID in catalog order.
func (t *GroupTracker) Present(runID string) []action.Group {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []action.Group
	for _, g := range action.Groups() {
		if _, ok := t.present[runID][g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Forget drops everything known about runID.
func (t *GroupTracker) Forget(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.present, runID)
}

// Stats returns how many group actions changed state and how many were
// redundant.
func (t *GroupTracker) Stats() (applied, ignored uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied, t.ignored
}
