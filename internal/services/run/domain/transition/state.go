package transition

import (
	"fmt"
	"sort"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

// State is the authoritative progress of one run.
type State struct {
	// Phase is the single active phase.
	Phase progress.Phase
	// WaveDead holds the roster members reported dead during the waves.
	WaveDead map[string]struct{}
	// Bosses holds the defeated bosses, independent of the phase.
	Bosses map[signal.Boss]struct{}
	// Recalls counts the recall requests served.
	Recalls int64
	// LastOverride is the target of the most recent operator override.
	LastOverride progress.Phase
	// Seq counts accepted decisions.
	Seq uint64
}

// NewState returns the state of a run that was just entered.
func NewState() State {
	return State{Phase: progress.JustStarted}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.WaveDead != nil {
		out.WaveDead = make(map[string]struct{}, len(s.WaveDead))
		for id := range s.WaveDead {
			out.WaveDead[id] = struct{}{}
		}
	}
	if s.Bosses != nil {
		out.Bosses = make(map[signal.Boss]struct{}, len(s.Bosses))
		for b := range s.Bosses {
			out.Bosses[b] = struct{}{}
		}
	}
	return out
}

// Defeated reports whether boss has been defeated.
func (s State) Defeated(boss signal.Boss) bool {
	_, ok := s.Bosses[boss]
	return ok
}

// DeadMembers lists the dead wave members in sorted order.
func (s State) DeadMembers() []string {
	out := make([]string, 0, len(s.WaveDead))
	for id := range s.WaveDead {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DefeatedBosses lists the defeated bosses in catalog order.
func (s State) DefeatedBosses() []signal.Boss {
	var out []signal.Boss
	for _, b := range signal.Bosses() {
		if s.Defeated(b) {
			out = append(out, b)
		}
	}
	return out
}

// Value answers a query key. Flags read as 0 or 1.
func (s State) Value(key signal.Key) (int64, error) {
	parsed, boss, err := signal.ParseKey(string(key))
	if err != nil {
		return 0, err
	}
	switch parsed {
	case signal.KeyProgress:
		return int64(s.Phase), nil
	case signal.KeyGMRecall:
		return s.Recalls, nil
	case signal.KeyGMOverride:
		return int64(s.LastOverride), nil
	}
	if boss != "" {
		if s.Defeated(boss) {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("query key %q is not supported", key)
}

func (s *State) markDead(id string) {
	if s.WaveDead == nil {
		s.WaveDead = make(map[string]struct{})
	}
	s.WaveDead[id] = struct{}{}
}

func (s *State) markDefeated(boss signal.Boss) {
	if s.Bosses == nil {
		s.Bosses = make(map[signal.Boss]struct{})
	}
	s.Bosses[boss] = struct{}{}
}
