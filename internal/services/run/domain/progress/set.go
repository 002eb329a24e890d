package progress

import "strings"

// PhaseSet is a bitmask of phases used for membership queries.
type PhaseSet uint32

// All matches every phase. It is a query wildcard, never a run state.
const All PhaseSet = 1<<Count - 1

// None matches no phase.
const None PhaseSet = 0

func bit(p Phase) PhaseSet {
	if !p.Valid() {
		return None
	}
	return 1 << (p - 1)
}

// SetOf builds a set holding the given phases. Invalid phases are ignored.
func SetOf(phases ...Phase) PhaseSet {
	var s PhaseSet
	for _, p := range phases {
		s |= bit(p)
	}
	return s
}

// Range builds the set of phases from first through last inclusive.
func Range(first, last Phase) PhaseSet {
	var s PhaseSet
	for p := first; p <= last && p.Valid(); p++ {
		s |= bit(p)
	}
	return s
}

// Has reports whether p is in the set.
func (s PhaseSet) Has(p Phase) bool {
	b := bit(p)
	return b != None && s&b != 0
}

// Union returns the phases in either set.
func (s PhaseSet) Union(other PhaseSet) PhaseSet {
	return s | other
}

// Without returns the phases of s that are not in other.
func (s PhaseSet) Without(other PhaseSet) PhaseSet {
	return s &^ other
}

// Empty reports whether the set holds no phase.
func (s PhaseSet) Empty() bool {
	return s&All == 0
}

// Phases lists the members of the set in narrative order.
func (s PhaseSet) Phases() []Phase {
	var out []Phase
	for p := JustStarted; p <= Complete; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PhaseSet) String() string {
	if s&All == All {
		return "all"
	}
	phases := s.Phases()
	if len(phases) == 0 {
		return "none"
	}
	labels := make([]string, len(phases))
	for i, p := range phases {
		labels[i] = p.String()
	}
	return strings.Join(labels, "|")
}
