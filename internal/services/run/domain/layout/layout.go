// Package layout holds the static description of a dungeon: where the key
// actor resumes after each stable phase, which creatures make up the wave
// roster, and in which phases each actor group is present.
//
// A Layout is validated once at construction and is read-only afterwards, so
// a single value can be shared by every running instance.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/louisbranch/dungeonrun/internal/platform/config"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

// ErrInvalid indicates a layout that failed validation.
var ErrInvalid = errors.New("layout is invalid")

// Member is one creature of the wave roster.
type Member struct {
	ID   string
	Wave string
	// Boss is set when the member is a boss encounter.
	Boss signal.Boss
}

// Layout is a validated dungeon description.
type Layout struct {
	name     string
	snapback map[progress.Phase]action.Position
	roster   []Member
	members  map[string]Member
	groups   map[action.Group]progress.PhaseSet
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New validates f and builds a Layout from it.
func New(f File) (*Layout, error) {
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	l := &Layout{
		name:     strings.TrimSpace(f.Name),
		snapback: make(map[progress.Phase]action.Position, len(f.Snapback)),
		members:  make(map[string]Member),
		groups:   make(map[action.Group]progress.PhaseSet, len(f.Groups)),
	}

	for _, entry := range f.Snapback {
		phase, err := progress.ParsePhase(entry.Phase)
		if err != nil {
			return nil, fmt.Errorf("%w: snapback: %v", ErrInvalid, err)
		}
		if _, dup := l.snapback[phase]; dup {
			return nil, fmt.Errorf("%w: snapback for %s declared twice", ErrInvalid, phase)
		}
		l.snapback[phase] = action.Position{X: entry.X, Y: entry.Y, Z: entry.Z, O: entry.O}
	}
	for _, phase := range progress.StablePhases().Phases() {
		if _, ok := l.snapback[phase]; !ok {
			return nil, fmt.Errorf("%w: no snapback position for stable phase %s", ErrInvalid, phase)
		}
	}

	for _, wave := range f.Waves {
		for _, m := range wave.Members {
			id := strings.TrimSpace(m.ID)
			if _, dup := l.members[id]; dup {
				return nil, fmt.Errorf("%w: wave member %q declared twice", ErrInvalid, id)
			}
			member := Member{ID: id, Wave: strings.TrimSpace(wave.Name)}
			if strings.TrimSpace(m.Boss) != "" {
				boss, err := signal.ParseBoss(m.Boss)
				if err != nil {
					return nil, fmt.Errorf("%w: wave member %q: %v", ErrInvalid, id, err)
				}
				member.Boss = boss
			}
			l.members[id] = member
			l.roster = append(l.roster, member)
		}
	}

	for _, window := range f.Groups {
		group, err := action.ParseGroup(window.Group)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if _, dup := l.groups[group]; dup {
			return nil, fmt.Errorf("%w: group %s declared twice", ErrInvalid, group)
		}
		from, err := progress.ParsePhase(window.From)
		if err != nil {
			return nil, fmt.Errorf("%w: group %s: %v", ErrInvalid, group, err)
		}
		to, err := progress.ParsePhase(window.To)
		if err != nil {
			return nil, fmt.Errorf("%w: group %s: %v", ErrInvalid, group, err)
		}
		if to.Before(from) {
			return nil, fmt.Errorf("%w: group %s window ends before it starts", ErrInvalid, group)
		}
		l.groups[group] = progress.Range(from, to)
	}
	return l, nil
}

// Load reads a YAML or TOML layout file.
func Load(path string) (*Layout, error) {
	var f File
	if err := config.LoadFile(path, &f); err != nil {
		return nil, err
	}
	return New(f)
}

// Name returns the dungeon name.
func (l *Layout) Name() string {
	return l.name
}

// PositionFor returns the key actor resume position for phase.
func (l *Layout) PositionFor(phase progress.Phase) (action.Position, bool) {
	pos, ok := l.snapback[phase]
	return pos, ok
}

// ResumePosition returns the position of the stable phase behind phase.
// It is defined for every phase of a validated layout.
func (l *Layout) ResumePosition(phase progress.Phase) action.Position {
	return l.snapback[progress.StableStateOf(phase)]
}

// Member looks up a wave roster member.
func (l *Layout) Member(id string) (Member, bool) {
	m, ok := l.members[strings.TrimSpace(id)]
	return m, ok
}

// Roster returns the wave roster in declaration order.
func (l *Layout) Roster() []Member {
	return append([]Member(nil), l.roster...)
}

// WaveSize is the number of wave members that must die to end the waves.
func (l *Layout) WaveSize() int {
	return len(l.roster)
}

// GroupWindow returns the phases during which group is present.
func (l *Layout) GroupWindow(group action.Group) progress.PhaseSet {
	return l.groups[group]
}

// GroupsActiveIn lists the groups present during phase, in catalog order.
func (l *Layout) GroupsActiveIn(phase progress.Phase) []action.Group {
	var out []action.Group
	for _, g := range action.Groups() {
		if l.groups[g].Has(phase) {
			out = append(out, g)
		}
	}
	return out
}

// SnapbackPhases lists the phases with a resume position, in narrative order.
func (l *Layout) SnapbackPhases() []progress.Phase {
	out := make([]progress.Phase, 0, len(l.snapback))
	for p := range l.snapback {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
