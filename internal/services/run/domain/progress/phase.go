package progress

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase identifies one step of a dungeon run.
//
// The zero value is not a phase; runs start at JustStarted.
type Phase uint8

const (
	PhaseUnspecified Phase = iota
	// JustStarted: crate count not visible yet; waiting on the entrance guide.
	JustStarted
	// CratesInProgress: players are revealing the plagued crates.
	CratesInProgress
	// CratesDone: every crate revealed; the guide waits at the city entrance.
	CratesDone
	// UtherTalk: the key actor and Uther are talking in front of the city.
	UtherTalk
	// PurgePending: waiting for player input to start the purge.
	PurgePending
	// PurgeStarting: the key actor enters the city and meets Mal'Ganis.
	PurgeStarting
	// WavesInProgress: players are fighting the undead waves.
	WavesInProgress
	// WavesDone: the key actor walks to the town hall.
	WavesDone
	// TownHallPending: the key actor waits at the town hall for players.
	TownHallPending
	// TownHall: escorting the key actor through the town hall.
	TownHall
	// TownHallComplete: Epoch is defeated; waiting for the passage transition.
	TownHallComplete
	// GauntletTransition: the key actor leads players through the hidden passage.
	GauntletTransition
	// GauntletPending: waiting for player input to begin the gauntlet escort.
	GauntletPending
	// GauntletInProgress: escorting the key actor through the gauntlet.
	GauntletInProgress
	// GauntletComplete: the gauntlet is cleared; waiting to face Mal'Ganis.
	GauntletComplete
	// MalganisInProgress: the Mal'Ganis encounter is running.
	MalganisInProgress
	// Complete: the run is over.
	Complete
)

// Count is the number of real phases.
const Count = int(Complete)

var phaseLabels = [...]string{
	PhaseUnspecified:   "unspecified",
	JustStarted:        "just_started",
	CratesInProgress:   "crates_in_progress",
	CratesDone:         "crates_done",
	UtherTalk:          "uther_talk",
	PurgePending:       "purge_pending",
	PurgeStarting:      "purge_starting",
	WavesInProgress:    "waves_in_progress",
	WavesDone:          "waves_done",
	TownHallPending:    "town_hall_pending",
	TownHall:           "town_hall",
	TownHallComplete:   "town_hall_complete",
	GauntletTransition: "gauntlet_transition",
	GauntletPending:    "gauntlet_pending",
	GauntletInProgress: "gauntlet_in_progress",
	GauntletComplete:   "gauntlet_complete",
	MalganisInProgress: "malganis_in_progress",
	Complete:           "complete",
}

// Phases returns every real phase in narrative order.
func Phases() []Phase {
	out := make([]Phase, 0, Count)
	for p := JustStarted; p <= Complete; p++ {
		out = append(out, p)
	}
	return out
}

// Valid reports whether p is one of the real phases.
func (p Phase) Valid() bool {
	return p >= JustStarted && p <= Complete
}

// String returns the snake-case label of the phase.
func (p Phase) String() string {
	if int(p) < len(phaseLabels) {
		return phaseLabels[p]
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Next returns the phase that follows p on the happy path.
// It returns false for Complete and for invalid phases.
func (p Phase) Next() (Phase, bool) {
	if !p.Valid() || p == Complete {
		return PhaseUnspecified, false
	}
	return p + 1, true
}

// Before reports whether p comes strictly before other in narrative order.
func (p Phase) Before(other Phase) bool {
	return p < other
}

// ParsePhase parses a phase label.
//
// Accepted forms are the snake-case label ("town_hall"), its upper-case
// variant ("TOWN_HALL"), and the 1-based ordinal ("10").
func ParsePhase(value string) (Phase, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return PhaseUnspecified, fmt.Errorf("phase is required")
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		p := Phase(n)
		if n < 0 || n > 255 || !p.Valid() {
			return PhaseUnspecified, fmt.Errorf("phase %d is out of range", n)
		}
		return p, nil
	}
	lower := strings.ToLower(trimmed)
	for p := JustStarted; p <= Complete; p++ {
		if phaseLabels[p] == lower {
			return p, nil
		}
	}
	return PhaseUnspecified, fmt.Errorf("phase %q is not supported", value)
}
