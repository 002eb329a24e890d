package progress

// stableStates maps every phase to the phase a run resumes from when the
// key actor dies during it. Stable phases map to themselves.
var stableStates = [...]Phase{
	PhaseUnspecified:   JustStarted,
	JustStarted:        JustStarted,
	CratesInProgress:   CratesInProgress,
	CratesDone:         CratesDone,
	UtherTalk:          CratesDone,
	PurgePending:       PurgePending,
	PurgeStarting:      PurgePending,
	WavesInProgress:    WavesInProgress,
	WavesDone:          WavesDone,
	TownHallPending:    TownHallPending,
	TownHall:           TownHallPending,
	TownHallComplete:   TownHallComplete,
	GauntletTransition: TownHallComplete,
	GauntletPending:    GauntletPending,
	GauntletInProgress: GauntletPending,
	GauntletComplete:   GauntletComplete,
	MalganisInProgress: GauntletComplete,
	Complete:           Complete,
}

// StableStateOf returns the phase a run should regress to when the key actor
// dies during p. Unknown values regress to JustStarted.
func StableStateOf(p Phase) Phase {
	if int(p) >= len(stableStates) {
		return JustStarted
	}
	return stableStates[p]
}

// IsStable reports whether p is its own stable phase.
func (p Phase) IsStable() bool {
	return p.Valid() && StableStateOf(p) == p
}

// StablePhases returns the set of phases a run may resume from.
func StablePhases() PhaseSet {
	var s PhaseSet
	for _, p := range Phases() {
		s |= bit(StableStateOf(p))
	}
	return s
}
