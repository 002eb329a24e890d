package progress

import "testing"

func TestPhases_SeventeenInNarrativeOrder(t *testing.T) {
	phases := Phases()
	if len(phases) != 17 {
		t.Fatalf("phase count = %d, want 17", len(phases))
	}
	if phases[0] != JustStarted {
		t.Fatalf("first phase = %s, want %s", phases[0], JustStarted)
	}
	if phases[len(phases)-1] != Complete {
		t.Fatalf("last phase = %s, want %s", phases[len(phases)-1], Complete)
	}
	for i := 1; i < len(phases); i++ {
		next, ok := phases[i-1].Next()
		if !ok || next != phases[i] {
			t.Fatalf("%s.Next() = %s, %v; want %s", phases[i-1], next, ok, phases[i])
		}
	}
}

func TestPhaseNext_CompleteHasNoSuccessor(t *testing.T) {
	if _, ok := Complete.Next(); ok {
		t.Fatal("expected complete to have no successor")
	}
	if _, ok := PhaseUnspecified.Next(); ok {
		t.Fatal("expected unspecified phase to have no successor")
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want Phase
	}{
		{in: "town_hall", want: TownHall},
		{in: "  TOWN_HALL_PENDING ", want: TownHallPending},
		{in: "1", want: JustStarted},
		{in: "17", want: Complete},
	}
	for _, tc := range tests {
		got, err := ParsePhase(tc.in)
		if err != nil {
			t.Fatalf("ParsePhase(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePhase(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParsePhase_RejectsUnknownAndOutOfRange(t *testing.T) {
	for _, in := range []string{"", "0", "18", "-3", "all", "nowhere", "99999"} {
		if _, err := ParsePhase(in); err == nil {
			t.Fatalf("ParsePhase(%q) expected error", in)
		}
	}
}

func TestPhaseSet_Membership(t *testing.T) {
	set := SetOf(CratesDone, TownHall)
	if !set.Has(CratesDone) || !set.Has(TownHall) {
		t.Fatalf("set %s missing members", set)
	}
	if set.Has(UtherTalk) {
		t.Fatalf("set %s should not hold %s", set, UtherTalk)
	}
	if set.Has(PhaseUnspecified) {
		t.Fatal("set should never hold the unspecified phase")
	}
	for _, p := range Phases() {
		if !All.Has(p) {
			t.Fatalf("All missing %s", p)
		}
	}
	if All.String() != "all" {
		t.Fatalf("All.String() = %q, want all", All.String())
	}
}

func TestPhaseSet_RangeAndWithout(t *testing.T) {
	r := Range(GauntletPending, GauntletComplete)
	got := r.Phases()
	want := []Phase{GauntletPending, GauntletInProgress, GauntletComplete}
	if len(got) != len(want) {
		t.Fatalf("range phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range phases = %v, want %v", got, want)
		}
	}
	rest := r.Without(SetOf(GauntletInProgress))
	if rest.Has(GauntletInProgress) || !rest.Has(GauntletPending) {
		t.Fatalf("without = %s", rest)
	}
	if !None.Empty() || r.Empty() {
		t.Fatal("unexpected emptiness")
	}
}

func TestStableStateOf_IsIdempotentAndNeverAdvances(t *testing.T) {
	for _, p := range Phases() {
		stable := StableStateOf(p)
		if !stable.Valid() {
			t.Fatalf("StableStateOf(%s) = %s, want a real phase", p, stable)
		}
		if StableStateOf(stable) != stable {
			t.Fatalf("StableStateOf(StableStateOf(%s)) = %s, want %s", p, StableStateOf(stable), stable)
		}
		if p.Before(stable) {
			t.Fatalf("StableStateOf(%s) = %s moves forward", p, stable)
		}
	}
}

func TestStableStateOf_InProgressStepsFallBack(t *testing.T) {
	tests := map[Phase]Phase{
		UtherTalk:          CratesDone,
		PurgeStarting:      PurgePending,
		TownHall:           TownHallPending,
		GauntletTransition: TownHallComplete,
		GauntletInProgress: GauntletPending,
		MalganisInProgress: GauntletComplete,
		WavesInProgress:    WavesInProgress,
		Complete:           Complete,
	}
	for in, want := range tests {
		if got := StableStateOf(in); got != want {
			t.Fatalf("StableStateOf(%s) = %s, want %s", in, got, want)
		}
	}
	if got := StableStateOf(Phase(200)); got != JustStarted {
		t.Fatalf("StableStateOf(out of range) = %s, want %s", got, JustStarted)
	}
}

func TestStablePhases_AreSelfMapped(t *testing.T) {
	for _, p := range StablePhases().Phases() {
		if !p.IsStable() {
			t.Fatalf("%s listed as stable but maps to %s", p, StableStateOf(p))
		}
	}
	if StablePhases().Has(TownHall) {
		t.Fatal("town hall escort should not be a stable phase")
	}
}
