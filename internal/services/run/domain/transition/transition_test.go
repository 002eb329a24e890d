package transition

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	l, err := layout.Default()
	if err != nil {
		t.Fatalf("default layout: %v", err)
	}
	return l
}

func sig(typ signal.Type, role signal.Role, payload string) signal.Signal {
	s := signal.Signal{Type: typ, Role: role}
	if payload != "" {
		s.PayloadJSON = []byte(payload)
	}
	return s
}

func deathOf(id string) signal.Signal {
	return sig(signal.TypeNotifyDeath, signal.RoleWaveMember, fmt.Sprintf(`{"member_id":%q}`, id))
}

// forwardSignal returns a signal that moves a run out of p on the happy path,
// except for the waves which need one death per roster member.
func forwardSignal(t *testing.T, p progress.Phase) signal.Signal {
	t.Helper()
	if p == progress.CratesInProgress {
		return sig(signal.TypeCrateRevealed, signal.RoleCrateHelper, `{"remaining":0}`)
	}
	typ, ok := signal.ForwardFrom(p)
	if !ok {
		t.Fatalf("no forward signal from %s", p)
	}
	def, _ := signal.Lookup(typ)
	return sig(typ, def.Roles[0], "")
}

// samplePayload returns a payload accepted by the catalog for typ.
func samplePayload(typ signal.Type) string {
	switch typ {
	case signal.TypeCrateRevealed:
		return `{"remaining":0}`
	case signal.TypeNotifyDeath:
		return `{"member_id":"w6-salramm"}`
	case signal.TypeBossDefeated:
		return `{"boss":"infinite_corruptor"}`
	case signal.TypeGMOverride:
		return `{"phase":"town_hall"}`
	}
	return ""
}

func stateAt(p progress.Phase) State {
	s := NewState()
	s.Phase = p
	return s
}

func groupsAfter(start []action.Group, effects []action.Action) map[action.Group]bool {
	present := map[action.Group]bool{}
	for _, g := range start {
		present[g] = true
	}
	for _, a := range effects {
		switch a.Kind {
		case action.KindSpawnGroup:
			present[a.Target.Group] = true
		case action.KindDespawnGroup:
			delete(present, a.Target.Group)
		}
	}
	return present
}

func groupSet(groups []action.Group) map[action.Group]bool {
	out := map[action.Group]bool{}
	for _, g := range groups {
		out[g] = true
	}
	return out
}

func kinds(effects []action.Action, kind action.Kind) []action.Action {
	var out []action.Action
	for _, a := range effects {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func withoutKinds(effects []action.Action, drop ...action.Kind) []action.Action {
	var out []action.Action
	for _, a := range effects {
		keep := true
		for _, k := range drop {
			if a.Kind == k {
				keep = false
			}
		}
		if keep {
			out = append(out, a)
		}
	}
	return out
}

func TestDecide_IsPure(t *testing.T) {
	l := testLayout(t)
	for _, p := range progress.Phases() {
		state := stateAt(p)
		state.WaveDead = map[string]struct{}{"w1-ghoul-1": {}}
		state.Bosses = map[signal.Boss]struct{}{signal.BossMeathook: {}}
		before := state.Clone()
		for _, def := range signal.Definitions() {
			s := sig(def.Type, def.Roles[0], samplePayload(def.Type))
			first := Decide(state, l, s)
			second := Decide(state, l, s)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("Decide(%s, %s) is not deterministic", p, def.Type)
			}
			if !reflect.DeepEqual(state, before) {
				t.Fatalf("Decide(%s, %s) mutated its input state", p, def.Type)
			}
		}
	}
}

func TestDecide_HappyPathVisitsEveryPhaseOnce(t *testing.T) {
	l := testLayout(t)
	state := NewState()
	visited := []progress.Phase{state.Phase}
	seen := map[progress.Phase]bool{state.Phase: true}

	for state.Phase != progress.Complete {
		var d Decision
		if state.Phase == progress.WavesInProgress {
			for _, m := range l.Roster() {
				d = Decide(state, l, deathOf(m.ID))
				if !d.Accepted {
					t.Fatalf("death of %s rejected: %+v", m.ID, d.Rejection)
				}
				state = d.State
			}
		} else {
			d = Decide(state, l, forwardSignal(t, state.Phase))
			if !d.Accepted {
				t.Fatalf("forward from %s rejected: %+v", state.Phase, d.Rejection)
			}
			state = d.State
		}
		if want, _ := d.From.Next(); d.To != want {
			t.Fatalf("transition %s -> %s, want %s", d.From, d.To, want)
		}
		if seen[state.Phase] {
			t.Fatalf("phase %s visited twice", state.Phase)
		}
		seen[state.Phase] = true
		visited = append(visited, state.Phase)
		if last := d.Effects[len(d.Effects)-1]; last != action.ProgressUpdate(state.Phase) {
			t.Fatalf("last effect = %s, want progress update", last)
		}
	}
	if len(visited) != progress.Count {
		t.Fatalf("visited %d phases, want %d", len(visited), progress.Count)
	}
	for _, b := range []signal.Boss{signal.BossMeathook, signal.BossSalramm, signal.BossEpoch, signal.BossMalganis} {
		if !state.Defeated(b) {
			t.Fatalf("boss %s not flagged after a full run", b)
		}
	}
}

func TestDecide_RejectsOutOfWindowSignals(t *testing.T) {
	l := testLayout(t)
	state := NewState()
	first := Decide(state, l, forwardSignal(t, progress.JustStarted))
	if !first.Accepted {
		t.Fatalf("crates.start rejected: %+v", first.Rejection)
	}
	dup := Decide(first.State, l, forwardSignal(t, progress.JustStarted))
	if dup.Accepted {
		t.Fatal("expected duplicate crates.start to be rejected")
	}
	if dup.Rejection.Code != RejectionCodeSignalOutOfWindow {
		t.Fatalf("rejection code = %s, want %s", dup.Rejection.Code, RejectionCodeSignalOutOfWindow)
	}
	if len(dup.Effects) != 0 {
		t.Fatalf("rejected decision dispatched %v", dup.Effects)
	}
	if !reflect.DeepEqual(dup.State, first.State) {
		t.Fatal("rejected decision changed state")
	}
}

func TestDecide_RejectsMalformedDirectCalls(t *testing.T) {
	l := testLayout(t)
	tests := []struct {
		name  string
		state State
		sig   signal.Signal
		code  string
	}{
		{name: "unknown type", state: NewState(), sig: sig("dragons.arrive", signal.RoleKeyActor, ""), code: RejectionCodeSignalUnsupported},
		{name: "wrong role", state: NewState(), sig: sig(signal.TypeCratesStart, signal.RoleBoss, ""), code: RejectionCodeSignalRoleForbidden},
		{name: "bad payload", state: stateAt(progress.CratesInProgress), sig: sig(signal.TypeCrateRevealed, signal.RoleCrateHelper, `{}`), code: RejectionCodeSignalPayloadInvalid},
		{name: "zero state", state: State{}, sig: sig(signal.TypeKeyActorDied, signal.RoleKeyActor, ""), code: RejectionCodeStateInvalid},
		{name: "unknown member", state: stateAt(progress.WavesInProgress), sig: deathOf("hogger"), code: RejectionCodeWaveMemberUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.state, l, tc.sig)
			if d.Accepted {
				t.Fatal("expected rejection")
			}
			if d.Rejection.Code != tc.code {
				t.Fatalf("rejection code = %s, want %s", d.Rejection.Code, tc.code)
			}
		})
	}
}

func TestDecide_CratesWaitForLastReveal(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.CratesInProgress)
	for _, remaining := range []int{4, 3, 1} {
		d := Decide(state, l, sig(signal.TypeCrateRevealed, signal.RoleCrateHelper, fmt.Sprintf(`{"remaining":%d}`, remaining)))
		if !d.Accepted || d.Transitioned() || len(d.Effects) != 0 {
			t.Fatalf("reveal with %d remaining = %+v", remaining, d)
		}
		state = d.State
	}
	d := Decide(state, l, sig(signal.TypeCrateRevealed, signal.RoleCrateHelper, `{"remaining":0}`))
	if d.To != progress.CratesDone {
		t.Fatalf("phase = %s, want %s", d.To, progress.CratesDone)
	}
	got := kinds(d.Effects, action.KindDespawnGroup)
	if len(got) != 1 || got[0].Target.Group != action.GroupCrateHelpers {
		t.Fatalf("despawns = %v, want crate helpers", got)
	}
	if got := kinds(d.Effects, action.KindSpawnGroup); len(got) != 1 || got[0].Target.Group != action.GroupChromieMid {
		t.Fatalf("spawns = %v, want chromie mid", got)
	}
}

func TestDecide_WaveAggregation(t *testing.T) {
	l := testLayout(t)
	roster := l.Roster()
	ids := make([]string, len(roster))
	for i, m := range roster {
		ids[i] = m.ID
	}
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	withDuplicates := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		withDuplicates = append(withDuplicates, id, id)
	}

	tests := map[string][]string{
		"roster order":    ids,
		"reverse order":   reversed,
		"duplicate death": withDuplicates,
		"unknown member":  append([]string{"hogger"}, ids...),
	}
	for name, order := range tests {
		t.Run(name, func(t *testing.T) {
			state := stateAt(progress.WavesInProgress)
			transitions := 0
			reported := map[string]bool{}
			for _, id := range order {
				d := Decide(state, l, deathOf(id))
				state = d.State
				if _, known := l.Member(id); known {
					reported[id] = true
				}
				if d.Transitioned() {
					transitions++
					if len(reported) != l.WaveSize() {
						t.Fatalf("waves ended after %d of %d members", len(reported), l.WaveSize())
					}
				}
			}
			if Remaining(state, l) != 0 {
				t.Fatalf("remaining = %d, want 0", Remaining(state, l))
			}
			if transitions != 1 {
				t.Fatalf("waves ended %d times, want 1", transitions)
			}
			if state.Phase != progress.WavesDone {
				t.Fatalf("phase = %s, want %s", state.Phase, progress.WavesDone)
			}
			if len(state.WaveDead) != l.WaveSize() {
				t.Fatalf("dead = %d, want %d", len(state.WaveDead), l.WaveSize())
			}
		})
	}
}

func TestDecide_BossFlags(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.WavesInProgress)

	d := Decide(state, l, deathOf("w3-meathook"))
	if !d.State.Defeated(signal.BossMeathook) {
		t.Fatal("meathook not flagged after its wave death")
	}
	state = d.State

	defeated := sig(signal.TypeBossDefeated, signal.RoleBoss, `{"boss":"infinite_corruptor"}`)
	d = Decide(state, l, defeated)
	if !d.Accepted || d.Transitioned() {
		t.Fatalf("boss defeated = %+v", d)
	}
	state = d.State
	if v, err := state.Value(signal.BossKey(signal.BossInfiniteCorruptor)); err != nil || v != 1 {
		t.Fatalf("corruptor flag = %d, %v", v, err)
	}
	if v, _ := state.Value(signal.BossKey(signal.BossEpoch)); v != 0 {
		t.Fatalf("epoch flag = %d, want 0", v)
	}

	d = Decide(state, l, defeated)
	if d.Accepted || d.Rejection.Code != RejectionCodeBossAlreadyDefeated {
		t.Fatalf("repeat boss defeated = %+v", d)
	}
}

func TestDecide_CompletionSendsCorruptorAway(t *testing.T) {
	l := testLayout(t)
	done := forwardSignal(t, progress.MalganisInProgress)

	d := Decide(stateAt(progress.MalganisInProgress), l, done)
	if got := kinds(d.Effects, action.KindCorruptorLeave); len(got) != 1 {
		t.Fatalf("corruptor leave effects = %v, want 1", got)
	}

	state := stateAt(progress.MalganisInProgress)
	state.Bosses = map[signal.Boss]struct{}{signal.BossInfiniteCorruptor: {}}
	d = Decide(state, l, done)
	if got := kinds(d.Effects, action.KindCorruptorLeave); len(got) != 0 {
		t.Fatalf("corruptor leave effects = %v, want none", got)
	}
	if !d.State.Defeated(signal.BossMalganis) {
		t.Fatal("malganis not flagged")
	}
}

func TestDecide_GauntletTransitionOpensPassage(t *testing.T) {
	l := testLayout(t)
	d := Decide(stateAt(progress.TownHallComplete), l, forwardSignal(t, progress.TownHallComplete))
	if got := kinds(d.Effects, action.KindOpenPassage); len(got) != 1 {
		t.Fatalf("open passage effects = %v", got)
	}
	if got := kinds(d.Effects, action.KindStartRPEvent); len(got) != 1 || got[0].Sequence != action.SequencePassage {
		t.Fatalf("rp effects = %v", got)
	}
}

func TestDecide_GMRecall(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.TownHall)
	d := Decide(state, l, sig(signal.TypeGMRecall, signal.RoleOperator, ""))
	if !d.Accepted || d.Transitioned() {
		t.Fatalf("recall = %+v", d)
	}
	if d.State.Recalls != 1 {
		t.Fatalf("recalls = %d, want 1", d.State.Recalls)
	}
	want := action.Recall(l.ResumePosition(progress.TownHall))
	if len(d.Effects) != 1 || !reflect.DeepEqual(d.Effects[0], want) {
		t.Fatalf("effects = %v, want %s", d.Effects, want)
	}
	if v, _ := d.State.Value(signal.KeyGMRecall); v != 1 {
		t.Fatalf("gm.recall = %d, want 1", v)
	}
}

func TestDecide_SkipToPurge(t *testing.T) {
	l := testLayout(t)
	skip := sig(signal.TypeSkipToPurge, signal.RoleEntranceGuide, "")
	d := Decide(NewState(), l, skip)
	if !d.Accepted || d.To != progress.PurgePending {
		t.Fatalf("skip = %+v", d)
	}
	if d.Overridden {
		t.Fatal("skip reported as an operator override")
	}
	if d.State.LastOverride != progress.PhaseUnspecified {
		t.Fatalf("skip recorded as operator override %s", d.State.LastOverride)
	}
	present := groupsAfter(l.GroupsActiveIn(progress.JustStarted), d.Effects)
	if !reflect.DeepEqual(present, groupSet(l.GroupsActiveIn(progress.PurgePending))) {
		t.Fatalf("groups after skip = %v", present)
	}
	if late := Decide(d.State, l, skip); late.Accepted {
		t.Fatal("expected skip after purge pending to be rejected")
	}
}

func TestRecover_FromEveryPhase(t *testing.T) {
	l := testLayout(t)
	for _, p := range progress.Phases() {
		d := Decide(stateAt(p), l, sig(signal.TypeKeyActorDied, signal.RoleKeyActor, ""))
		stable := progress.StableStateOf(p)
		if !d.Accepted || !d.Regressed {
			t.Fatalf("death during %s = %+v", p, d)
		}
		if d.To != stable {
			t.Fatalf("death during %s -> %s, want %s", p, d.To, stable)
		}
		snaps := kinds(d.Effects, action.KindSnapback)
		if len(snaps) != 1 || *snaps[0].Position != l.ResumePosition(p) {
			t.Fatalf("snapback during %s = %v", p, snaps)
		}
		present := groupsAfter(l.GroupsActiveIn(p), d.Effects)
		if !reflect.DeepEqual(present, groupSet(l.GroupsActiveIn(stable))) {
			t.Fatalf("groups after death during %s = %v", p, present)
		}

		again := Decide(d.State, l, sig(signal.TypeKeyActorDied, signal.RoleKeyActor, ""))
		if again.To != stable {
			t.Fatalf("second death moved %s -> %s", stable, again.To)
		}
		if n := len(kinds(again.Effects, action.KindSpawnGroup)) + len(kinds(again.Effects, action.KindDespawnGroup)); n != 0 {
			t.Fatalf("second death during %s dispatched %d group actions", stable, n)
		}
	}
}

func TestRecover_ThenResumeForward(t *testing.T) {
	l := testLayout(t)
	for _, p := range progress.Phases() {
		stable := progress.StableStateOf(p)
		if stable == p {
			continue
		}
		d := Decide(stateAt(p), l, sig(signal.TypeKeyActorDied, signal.RoleKeyActor, ""))
		resumed := Decide(d.State, l, forwardSignal(t, stable))
		want, _ := stable.Next()
		if !resumed.Accepted || resumed.To != want {
			t.Fatalf("resume from %s = %+v, want %s", stable, resumed, want)
		}
		if n := len(kinds(resumed.Effects, action.KindSnapback)); n != 0 {
			t.Fatalf("resume from %s repositioned the key actor", stable)
		}
	}
}

func TestRecover_KeepsWaveProgress(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.WavesInProgress)
	state = Decide(state, l, deathOf("w1-ghoul-1")).State
	d := Recover(state, l)
	if d.To != progress.WavesInProgress {
		t.Fatalf("phase = %s, want %s", d.To, progress.WavesInProgress)
	}
	if _, ok := d.State.WaveDead["w1-ghoul-1"]; !ok {
		t.Fatal("recovery forgot a wave death")
	}
}

func TestOverride_ParityWithOrganicEntry(t *testing.T) {
	l := testLayout(t)
	for _, target := range progress.Phases()[1:] {
		prev := target - 1
		organic := advance(l, prev, stateAt(prev))
		forced := Override(NewState(), l, target)
		if !forced.Accepted || !forced.Overridden || forced.To != target {
			t.Fatalf("override to %s = %+v", target, forced)
		}

		strip := []action.Kind{action.KindSpawnGroup, action.KindDespawnGroup, action.KindSnapback}
		if got, want := withoutKinds(forced.Effects, strip...), withoutKinds(organic.Effects, strip...); !reflect.DeepEqual(got, want) {
			t.Fatalf("override to %s effects = %v, want %v", target, got, want)
		}
		present := groupsAfter(l.GroupsActiveIn(progress.JustStarted), forced.Effects)
		if !reflect.DeepEqual(present, groupSet(l.GroupsActiveIn(target))) {
			t.Fatalf("groups after override to %s = %v", target, present)
		}
		snaps := kinds(forced.Effects, action.KindSnapback)
		if len(snaps) != 1 || *snaps[0].Position != l.ResumePosition(target) {
			t.Fatalf("override to %s snapback = %v", target, snaps)
		}
		if v, _ := forced.State.Value(signal.KeyGMOverride); v != int64(target) {
			t.Fatalf("gm.override = %d, want %d", v, target)
		}
	}
}

func TestOverride_ResetsWavesWhenJumpingBack(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.TownHall)
	state.WaveDead = map[string]struct{}{"w1-ghoul-1": {}}

	if d := Override(state, l, progress.WavesDone); len(d.State.WaveDead) != 1 {
		t.Fatal("override past the waves forgot wave deaths")
	}
	if d := Override(state, l, progress.WavesInProgress); len(d.State.WaveDead) != 0 {
		t.Fatal("override into the waves kept wave deaths")
	}
}

func TestOverride_RejectsInvalidTarget(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.TownHall)
	for _, target := range []progress.Phase{progress.PhaseUnspecified, progress.Complete + 1} {
		d := Override(state, l, target)
		if d.Accepted || d.Rejection.Code != RejectionCodeOverridePhaseInvalid {
			t.Fatalf("override to %d = %+v", target, d)
		}
		if !reflect.DeepEqual(d.State, state) {
			t.Fatal("rejected override changed state")
		}
	}
}

func TestOverride_SamePhaseReentersPhase(t *testing.T) {
	l := testLayout(t)
	for _, target := range progress.Phases()[1:] {
		prev := target - 1
		organic := advance(l, prev, stateAt(prev))
		forced := Override(stateAt(target), l, target)
		if !forced.Accepted || !forced.Overridden || forced.To != target {
			t.Fatalf("override %s into itself = %+v", target, forced)
		}

		strip := []action.Kind{action.KindSpawnGroup, action.KindDespawnGroup, action.KindSnapback}
		if got, want := withoutKinds(forced.Effects, strip...), withoutKinds(organic.Effects, strip...); !reflect.DeepEqual(got, want) {
			t.Fatalf("override %s into itself effects = %v, want %v", target, got, want)
		}
		active := l.GroupsActiveIn(target)
		if got := kinds(forced.Effects, action.KindDespawnGroup); len(got) != len(active) {
			t.Fatalf("override %s into itself despawned %v, want %v", target, got, active)
		}
		if got := kinds(forced.Effects, action.KindSpawnGroup); len(got) != len(active) {
			t.Fatalf("override %s into itself spawned %v, want %v", target, got, active)
		}
		present := groupsAfter(active, forced.Effects)
		if !reflect.DeepEqual(present, groupSet(active)) {
			t.Fatalf("groups after override %s into itself = %v", target, present)
		}
	}
}

func TestOverride_RestartingWavesRespawnsTrash(t *testing.T) {
	l := testLayout(t)
	state := stateAt(progress.WavesInProgress)
	state = Decide(state, l, deathOf("w1-ghoul-1")).State
	state = Decide(state, l, deathOf("w1-ghoul-2")).State
	if len(state.WaveDead) != 2 {
		t.Fatalf("wave deaths = %d, want 2", len(state.WaveDead))
	}

	d := Override(state, l, progress.WavesInProgress)
	if len(d.State.WaveDead) != 0 {
		t.Fatalf("wave deaths after restart = %d, want 0", len(d.State.WaveDead))
	}
	trash := action.Spawn(action.GroupUndeadTrash)
	despawned, respawned := -1, -1
	for n, a := range d.Effects {
		switch {
		case reflect.DeepEqual(a, action.Despawn(action.GroupUndeadTrash)):
			despawned = n
		case reflect.DeepEqual(a, trash):
			respawned = n
		}
	}
	if despawned < 0 || respawned < despawned {
		t.Fatalf("effects = %v, want undead trash despawned then spawned", d.Effects)
	}

	for _, m := range l.Roster() {
		if Remaining(d.State, l) == 0 {
			t.Fatal("waves finished before every respawned member died")
		}
		d = Decide(d.State, l, deathOf(m.ID))
	}
	if d.To != progress.WavesDone {
		t.Fatalf("phase after full roster = %s, want %s", d.To, progress.WavesDone)
	}
}

func TestStateValue(t *testing.T) {
	state := stateAt(progress.GauntletPending)
	v, err := state.Value(signal.KeyProgress)
	if err != nil || v != int64(progress.GauntletPending) {
		t.Fatalf("progress = %d, %v", v, err)
	}
	if _, err := state.Value("phase"); err == nil {
		t.Fatal("expected unknown key error")
	}
}
