package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

func testFile() File {
	f := File{Name: "test"}
	for _, p := range progress.StablePhases().Phases() {
		f.Snapback = append(f.Snapback, SnapbackEntry{Phase: p.String(), X: float64(p), Y: 1, Z: 2})
	}
	f.Waves = []Wave{
		{Name: "one", Members: []WaveMember{{ID: "a"}, {ID: "b", Boss: "meathook"}}},
	}
	f.Groups = []GroupWindow{{Group: "undead_trash", From: "waves_in_progress", To: "waves_in_progress"}}
	return f
}

func TestDefault_IsValid(t *testing.T) {
	l, err := Default()
	if err != nil {
		t.Fatalf("default layout: %v", err)
	}
	if l.Name() != "culling_of_stratholme" {
		t.Fatalf("name = %q", l.Name())
	}
	if l.WaveSize() == 0 {
		t.Fatal("expected a wave roster")
	}
	bosses := map[signal.Boss]bool{}
	for _, m := range l.Roster() {
		if m.Boss != "" {
			bosses[m.Boss] = true
		}
	}
	if !bosses[signal.BossMeathook] || !bosses[signal.BossSalramm] {
		t.Fatalf("expected wave bosses in roster, got %v", bosses)
	}
}

func TestDefault_ResumePositionIsTotal(t *testing.T) {
	l, err := Default()
	if err != nil {
		t.Fatalf("default layout: %v", err)
	}
	for _, p := range progress.Phases() {
		if _, ok := l.PositionFor(progress.StableStateOf(p)); !ok {
			t.Fatalf("no position for stable phase of %s", p)
		}
		want, _ := l.PositionFor(progress.StableStateOf(p))
		if got := l.ResumePosition(p); got != want {
			t.Fatalf("ResumePosition(%s) = %s, want %s", p, got, want)
		}
	}
}

func TestDefault_GroupWindows(t *testing.T) {
	l, err := Default()
	if err != nil {
		t.Fatalf("default layout: %v", err)
	}
	tests := map[progress.Phase][]action.Group{
		progress.JustStarted:        {action.GroupResidents},
		progress.CratesInProgress:   {action.GroupResidents, action.GroupCrateHelpers},
		progress.WavesInProgress:    {action.GroupChromieMid, action.GroupUndeadTrash},
		progress.GauntletInProgress: {action.GroupChromieMid, action.GroupGauntletTrash},
	}
	for phase, want := range tests {
		got := l.GroupsActiveIn(phase)
		if len(got) != len(want) {
			t.Fatalf("GroupsActiveIn(%s) = %v, want %v", phase, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("GroupsActiveIn(%s) = %v, want %v", phase, got, want)
			}
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*File)
	}{
		{name: "missing name", mutate: func(f *File) { f.Name = "" }},
		{name: "missing stable snapback", mutate: func(f *File) { f.Snapback = f.Snapback[1:] }},
		{name: "duplicate snapback", mutate: func(f *File) { f.Snapback = append(f.Snapback, f.Snapback[0]) }},
		{name: "unknown snapback phase", mutate: func(f *File) { f.Snapback[0].Phase = "lobby" }},
		{name: "bad orientation", mutate: func(f *File) { f.Snapback[0].O = 7 }},
		{name: "empty waves", mutate: func(f *File) { f.Waves = nil }},
		{name: "empty wave", mutate: func(f *File) { f.Waves[0].Members = nil }},
		{name: "duplicate member", mutate: func(f *File) { f.Waves[0].Members[1].ID = "a" }},
		{name: "unknown boss", mutate: func(f *File) { f.Waves[0].Members[0].Boss = "ragnaros" }},
		{name: "unknown group", mutate: func(f *File) { f.Groups[0].Group = "murlocs" }},
		{name: "inverted window", mutate: func(f *File) { f.Groups[0].From, f.Groups[0].To = "complete", "just_started" }},
		{name: "duplicate group", mutate: func(f *File) { f.Groups = append(f.Groups, f.Groups[0]) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := testFile()
			tc.mutate(&f)
			_, err := New(f)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("error = %v, want %v", err, ErrInvalid)
			}
		})
	}
}

func TestNew_MemberLookup(t *testing.T) {
	l, err := New(testFile())
	if err != nil {
		t.Fatalf("new layout: %v", err)
	}
	m, ok := l.Member(" b ")
	if !ok {
		t.Fatal("expected member b")
	}
	if m.Boss != signal.BossMeathook || m.Wave != "one" {
		t.Fatalf("member = %+v", m)
	}
	if _, ok := l.Member("zzz"); ok {
		t.Fatal("unexpected member")
	}
	if got := l.SnapbackPhases(); len(got) != len(progress.StablePhases().Phases()) {
		t.Fatalf("snapback phases = %v", got)
	}
}

func TestLoad_TOML(t *testing.T) {
	content := `name = "toml"
groups = []

[[waves]]
name = "only"
members = [{ id = "x" }]
`
	for _, p := range progress.StablePhases().Phases() {
		content += "\n[[snapback]]\nphase = \"" + p.String() + "\"\nx = 1.0\ny = 2.0\nz = 3.0\no = 0.5\n"
	}
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write layout: %v", err)
	}
	l, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Name() != "toml" || l.WaveSize() != 1 {
		t.Fatalf("layout = %s with %d members", l.Name(), l.WaveSize())
	}
	pos, ok := l.PositionFor(progress.Complete)
	if !ok || pos.O != 0.5 {
		t.Fatalf("complete position = %v, %v", pos, ok)
	}
}
