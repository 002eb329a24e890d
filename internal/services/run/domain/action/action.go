// Package action defines the commands a run sends to its actors.
//
// Actions are typed values tagged by Kind. They travel to collaborators
// through a dispatcher and never share a numeric namespace with an actor's
// own vocabulary.
package action

import (
	"fmt"
	"strings"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// Kind tags the variant of an Action.
type Kind uint8

const (
	KindUnspecified Kind = iota
	// KindProgressUpdate tells actors to refresh their view of the run phase.
	KindProgressUpdate
	// KindCorruptorLeave tells the timed bonus boss to leave the instance.
	KindCorruptorLeave
	// KindStartRPEvent starts a scripted sequence on the key actor.
	KindStartRPEvent
	// KindSpawnGroup asks the group manager to spawn a named group.
	KindSpawnGroup
	// KindDespawnGroup asks the group manager to despawn a named group.
	KindDespawnGroup
	// KindSnapback places the key actor at a resume position.
	KindSnapback
	// KindRecall teleports the players to the key actor.
	KindRecall
	// KindOpenPassage opens the hidden passage behind the town hall.
	KindOpenPassage
)

var kindLabels = map[Kind]string{
	KindUnspecified:    "unspecified",
	KindProgressUpdate: "progress_update",
	KindCorruptorLeave: "corruptor_leave",
	KindStartRPEvent:   "start_rp_event",
	KindSpawnGroup:     "spawn_group",
	KindDespawnGroup:   "despawn_group",
	KindSnapback:       "snapback",
	KindRecall:         "recall",
	KindOpenPassage:    "open_passage",
}

func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sequence identifies a scripted roleplay sequence.
type Sequence string

const (
	// SequenceUther is the talk with Uther in front of the city.
	SequenceUther Sequence = "uther"
	// SequencePurge is the meeting with Mal'Ganis at the city entrance.
	SequencePurge Sequence = "purge"
	// SequenceTownHall is the town hall escort.
	SequenceTownHall Sequence = "town_hall"
	// SequencePassage is the walk through the hidden passage.
	SequencePassage Sequence = "passage"
	// SequenceGauntlet is the gauntlet escort.
	SequenceGauntlet Sequence = "gauntlet"
	// SequenceMalganis is the final encounter.
	SequenceMalganis Sequence = "malganis"
)

// Actor names an individual collaborator that receives actions.
type Actor string

const (
	// ActorAll broadcasts to every actor bound to the run.
	ActorAll Actor = "all"
	// ActorKeyActor is the escorted key actor.
	ActorKeyActor Actor = "key_actor"
	// ActorCorruptor is the timed bonus boss.
	ActorCorruptor Actor = "infinite_corruptor"
	// ActorPassage is the hidden passage game object.
	ActorPassage Actor = "hidden_passage"
	// ActorPlayers is the set of players in the instance.
	ActorPlayers Actor = "players"
)

// Group names an actor group spawned and despawned as a unit.
type Group string

const (
	GroupResidents     Group = "residents"
	GroupCrateHelpers  Group = "crate_helpers"
	GroupChromieMid    Group = "chromie_mid"
	GroupUndeadTrash   Group = "undead_trash"
	GroupGauntletTrash Group = "gauntlet_trash"
)

// Groups lists every known group.
func Groups() []Group {
	return []Group{GroupResidents, GroupCrateHelpers, GroupChromieMid, GroupUndeadTrash, GroupGauntletTrash}
}

// ParseGroup validates a group name.
func ParseGroup(value string) (Group, error) {
	trimmed := Group(strings.ToLower(strings.TrimSpace(value)))
	for _, g := range Groups() {
		if g == trimmed {
			return g, nil
		}
	}
	return "", fmt.Errorf("group %q is not supported", value)
}

// Position is a world position with facing.
type Position struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
	Z float64 `json:"z" yaml:"z" toml:"z"`
	O float64 `json:"o" yaml:"o" toml:"o"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", p.X, p.Y, p.Z, p.O)
}

// Target addresses either one actor or one group.
type Target struct {
	Actor Actor
	Group Group
}

func (t Target) String() string {
	if t.Group != "" {
		return "group:" + string(t.Group)
	}
	return "actor:" + string(t.Actor)
}

// Action is one outbound command.
type Action struct {
	Kind     Kind
	Target   Target
	Sequence Sequence
	Phase    progress.Phase
	Position *Position
}

func (a Action) String() string {
	var b strings.Builder
	b.WriteString(a.Kind.String())
	b.WriteString(" -> ")
	b.WriteString(a.Target.String())
	if a.Sequence != "" {
		b.WriteString(" seq=")
		b.WriteString(string(a.Sequence))
	}
	if a.Phase.Valid() {
		b.WriteString(" phase=")
		b.WriteString(a.Phase.String())
	}
	if a.Position != nil {
		b.WriteString(" at=")
		b.WriteString(a.Position.String())
	}
	return b.String()
}

// ProgressUpdate broadcasts the new phase to every actor.
func ProgressUpdate(phase progress.Phase) Action {
	return Action{Kind: KindProgressUpdate, Target: Target{Actor: ActorAll}, Phase: phase}
}

// StartRPEvent starts a scripted sequence on the key actor.
func StartRPEvent(seq Sequence) Action {
	return Action{Kind: KindStartRPEvent, Target: Target{Actor: ActorKeyActor}, Sequence: seq}
}

// Spawn asks for a group to be spawned.
func Spawn(g Group) Action {
	return Action{Kind: KindSpawnGroup, Target: Target{Group: g}}
}

// Despawn asks for a group to be despawned.
func Despawn(g Group) Action {
	return Action{Kind: KindDespawnGroup, Target: Target{Group: g}}
}

// Snapback places the key actor at pos for phase.
func Snapback(phase progress.Phase, pos Position) Action {
	return Action{Kind: KindSnapback, Target: Target{Actor: ActorKeyActor}, Phase: phase, Position: &pos}
}

// Recall teleports the players to pos.
func Recall(pos Position) Action {
	return Action{Kind: KindRecall, Target: Target{Actor: ActorPlayers}, Position: &pos}
}

// OpenPassage opens the hidden passage.
func OpenPassage() Action {
	return Action{Kind: KindOpenPassage, Target: Target{Actor: ActorPassage}}
}

// CorruptorLeave sends the bonus boss away.
func CorruptorLeave() Action {
	return Action{Kind: KindCorruptorLeave, Target: Target{Actor: ActorCorruptor}}
}
