// Package signal defines the closed catalog of notifications actors send to a
// running dungeon instance.
//
// Every signal type declares which actor roles may emit it and the phase
// window where it can matter. The catalog is checked at the boundary so the
// transition table only ever sees well-formed signals.
package signal

import (
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// Type identifies an inbound signal.
type Type string

const (
	TypeGMRecall        Type = "gm.recall"
	TypeGMOverride      Type = "gm.override"
	TypeKeyActorDied    Type = "key_actor.died"
	TypeCratesStart     Type = "crates.start"
	TypeCrateRevealed   Type = "crates.revealed"
	TypeUtherStart      Type = "uther.start"
	TypeUtherFinished   Type = "uther.finished"
	TypeSkipToPurge     Type = "purge.skip"
	TypeStartPurge      Type = "purge.start"
	TypeStartWaves      Type = "waves.start"
	TypeNotifyDeath     Type = "waves.member_died"
	TypeReachTownHall   Type = "town_hall.reached"
	TypeStartTownHall   Type = "town_hall.start"
	TypeTownHallDone    Type = "town_hall.done"
	TypeToGauntlet      Type = "gauntlet.transition"
	TypeGauntletReached Type = "gauntlet.reached"
	TypeStartGauntlet   Type = "gauntlet.start"
	TypeGauntletDone    Type = "gauntlet.done"
	TypeStartMalganis   Type = "malganis.start"
	TypeMalganisDone    Type = "malganis.done"
	TypeBossDefeated    Type = "boss.defeated"
)

// Role identifies the kind of actor emitting a signal.
type Role string

const (
	RoleOperator      Role = "operator"
	RoleEntranceGuide Role = "entrance_guide"
	RoleMidGuide      Role = "mid_guide"
	RoleCrateHelper   Role = "crate_helper"
	RoleKeyActor      Role = "key_actor"
	RoleWaveMember    Role = "wave_member"
	RoleBoss          Role = "boss"
	RoleTrigger       Role = "trigger"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{
		RoleOperator, RoleEntranceGuide, RoleMidGuide, RoleCrateHelper,
		RoleKeyActor, RoleWaveMember, RoleBoss, RoleTrigger,
	}
}

// Signal is one inbound notification.
type Signal struct {
	Type        Type
	Role        Role
	ActorID     string
	PayloadJSON []byte
}

// Definition describes one catalog entry.
type Definition struct {
	Type Type
	// Roles lists who may emit the signal.
	Roles []Role
	// Window is the set of phases where the signal can be accepted.
	Window progress.PhaseSet
	// Forward marks signals that advance the run one phase when accepted.
	Forward         bool
	ValidatePayload PayloadValidator
}

// Allows reports whether role may emit the signal.
func (d Definition) Allows(role Role) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func forward(t Type, from progress.Phase, roles ...Role) Definition {
	return Definition{Type: t, Roles: roles, Window: progress.SetOf(from), Forward: true, ValidatePayload: validateEmptyPayload}
}

var definitions = []Definition{
	{
		Type:            TypeGMRecall,
		Roles:           []Role{RoleOperator, RoleEntranceGuide},
		Window:          progress.All,
		ValidatePayload: validateEmptyPayload,
	},
	{
		Type:            TypeGMOverride,
		Roles:           []Role{RoleOperator, RoleEntranceGuide},
		Window:          progress.All,
		ValidatePayload: validateOverridePayload,
	},
	{
		Type:            TypeKeyActorDied,
		Roles:           []Role{RoleKeyActor},
		Window:          progress.All,
		ValidatePayload: validateEmptyPayload,
	},
	forward(TypeCratesStart, progress.JustStarted, RoleEntranceGuide),
	{
		Type:            TypeCrateRevealed,
		Roles:           []Role{RoleCrateHelper},
		Window:          progress.SetOf(progress.CratesInProgress),
		ValidatePayload: validateCrateRevealedPayload,
	},
	forward(TypeUtherStart, progress.CratesDone, RoleMidGuide),
	forward(TypeUtherFinished, progress.UtherTalk, RoleKeyActor),
	{
		Type:            TypeSkipToPurge,
		Roles:           []Role{RoleEntranceGuide},
		Window:          progress.Range(progress.JustStarted, progress.CratesDone),
		ValidatePayload: validateEmptyPayload,
	},
	forward(TypeStartPurge, progress.PurgePending, RoleKeyActor),
	forward(TypeStartWaves, progress.PurgeStarting, RoleKeyActor),
	{
		Type:            TypeNotifyDeath,
		Roles:           []Role{RoleWaveMember},
		Window:          progress.SetOf(progress.WavesInProgress),
		ValidatePayload: validateMemberDiedPayload,
	},
	forward(TypeReachTownHall, progress.WavesDone, RoleKeyActor, RoleTrigger),
	forward(TypeStartTownHall, progress.TownHallPending, RoleKeyActor),
	forward(TypeTownHallDone, progress.TownHall, RoleKeyActor),
	forward(TypeToGauntlet, progress.TownHallComplete, RoleKeyActor),
	forward(TypeGauntletReached, progress.GauntletTransition, RoleKeyActor, RoleTrigger),
	forward(TypeStartGauntlet, progress.GauntletPending, RoleKeyActor),
	forward(TypeGauntletDone, progress.GauntletInProgress, RoleKeyActor),
	forward(TypeStartMalganis, progress.GauntletComplete, RoleKeyActor),
	forward(TypeMalganisDone, progress.MalganisInProgress, RoleKeyActor),
	{
		Type:            TypeBossDefeated,
		Roles:           []Role{RoleBoss},
		Window:          progress.All,
		ValidatePayload: validateBossDefeatedPayload,
	},
}

var catalog = func() map[Type]Definition {
	m := make(map[Type]Definition, len(definitions))
	for _, def := range definitions {
		m[def.Type] = def
	}
	return m
}()

// Lookup returns the catalog entry for t.
func Lookup(t Type) (Definition, bool) {
	def, ok := catalog[t]
	return def, ok
}

// Definitions returns the catalog in declaration order.
func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

// ForwardFrom returns the forward signal that advances the run out of p.
func ForwardFrom(p progress.Phase) (Type, bool) {
	for _, def := range definitions {
		if def.Forward && def.Window.Has(p) {
			return def.Type, true
		}
	}
	return "", false
}
