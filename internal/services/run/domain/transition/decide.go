package transition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

// Decide returns the decision for sig against state.
//
// Every (phase, signal) pair has at most one accepted outcome. Signals outside
// their catalog window are rejected so late or duplicate notifications leave
// the run untouched. The death of the key actor is always accepted and
// regresses the run.
func Decide(state State, l *layout.Layout, sig signal.Signal) Decision {
	def, ok := signal.Lookup(sig.Type)
	if !ok {
		return reject(state, RejectionCodeSignalUnsupported, fmt.Sprintf("signal %s is not supported", sig.Type))
	}
	if !def.Allows(sig.Role) {
		return reject(state, RejectionCodeSignalRoleForbidden, fmt.Sprintf("%s may not emit %s", sig.Role, sig.Type))
	}
	if !state.Phase.Valid() {
		return reject(state, RejectionCodeStateInvalid, fmt.Sprintf("run is in %s", state.Phase))
	}
	if len(sig.PayloadJSON) == 0 {
		sig.PayloadJSON = []byte("{}")
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(sig.PayloadJSON); err != nil {
			return reject(state, RejectionCodeSignalPayloadInvalid, err.Error())
		}
	}
	if !def.Window.Has(state.Phase) {
		return reject(state, RejectionCodeSignalOutOfWindow, fmt.Sprintf("%s is not accepted during %s", sig.Type, state.Phase))
	}

	switch sig.Type {
	case signal.TypeKeyActorDied:
		return Recover(state, l)
	case signal.TypeGMOverride:
		var payload signal.OverridePayload
		_ = json.Unmarshal(sig.PayloadJSON, &payload)
		target, _ := progress.ParsePhase(payload.Phase)
		return Override(state, l, target)
	case signal.TypeSkipToPurge:
		return jump(state, l, progress.PurgePending)
	case signal.TypeGMRecall:
		next := state.Clone()
		next.Recalls++
		return accept(state.Phase, next, []action.Action{action.Recall(l.ResumePosition(state.Phase))})
	case signal.TypeCrateRevealed:
		var payload signal.CrateRevealedPayload
		_ = json.Unmarshal(sig.PayloadJSON, &payload)
		if *payload.Remaining > 0 {
			return accept(state.Phase, state.Clone(), nil)
		}
		return advance(l, state.Phase, state.Clone())
	case signal.TypeNotifyDeath:
		return decideMemberDied(state, l, sig.PayloadJSON)
	case signal.TypeBossDefeated:
		var payload signal.BossDefeatedPayload
		_ = json.Unmarshal(sig.PayloadJSON, &payload)
		boss, _ := signal.ParseBoss(payload.Boss)
		if state.Defeated(boss) {
			return reject(state, RejectionCodeBossAlreadyDefeated, fmt.Sprintf("%s is already defeated", boss))
		}
		next := state.Clone()
		next.markDefeated(boss)
		return accept(state.Phase, next, nil)
	case signal.TypeTownHallDone:
		next := state.Clone()
		next.markDefeated(signal.BossEpoch)
		return advance(l, state.Phase, next)
	case signal.TypeMalganisDone:
		next := state.Clone()
		next.markDefeated(signal.BossMalganis)
		return advance(l, state.Phase, next)
	}

	if def.Forward {
		return advance(l, state.Phase, state.Clone())
	}
	return reject(state, RejectionCodeSignalUnsupported, fmt.Sprintf("signal %s has no transition", sig.Type))
}

// decideMemberDied records one wave death. The waves end once, when the last
// roster member is reported; unknown and repeated deaths are rejected.
func decideMemberDied(state State, l *layout.Layout, raw []byte) Decision {
	var payload signal.MemberDiedPayload
	_ = json.Unmarshal(raw, &payload)
	id := strings.TrimSpace(payload.MemberID)
	member, ok := l.Member(id)
	if !ok {
		return reject(state, RejectionCodeWaveMemberUnknown, fmt.Sprintf("wave member %q is not in the roster", id))
	}
	if _, dead := state.WaveDead[member.ID]; dead {
		return reject(state, RejectionCodeWaveMemberAlreadyDead, fmt.Sprintf("wave member %q is already dead", member.ID))
	}

	next := state.Clone()
	next.markDead(member.ID)
	if member.Boss != "" {
		next.markDefeated(member.Boss)
	}
	if len(next.WaveDead) < l.WaveSize() {
		return accept(state.Phase, next, nil)
	}
	return advance(l, state.Phase, next)
}

// Remaining returns how many roster members must still die to end the waves.
func Remaining(state State, l *layout.Layout) int {
	n := l.WaveSize() - len(state.WaveDead)
	if n < 0 {
		return 0
	}
	return n
}
