package transition

import (
	"fmt"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// Override forces the run into target, bypassing the forward guards.
//
// The run receives the same group changes and entry effects it would have
// received by reaching target organically, and the key actor is placed at the
// resume position of target. Jumping to or before the waves forgets the
// recorded wave deaths. Overriding into the current phase leaves and re-enters
// it: its groups are despawned and spawned again and its entry effects run.
func Override(state State, l *layout.Layout, target progress.Phase) Decision {
	decision := jump(state, l, target)
	if decision.Accepted {
		decision.State.LastOverride = target
		decision.Overridden = true
	}
	return decision
}

func jump(state State, l *layout.Layout, target progress.Phase) Decision {
	if !target.Valid() {
		return reject(state, RejectionCodeOverridePhaseInvalid, fmt.Sprintf("phase %s is not a run phase", target))
	}
	from := state.Phase
	next := state.Clone()
	next.Phase = target
	if !progress.WavesInProgress.Before(target) {
		next.WaveDead = nil
	}

	var effects []action.Action
	switch {
	case from == target:
		effects = reenter(l, target)
	case from.Valid():
		effects = groupDiff(l, from, target)
	default:
		for _, g := range l.GroupsActiveIn(target) {
			effects = append(effects, action.Spawn(g))
		}
	}
	effects = append(effects, action.Snapback(target, l.ResumePosition(target)))
	effects = append(effects, entryEffects(target, next)...)
	effects = append(effects, action.ProgressUpdate(target))
	return accept(from, next, effects)
}

// reenter despawns and respawns every group present in phase.
func reenter(l *layout.Layout, phase progress.Phase) []action.Action {
	groups := l.GroupsActiveIn(phase)
	effects := make([]action.Action, 0, 2*len(groups))
	for _, g := range groups {
		effects = append(effects, action.Despawn(g))
	}
	for _, g := range groups {
		effects = append(effects, action.Spawn(g))
	}
	return effects
}
