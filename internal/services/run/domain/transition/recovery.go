package transition

import (
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// Recover regresses a run whose key actor died to the stable phase behind
// its current phase. It is always accepted.
//
// The groups of the abandoned phase are despawned, the key actor is placed
// at the resume position and a progress update re-arms whoever owns the
// trigger into the stable phase. Recovering from a stable phase changes no
// groups.
func Recover(state State, l *layout.Layout) Decision {
	from := state.Phase
	next := state.Clone()
	next.Phase = progress.StableStateOf(from)
	if !from.Valid() {
		from = next.Phase
	}

	effects := groupDiff(l, from, next.Phase)
	effects = append(effects,
		action.Snapback(next.Phase, l.ResumePosition(next.Phase)),
		action.ProgressUpdate(next.Phase),
	)
	decision := accept(from, next, effects)
	decision.Regressed = true
	return decision
}
