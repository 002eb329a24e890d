package transition

import (
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
)

// groupDiff despawns the groups that leave with from and spawns the groups
// that arrive with to. Groups present in both phases get no action.
func groupDiff(l *layout.Layout, from, to progress.Phase) []action.Action {
	var despawns, spawns []action.Action
	for _, g := range action.Groups() {
		window := l.GroupWindow(g)
		was, is := window.Has(from), window.Has(to)
		switch {
		case was && !is:
			despawns = append(despawns, action.Despawn(g))
		case is && !was:
			spawns = append(spawns, action.Spawn(g))
		}
	}
	return append(despawns, spawns...)
}

// entryEffects are dispatched whenever a run enters phase, whether it got
// there through a forward signal or an override.
func entryEffects(phase progress.Phase, next State) []action.Action {
	switch phase {
	case progress.UtherTalk:
		return []action.Action{action.StartRPEvent(action.SequenceUther)}
	case progress.PurgeStarting:
		return []action.Action{action.StartRPEvent(action.SequencePurge)}
	case progress.TownHall:
		return []action.Action{action.StartRPEvent(action.SequenceTownHall)}
	case progress.GauntletTransition:
		return []action.Action{action.StartRPEvent(action.SequencePassage), action.OpenPassage()}
	case progress.GauntletInProgress:
		return []action.Action{action.StartRPEvent(action.SequenceGauntlet)}
	case progress.MalganisInProgress:
		return []action.Action{action.StartRPEvent(action.SequenceMalganis)}
	case progress.Complete:
		if !next.Defeated(signal.BossInfiniteCorruptor) {
			return []action.Action{action.CorruptorLeave()}
		}
	}
	return nil
}

// advance moves next one phase forward along the happy path.
func advance(l *layout.Layout, from progress.Phase, next State) Decision {
	to, ok := from.Next()
	if !ok {
		return reject(next, RejectionCodeSignalOutOfWindow, "run is already complete")
	}
	next.Phase = to
	effects := groupDiff(l, from, to)
	effects = append(effects, entryEffects(to, next)...)
	effects = append(effects, action.ProgressUpdate(to))
	return accept(from, next, effects)
}
