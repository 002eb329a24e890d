package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
)

// effectRow is the journal encoding of an action. Kinds and phases are
// stored by label so the journal survives enum reordering.
type effectRow struct {
	Kind     string           `json:"kind"`
	Actor    string           `json:"actor,omitempty"`
	Group    string           `json:"group,omitempty"`
	Sequence string           `json:"sequence,omitempty"`
	Phase    string           `json:"phase,omitempty"`
	Position *action.Position `json:"position,omitempty"`
}

var kindsByLabel = func() map[string]action.Kind {
	out := make(map[string]action.Kind)
	for k := action.KindProgressUpdate; k <= action.KindOpenPassage; k++ {
		out[k.String()] = k
	}
	return out
}()

func encodeEffects(effects []action.Action) (string, error) {
	rows := make([]effectRow, 0, len(effects))
	for _, a := range effects {
		row := effectRow{
			Kind:     a.Kind.String(),
			Actor:    string(a.Target.Actor),
			Group:    string(a.Target.Group),
			Sequence: string(a.Sequence),
			Position: a.Position,
		}
		if a.Phase.Valid() {
			row.Phase = a.Phase.String()
		}
		rows = append(rows, row)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode effects: %w", err)
	}
	return string(data), nil
}

func decodeEffects(data string) ([]action.Action, error) {
	var rows []effectRow
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("decode effects: %w", err)
	}
	out := make([]action.Action, 0, len(rows))
	for _, row := range rows {
		kind, ok := kindsByLabel[row.Kind]
		if !ok {
			return nil, fmt.Errorf("decode effects: unknown kind %q", row.Kind)
		}
		a := action.Action{
			Kind:     kind,
			Target:   action.Target{Actor: action.Actor(row.Actor), Group: action.Group(row.Group)},
			Sequence: action.Sequence(row.Sequence),
			Position: row.Position,
		}
		if row.Phase != "" {
			phase, err := progress.ParsePhase(row.Phase)
			if err != nil {
				return nil, fmt.Errorf("decode effects: %w", err)
			}
			a.Phase = phase
		}
		out = append(out, a)
	}
	return out, nil
}
