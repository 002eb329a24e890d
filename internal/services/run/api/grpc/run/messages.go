package run

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/dungeonrun/internal/services/run/dispatch"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
	"github.com/louisbranch/dungeonrun/internal/services/run/engine"
	"github.com/louisbranch/dungeonrun/internal/services/run/storage"
)

// Messages travel as google.protobuf.Struct and are decoded strictly into
// the types below.

type CreateRunRequest struct {
	RunID string `json:"run_id,omitempty"`
}

type RunRequest struct {
	RunID string `json:"run_id"`
}

type ListRunsRequest struct{}

type ListRunsResponse struct {
	RunIDs []string `json:"run_ids"`
}

// RunView summarizes one run.
type RunView struct {
	RunID        string   `json:"run_id"`
	Phase        string   `json:"phase"`
	PhaseOrdinal int      `json:"phase_ordinal"`
	Seq          uint64   `json:"seq"`
	Remaining    int      `json:"remaining"`
	DeadMembers  []string `json:"dead_members"`
	Bosses       []string `json:"bosses"`
	Recalls      int64    `json:"recalls"`
	LastOverride string   `json:"last_override,omitempty"`
}

type NotifyRequest struct {
	RunID   string          `json:"run_id"`
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	ActorID string          `json:"actor_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type OverrideRequest struct {
	RunID   string `json:"run_id"`
	Phase   string `json:"phase"`
	ActorID string `json:"actor_id,omitempty"`
}

// OutcomeView is the result of one signal or override.
type OutcomeView struct {
	Accepted         bool         `json:"accepted"`
	From             string       `json:"from"`
	To               string       `json:"to"`
	Seq              uint64       `json:"seq"`
	Regressed        bool         `json:"regressed,omitempty"`
	Overridden       bool         `json:"overridden,omitempty"`
	RejectionCode    string       `json:"rejection_code,omitempty"`
	RejectionMessage string       `json:"rejection_message,omitempty"`
	Effects          []ActionView `json:"effects"`
}

// ActionView is the wire form of an outbound action.
type ActionView struct {
	Kind     string           `json:"kind"`
	Actor    string           `json:"actor,omitempty"`
	Group    string           `json:"group,omitempty"`
	Sequence string           `json:"sequence,omitempty"`
	Phase    string           `json:"phase,omitempty"`
	Position *action.Position `json:"position,omitempty"`
}

type GetRequest struct {
	RunID string `json:"run_id"`
	Key   string `json:"key"`
}

type GetResponse struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type PositionRequest struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
}

type PositionResponse struct {
	Phase    string          `json:"phase"`
	Position action.Position `json:"position"`
}

type GroupsResponse struct {
	Groups []string `json:"groups"`
}

type EndRunResponse struct{}

type HistoryRequest struct {
	RunID     string `json:"run_id"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type HistoryResponse struct {
	Transitions   []TransitionView `json:"transitions"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// TransitionView is one journal row.
type TransitionView struct {
	Seq        uint64       `json:"seq"`
	Cause      string       `json:"cause"`
	Role       string       `json:"role,omitempty"`
	ActorID    string       `json:"actor_id,omitempty"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	Effects    []ActionView `json:"effects"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// WatchEvent is one action streamed to a watcher.
type WatchEvent struct {
	RunID  string     `json:"run_id"`
	Seq    uint64     `json:"seq"`
	Action ActionView `json:"action"`
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := decodeStrictJSON(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

func decodeStrictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func phaseLabel(p progress.Phase) string {
	if !p.Valid() {
		return ""
	}
	return p.String()
}

func actionView(a action.Action) ActionView {
	return ActionView{
		Kind:     a.Kind.String(),
		Actor:    string(a.Target.Actor),
		Group:    string(a.Target.Group),
		Sequence: string(a.Sequence),
		Phase:    phaseLabel(a.Phase),
		Position: a.Position,
	}
}

func actionViews(actions []action.Action) []ActionView {
	out := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionView(a))
	}
	return out
}

func runView(inst *engine.Instance) *RunView {
	state := inst.Snapshot()
	return stateView(inst.ID(), state, transition.Remaining(state, inst.Layout()))
}

func stateView(runID string, state transition.State, remaining int) *RunView {
	bosses := make([]string, 0, len(state.Bosses))
	for _, b := range state.DefeatedBosses() {
		bosses = append(bosses, string(b))
	}
	return &RunView{
		RunID:        runID,
		Phase:        state.Phase.String(),
		PhaseOrdinal: int(state.Phase),
		Seq:          state.Seq,
		Remaining:    remaining,
		DeadMembers:  state.DeadMembers(),
		Bosses:       bosses,
		Recalls:      state.Recalls,
		LastOverride: phaseLabel(state.LastOverride),
	}
}

func outcomeView(out engine.Outcome) *OutcomeView {
	return &OutcomeView{
		Accepted:         out.Accepted,
		From:             phaseLabel(out.From),
		To:               phaseLabel(out.To),
		Seq:              out.Seq,
		Regressed:        out.Regressed,
		Overridden:       out.Overridden,
		RejectionCode:    out.Rejection.Code,
		RejectionMessage: out.Rejection.Message,
		Effects:          actionViews(out.Effects),
	}
}

func transitionView(tr storage.Transition) TransitionView {
	return TransitionView{
		Seq:        tr.Seq,
		Cause:      tr.Cause,
		Role:       tr.Role,
		ActorID:    tr.ActorID,
		From:       phaseLabel(tr.From),
		To:         phaseLabel(tr.To),
		Effects:    actionViews(tr.Effects),
		RecordedAt: tr.RecordedAt,
	}
}

func watchEvent(env dispatch.Envelope) *WatchEvent {
	return &WatchEvent{RunID: env.RunID, Seq: env.Seq, Action: actionView(env.Action)}
}
