package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "github.com/louisbranch/dungeonrun/internal/platform/errors"
	"github.com/louisbranch/dungeonrun/internal/services/run/dispatch"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/layout"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
)

// ErrLayoutRequired indicates a missing layout.
var ErrLayoutRequired = errors.New("layout is required")

// Presence tracks the groups spawned for each run. The registry seeds a run
// before it can receive signals and forgets it once nothing can dispatch for
// it anymore.
type Presence interface {
	Seed(runID string, groups []action.Group)
	Forget(runID string)
}

type nopPresence struct{}

func (nopPresence) Seed(string, []action.Group) {}
func (nopPresence) Forget(string)               {}

// Deps are the collaborators of an instance. Only Layout is required.
type Deps struct {
	Layout     *layout.Layout
	Dispatcher dispatch.Dispatcher
	Presence   Presence
	Recorder   Recorder
	Logger     zerolog.Logger
	Metrics    *Metrics
	Tracer     trace.Tracer
	Now        func() time.Time
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Layout == nil {
		return d, ErrLayoutRequired
	}
	if d.Dispatcher == nil {
		d.Dispatcher = dispatch.Discard
	}
	if d.Recorder == nil {
		d.Recorder = discardRecorder{}
	}
	if d.Presence == nil {
		d.Presence = nopPresence{}
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d, nil
}

// Outcome is what a caller learns about one signal or override.
type Outcome struct {
	Accepted   bool
	From       progress.Phase
	To         progress.Phase
	Seq        uint64
	Effects    []action.Action
	Rejection  transition.Rejection
	Regressed  bool
	Overridden bool
}

// Instance owns the progress of one run.
type Instance struct {
	id     string
	deps   Deps
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	state  atomic.Pointer[transition.State]
}

func newInstance(id string, state transition.State, deps Deps) (*Instance, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		id:     id,
		deps:   deps,
		logger: deps.Logger.With().Str("run_id", id).Logger(),
	}
	snapshot := state.Clone()
	inst.state.Store(&snapshot)
	return inst, nil
}

// ID returns the run id.
func (i *Instance) ID() string {
	return i.id
}

// Layout returns the layout the run plays.
func (i *Instance) Layout() *layout.Layout {
	return i.deps.Layout
}

// Notify validates sig and applies it.
//
// Malformed signals return an error and never reach the transition table.
// A well-formed signal the run cannot take in its current phase is reported
// as an Outcome that was not accepted.
func (i *Instance) Notify(ctx context.Context, sig signal.Signal) (Outcome, error) {
	ctx, span := i.deps.Tracer.Start(ctx, "run.Notify", trace.WithAttributes(
		attribute.String("run.id", i.id),
		attribute.String("signal.type", string(sig.Type)),
		attribute.String("signal.role", string(sig.Role)),
	))
	defer span.End()

	validated, err := i.validate(sig)
	if err != nil {
		i.deps.Metrics.signal(string(sig.Type), OutcomeInvalid)
		i.logger.Warn().Ctx(ctx).Err(err).
			Str("signal", string(sig.Type)).
			Str("role", string(sig.Role)).
			Str("actor_id", sig.ActorID).
			Msg("malformed signal")
		span.SetStatus(otelcodes.Error, err.Error())
		return Outcome{}, err
	}

	out, err := i.apply(ctx, validated, func(state transition.State) transition.Decision {
		return transition.Decide(state, i.deps.Layout, validated)
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return Outcome{}, err
	}
	span.SetAttributes(attribute.Bool("run.accepted", out.Accepted), attribute.String("run.phase", out.To.String()))
	return out, nil
}

// Override forces the run into target. It bypasses the forward guards but
// dispatches the same actions as reaching target normally.
func (i *Instance) Override(ctx context.Context, target progress.Phase, actorID string) (Outcome, error) {
	ctx, span := i.deps.Tracer.Start(ctx, "run.Override", trace.WithAttributes(
		attribute.String("run.id", i.id),
		attribute.String("run.target", target.String()),
	))
	defer span.End()

	if !target.Valid() {
		err := apperrors.WithMetadata(apperrors.CodeOverridePhaseInvalid,
			fmt.Sprintf("override target %s is not a run phase", target),
			map[string]string{"phase": target.String()})
		i.deps.Metrics.signal(string(signal.TypeGMOverride), OutcomeInvalid)
		i.logger.Warn().Ctx(ctx).Err(err).Str("actor_id", actorID).Msg("invalid override")
		span.SetStatus(otelcodes.Error, err.Error())
		return Outcome{}, err
	}

	payload, _ := json.Marshal(signal.OverridePayload{Phase: target.String()})
	sig := signal.Signal{Type: signal.TypeGMOverride, Role: signal.RoleOperator, ActorID: actorID, PayloadJSON: payload}
	out, err := i.apply(ctx, sig, func(state transition.State) transition.Decision {
		return transition.Override(state, i.deps.Layout, target)
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return out, err
}

// apply runs one evaluate, commit and dispatch unit under the run lock.
func (i *Instance) apply(ctx context.Context, sig signal.Signal, decide func(transition.State) transition.Decision) (Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return Outcome{}, apperrors.WithMetadata(apperrors.CodeRunNotFound,
			fmt.Sprintf("run %s has ended", i.id), map[string]string{"run_id": i.id})
	}

	current := i.state.Load()
	d := decide(*current)
	out := Outcome{
		Accepted:   d.Accepted,
		From:       d.From,
		To:         d.To,
		Seq:        d.State.Seq,
		Effects:    d.Effects,
		Rejection:  d.Rejection,
		Regressed:  d.Regressed,
		Overridden: d.Overridden,
	}
	if !d.Accepted {
		i.deps.Metrics.signal(string(sig.Type), OutcomeRejected)
		i.logger.Debug().Ctx(ctx).
			Str("signal", string(sig.Type)).
			Str("phase", d.From.String()).
			Str("code", d.Rejection.Code).
			Msg(d.Rejection.Message)
		return out, nil
	}

	next := d.State
	i.state.Store(&next)

	i.deps.Metrics.signal(string(sig.Type), OutcomeAccepted)
	i.deps.Metrics.decision(d)
	for _, a := range d.Effects {
		i.deps.Metrics.action(a.Kind.String())
		i.deps.Dispatcher.Dispatch(ctx, dispatch.Envelope{RunID: i.id, Seq: next.Seq, Action: a})
	}
	i.deps.Recorder.Record(ctx, Record{
		RunID:   i.id,
		Seq:     next.Seq,
		Cause:   string(sig.Type),
		Role:    string(sig.Role),
		ActorID: sig.ActorID,
		From:    d.From,
		To:      d.To,
		State:   next.Clone(),
		Effects: d.Effects,
		At:      i.deps.Now().UTC(),
	})

	if d.Transitioned() {
		i.logger.Info().Ctx(ctx).
			Str("signal", string(sig.Type)).
			Str("from", d.From.String()).
			Str("to", d.To.String()).
			Bool("regressed", d.Regressed).
			Bool("overridden", d.Overridden).
			Uint64("seq", next.Seq).
			Msg("run transitioned")
	}
	return out, nil
}

// close waits for the unit in flight and refuses every later one.
func (i *Instance) close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
}

// validate checks sig at the boundary and maps failures to coded errors.
func (i *Instance) validate(sig signal.Signal) (signal.Signal, error) {
	validated, err := signal.Validate(sig)
	if err != nil {
		metadata := map[string]string{"signal": string(sig.Type), "role": string(sig.Role)}
		switch {
		case errors.Is(err, signal.ErrTypeRequired):
			return signal.Signal{}, apperrors.WrapWithMetadata(apperrors.CodeSignalTypeRequired, err.Error(), metadata, err)
		case errors.Is(err, signal.ErrTypeUnknown):
			return signal.Signal{}, apperrors.WrapWithMetadata(apperrors.CodeSignalUnknown, err.Error(), metadata, err)
		case errors.Is(err, signal.ErrRoleForbidden):
			return signal.Signal{}, apperrors.WrapWithMetadata(apperrors.CodeSignalRoleForbidden, err.Error(), metadata, err)
		default:
			return signal.Signal{}, apperrors.WrapWithMetadata(apperrors.CodeSignalPayloadInvalid, err.Error(), metadata, err)
		}
	}
	if validated.Type == signal.TypeNotifyDeath {
		var payload signal.MemberDiedPayload
		_ = json.Unmarshal(validated.PayloadJSON, &payload)
		if _, ok := i.deps.Layout.Member(payload.MemberID); !ok {
			return signal.Signal{}, apperrors.WithMetadata(apperrors.CodeWaveMemberUnknown,
				fmt.Sprintf("wave member %q is not in the roster", payload.MemberID),
				map[string]string{"member_id": payload.MemberID})
		}
	}
	return validated, nil
}

// Get answers a query key from the latest committed snapshot.
func (i *Instance) Get(key string) (int64, error) {
	parsed, _, err := signal.ParseKey(key)
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeQueryKeyInvalid, err.Error(), map[string]string{"key": key}, err)
	}
	return i.state.Load().Value(parsed)
}

// Phase returns the current phase.
func (i *Instance) Phase() progress.Phase {
	return i.state.Load().Phase
}

// Snapshot returns a copy of the latest committed state.
func (i *Instance) Snapshot() transition.State {
	return i.state.Load().Clone()
}

// PositionFor returns where the key actor resumes for phase.
func (i *Instance) PositionFor(phase progress.Phase) (action.Position, error) {
	if !phase.Valid() {
		return action.Position{}, apperrors.WithMetadata(apperrors.CodePhaseInvalid,
			fmt.Sprintf("phase %s is not a run phase", phase),
			map[string]string{"phase": phase.String()})
	}
	return i.deps.Layout.ResumePosition(phase), nil
}

// Remaining returns how many wave members must still die.
func (i *Instance) Remaining() int {
	return transition.Remaining(*i.state.Load(), i.deps.Layout)
}
