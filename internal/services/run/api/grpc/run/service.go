// Package run exposes the run engine over gRPC.
package run

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/dungeonrun/internal/platform/errors"
	"github.com/louisbranch/dungeonrun/internal/platform/grpc/pagination"
	"github.com/louisbranch/dungeonrun/internal/platform/requestctx"
	"github.com/louisbranch/dungeonrun/internal/services/run/dispatch"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
	"github.com/louisbranch/dungeonrun/internal/services/run/engine"
	"github.com/louisbranch/dungeonrun/internal/services/run/storage"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 500
)

// Options are the optional collaborators of a Service.
type Options struct {
	// Groups answers the Groups RPC. Without it Groups is unavailable.
	Groups *dispatch.GroupTracker
	// Broker feeds Watch streams. Without it Watch is unavailable.
	Broker *dispatch.Broker
	// Journal answers History. Without it History is unavailable.
	Journal storage.Journal
	Logger  zerolog.Logger
}

// Service exposes run operations.
type Service struct {
	registry *engine.Registry
	opts     Options
}

var _ RunServiceServer = (*Service)(nil)

// NewService creates a run service backed by registry.
func NewService(registry *engine.Registry, opts Options) *Service {
	return &Service{registry: registry, opts: opts}
}

func (s *Service) fail(ctx context.Context, err error) error {
	return apperrors.ToGRPC(err, requestctx.LocaleFromContext(ctx))
}

func (s *Service) instance(ctx context.Context, runID string) (*engine.Instance, error) {
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "run registry is not configured")
	}
	inst, err := s.registry.Get(runID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return inst, nil
}

// CreateRun starts a run.
func (s *Service) CreateRun(ctx context.Context, in *CreateRunRequest) (*RunView, error) {
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "run registry is not configured")
	}
	inst, err := s.registry.Create(ctx, in.RunID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return runView(inst), nil
}

// ListRuns returns the ids of every run.
func (s *Service) ListRuns(ctx context.Context, _ *ListRunsRequest) (*ListRunsResponse, error) {
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "run registry is not configured")
	}
	return &ListRunsResponse{RunIDs: s.registry.List()}, nil
}

// GetRun summarizes one run.
func (s *Service) GetRun(ctx context.Context, in *RunRequest) (*RunView, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	return runView(inst), nil
}

// Notify delivers one signal. The caller's actor id from metadata fills a
// missing ActorID.
func (s *Service) Notify(ctx context.Context, in *NotifyRequest) (*OutcomeView, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		actorID = requestctx.ActorIDFromContext(ctx)
	}
	out, err := inst.Notify(ctx, signal.Signal{
		Type:        signal.Type(strings.TrimSpace(in.Type)),
		Role:        signal.Role(strings.TrimSpace(in.Role)),
		ActorID:     actorID,
		PayloadJSON: in.Payload,
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return outcomeView(out), nil
}

// Override forces a run into a phase.
func (s *Service) Override(ctx context.Context, in *OverrideRequest) (*OutcomeView, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	target, err := progress.ParsePhase(in.Phase)
	if err != nil {
		return nil, s.fail(ctx, apperrors.WrapWithMetadata(apperrors.CodeOverridePhaseInvalid,
			err.Error(), map[string]string{"phase": in.Phase}, err))
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		actorID = requestctx.ActorIDFromContext(ctx)
	}
	out, err := inst.Override(ctx, target, actorID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return outcomeView(out), nil
}

// Get answers one query key.
func (s *Service) Get(ctx context.Context, in *GetRequest) (*GetResponse, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	value, err := inst.Get(in.Key)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &GetResponse{Key: strings.ToLower(strings.TrimSpace(in.Key)), Value: value}, nil
}

// Position returns where the key actor resumes for a phase.
func (s *Service) Position(ctx context.Context, in *PositionRequest) (*PositionResponse, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	phase := inst.Phase()
	if strings.TrimSpace(in.Phase) != "" {
		phase, err = progress.ParsePhase(in.Phase)
		if err != nil {
			return nil, s.fail(ctx, apperrors.WrapWithMetadata(apperrors.CodePhaseInvalid,
				err.Error(), map[string]string{"phase": in.Phase}, err))
		}
	}
	pos, err := inst.PositionFor(phase)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &PositionResponse{Phase: phase.String(), Position: pos}, nil
}

// Groups lists the actor groups currently present in a run.
func (s *Service) Groups(ctx context.Context, in *RunRequest) (*GroupsResponse, error) {
	inst, err := s.instance(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	if s.opts.Groups == nil {
		return nil, status.Error(codes.Unimplemented, "group tracking is not configured")
	}
	return &GroupsResponse{Groups: groupNames(s.opts.Groups.Present(inst.ID()))}, nil
}

// History pages through the stored transitions of a run.
func (s *Service) History(ctx context.Context, in *HistoryRequest) (*HistoryResponse, error) {
	if s == nil || s.opts.Journal == nil {
		return nil, status.Error(codes.Unimplemented, "run history is not configured")
	}
	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		return nil, s.fail(ctx, apperrors.New(apperrors.CodeRunIDRequired, "run id is required"))
	}
	from, err := pagination.DecodeCursor(in.PageToken)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pageSize := pagination.ClampPageSize(in.PageSize, pagination.PageSizeConfig{
		Default: defaultHistoryPageSize,
		Max:     maxHistoryPageSize,
	})
	rows, err := s.opts.Journal.ListTransitions(ctx, runID, from, pageSize+1)
	if err != nil {
		return nil, s.fail(ctx, apperrors.Wrap(apperrors.CodeStorageFailure, "list run transitions", err))
	}
	resp := &HistoryResponse{Transitions: make([]TransitionView, 0, len(rows))}
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		resp.NextPageToken = pagination.EncodeCursor(rows[len(rows)-1].Seq + 1)
	}
	for _, row := range rows {
		resp.Transitions = append(resp.Transitions, transitionView(row))
	}
	return resp, nil
}

// EndRun tears a run down.
func (s *Service) EndRun(ctx context.Context, in *RunRequest) (*EndRunResponse, error) {
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "run registry is not configured")
	}
	if err := s.registry.Remove(ctx, in.RunID); err != nil {
		return nil, s.fail(ctx, err)
	}
	return &EndRunResponse{}, nil
}

// Watch streams dispatched actions until the client leaves. An empty run id
// watches every run.
func (s *Service) Watch(in *RunRequest, stream WatchServer) error {
	ctx := stream.Context()
	if s == nil || s.opts.Broker == nil {
		return status.Error(codes.Unimplemented, "action streaming is not configured")
	}
	runID := strings.TrimSpace(in.RunID)
	if runID != "" {
		if _, err := s.instance(ctx, runID); err != nil {
			return err
		}
	}
	sub := s.opts.Broker.Subscribe(runID, dispatch.DefaultBuffer)
	defer sub.Close()
	s.opts.Logger.Debug().Ctx(ctx).Str("run_id", runID).Msg("watch started")

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case env, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := stream.Send(watchEvent(env)); err != nil {
				return err
			}
		}
	}
}

func groupNames(groups []action.Group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, string(g))
	}
	return out
}
