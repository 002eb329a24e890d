package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/louisbranch/dungeonrun/internal/platform/errors"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
)

// Registry holds the runs owned by this process. Runs share nothing but the
// registry map; each one locks only itself.
type Registry struct {
	deps Deps

	mu   sync.RWMutex
	runs map[string]*Instance
}

// NewRegistry returns an empty registry creating runs with deps.
func NewRegistry(deps Deps) (*Registry, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Registry{deps: deps, runs: make(map[string]*Instance)}, nil
}

// Create starts a run in its first phase. An empty id gets a random one.
func (r *Registry) Create(ctx context.Context, id string) (*Instance, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	state := transition.NewState()
	inst, err := r.add(id, state)
	if err != nil {
		return nil, err
	}
	r.deps.Recorder.Record(ctx, Record{
		RunID: id,
		Seq:   state.Seq,
		Cause: CauseCreated,
		From:  state.Phase,
		To:    state.Phase,
		State: state,
		At:    r.deps.Now().UTC(),
	})
	r.deps.Logger.Info().Ctx(ctx).Str("run_id", id).Msg("run created")
	return inst, nil
}

// Restore adopts a run loaded from storage without recording it again.
func (r *Registry) Restore(id string, state transition.State) (*Instance, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.New(apperrors.CodeRunIDRequired, "run id is required")
	}
	if !state.Phase.Valid() {
		return nil, apperrors.WithMetadata(apperrors.CodePhaseInvalid,
			fmt.Sprintf("stored run %s is in %s", id, state.Phase),
			map[string]string{"phase": state.Phase.String()})
	}
	return r.add(id, state)
}

func (r *Registry) add(id string, state transition.State) (*Instance, error) {
	inst, err := newInstance(id, state, r.deps)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[id]; exists {
		return nil, apperrors.WithMetadata(apperrors.CodeRunAlreadyExists,
			fmt.Sprintf("run %s already exists", id), map[string]string{"run_id": id})
	}
	r.deps.Presence.Seed(id, r.deps.Layout.GroupsActiveIn(state.Phase))
	r.runs[id] = inst
	r.deps.Metrics.runs(1)
	return inst, nil
}

// Get returns the run with id.
func (r *Registry) Get(id string) (*Instance, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.New(apperrors.CodeRunIDRequired, "run id is required")
	}
	r.mu.RLock()
	inst, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeRunNotFound,
			fmt.Sprintf("run %s not found", id), map[string]string{"run_id": id})
	}
	return inst, nil
}

// Remove tears a run down and forgets its stored state. Signals still in
// flight for the run finish first; later ones fail with run not found.
func (r *Registry) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.New(apperrors.CodeRunIDRequired, "run id is required")
	}
	r.mu.Lock()
	inst, ok := r.runs[id]
	delete(r.runs, id)
	r.mu.Unlock()
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeRunNotFound,
			fmt.Sprintf("run %s not found", id), map[string]string{"run_id": id})
	}
	inst.close()
	r.deps.Presence.Forget(inst.ID())
	r.deps.Metrics.runs(-1)
	r.deps.Recorder.Forget(ctx, inst.ID())
	r.deps.Logger.Info().Ctx(ctx).Str("run_id", inst.ID()).Str("phase", inst.Phase().String()).Msg("run removed")
	return nil
}

// List returns the run ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.runs))
	for id := range r.runs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
