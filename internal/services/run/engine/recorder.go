package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/action"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
)

// CauseCreated is the cause recorded when a run is created.
const CauseCreated = "run.created"

// Record is one committed change of a run.
type Record struct {
	RunID string
	Seq   uint64
	// Cause is the signal type, or CauseCreated.
	Cause   string
	Role    string
	ActorID string
	From    progress.Phase
	To      progress.Phase
	State   transition.State
	Effects []action.Action
	At      time.Time
}

// Recorder keeps committed records outside the critical section of a run.
// Implementations must not block.
type Recorder interface {
	Record(ctx context.Context, rec Record)
	Forget(ctx context.Context, runID string)
}

// Store persists records. Saving a record older than the stored snapshot
// must not move the snapshot backwards.
type Store interface {
	SaveRecord(ctx context.Context, rec Record) error
	DeleteRun(ctx context.Context, runID string) error
}

// ErrRecorderClosed is returned by Close when called twice.
var ErrRecorderClosed = errors.New("recorder is closed")

type recorderOp struct {
	rec    *Record
	forget string
}

// AsyncRecorder queues records for a Store and saves them on its own
// goroutine. A full queue drops the record; the next record of the same run
// carries the full state and repairs the snapshot.
type AsyncRecorder struct {
	store   Store
	logger  zerolog.Logger
	metrics *Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ops    chan recorderOp
	done   chan struct{}
}

// RecorderOptions configures an AsyncRecorder.
type RecorderOptions struct {
	Buffer int
	// Timeout bounds each store call.
	Timeout time.Duration
	Logger  zerolog.Logger
	Metrics *Metrics
}

// NewAsyncRecorder starts a recorder writing to store.
func NewAsyncRecorder(store Store, opts RecorderOptions) *AsyncRecorder {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	r := &AsyncRecorder{
		store:   store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
		ops:     make(chan recorderOp, opts.Buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record enqueues rec without blocking.
func (r *AsyncRecorder) Record(_ context.Context, rec Record) {
	r.enqueue(recorderOp{rec: &rec}, rec.RunID, rec.Seq)
}

// Forget enqueues the removal of runID without blocking.
func (r *AsyncRecorder) Forget(_ context.Context, runID string) {
	r.enqueue(recorderOp{forget: runID}, runID, 0)
}

func (r *AsyncRecorder) enqueue(op recorderOp, runID string, seq uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.recordLost(false)
		return
	}
	select {
	case r.ops <- op:
	default:
		r.metrics.recordLost(false)
		r.logger.Warn().Str("run_id", runID).Uint64("seq", seq).Msg("recorder queue full, dropping record")
	}
}

func (r *AsyncRecorder) loop() {
	defer close(r.done)
	for op := range r.ops {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if op.rec != nil {
			if err := r.store.SaveRecord(ctx, *op.rec); err != nil {
				r.metrics.recordLost(true)
				r.logger.Error().Err(err).Str("run_id", op.rec.RunID).Uint64("seq", op.rec.Seq).Msg("save run record")
			}
		} else if err := r.store.DeleteRun(ctx, op.forget); err != nil {
			r.logger.Error().Err(err).Str("run_id", op.forget).Msg("delete run")
		}
		cancel()
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to
// end.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.ops)
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, Record)  {}
func (discardRecorder) Forget(context.Context, string) {}
