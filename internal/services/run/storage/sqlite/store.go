// Package sqlite persists run snapshots and the transition journal in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/dungeonrun/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/progress"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/signal"
	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
	"github.com/louisbranch/dungeonrun/internal/services/run/engine"
	"github.com/louisbranch/dungeonrun/internal/services/run/storage"
	"github.com/louisbranch/dungeonrun/internal/services/run/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNotConfigured is returned by methods called on a nil or closed store.
var ErrNotConfigured = errors.New("storage is not configured")

// Store persists runs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ engine.Store           = (*Store)(nil)
	_ storage.SnapshotLoader = (*Store)(nil)
	_ storage.Journal        = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite run store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRecord appends rec to the journal and moves the snapshot forward. A
// record whose seq is not newer than the stored snapshot leaves the snapshot
// untouched. Replaying a journal row is a no-op.
func (s *Store) SaveRecord(ctx context.Context, rec engine.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	runID := strings.TrimSpace(rec.RunID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if !rec.State.Phase.Valid() {
		return fmt.Errorf("run %s: phase %s is not storable", runID, rec.State.Phase)
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	waveDead, err := json.Marshal(rec.State.DeadMembers())
	if err != nil {
		return fmt.Errorf("encode wave deaths: %w", err)
	}
	bosses, err := json.Marshal(bossNames(rec.State.DefeatedBosses()))
	if err != nil {
		return fmt.Errorf("encode bosses: %w", err)
	}
	effects, err := encodeEffects(rec.Effects)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_snapshots (
		   run_id, phase, wave_dead_json, bosses_json, recalls, last_override, seq, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   phase = excluded.phase,
		   wave_dead_json = excluded.wave_dead_json,
		   bosses_json = excluded.bosses_json,
		   recalls = excluded.recalls,
		   last_override = excluded.last_override,
		   seq = excluded.seq,
		   updated_at = excluded.updated_at
		 WHERE excluded.seq > run_snapshots.seq`,
		runID,
		rec.State.Phase.String(),
		string(waveDead),
		string(bosses),
		rec.State.Recalls,
		phaseColumn(rec.State.LastOverride),
		int64(rec.State.Seq),
		toMillis(at),
	); err != nil {
		return fmt.Errorf("upsert run snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_transitions (
		   run_id, seq, cause, role, actor_id, from_phase, to_phase, effects_json, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		int64(rec.Seq),
		rec.Cause,
		rec.Role,
		rec.ActorID,
		rec.From.String(),
		rec.To.String(),
		effects,
		toMillis(at),
	); err != nil && !isPrimaryKeyViolation(err) {
		return fmt.Errorf("append run transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save record: %w", err)
	}
	return nil
}

// DeleteRun removes the snapshot and journal of runID.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_transitions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run transitions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_snapshots WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run snapshot: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshots returns every stored run ordered by id.
func (s *Store) LoadSnapshots(ctx context.Context) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT run_id, phase, wave_dead_json, bosses_json, recalls, last_override, seq, updated_at
		 FROM run_snapshots ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("query run snapshots: %w", err)
	}
	defer rows.Close()

	var out []storage.Snapshot
	for rows.Next() {
		var (
			snap                     storage.Snapshot
			phase, lastOverride      string
			waveDeadJSON, bossesJSON string
			recalls, seq, updatedAt  int64
		)
		if err := rows.Scan(&snap.RunID, &phase, &waveDeadJSON, &bossesJSON, &recalls, &lastOverride, &seq, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan run snapshot: %w", err)
		}
		state, err := decodeState(phase, waveDeadJSON, bossesJSON, lastOverride)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", snap.RunID, err)
		}
		state.Recalls = recalls
		state.Seq = uint64(seq)
		snap.State = state
		snap.UpdatedAt = fromMillis(updatedAt)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run snapshots: %w", err)
	}
	return out, nil
}

// ListTransitions returns up to limit journal rows of runID with a seq of at
// least fromSeq, oldest first. A limit of zero or less returns every row.
func (s *Store) ListTransitions(ctx context.Context, runID string, fromSeq uint64, limit int) ([]storage.Transition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT run_id, seq, cause, role, actor_id, from_phase, to_phase, effects_json, recorded_at
		 FROM run_transitions
		 WHERE run_id = ? AND seq >= ?
		 ORDER BY seq
		 LIMIT ?`,
		runID, int64(fromSeq), limit)
	if err != nil {
		return nil, fmt.Errorf("query run transitions: %w", err)
	}
	defer rows.Close()

	var out []storage.Transition
	for rows.Next() {
		var (
			tr                    storage.Transition
			seq, recordedAt       int64
			from, to, effectsJSON string
		)
		if err := rows.Scan(&tr.RunID, &seq, &tr.Cause, &tr.Role, &tr.ActorID, &from, &to, &effectsJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan run transition: %w", err)
		}
		if tr.From, err = progress.ParsePhase(from); err != nil {
			return nil, fmt.Errorf("run %s seq %d: %w", tr.RunID, seq, err)
		}
		if tr.To, err = progress.ParsePhase(to); err != nil {
			return nil, fmt.Errorf("run %s seq %d: %w", tr.RunID, seq, err)
		}
		if tr.Effects, err = decodeEffects(effectsJSON); err != nil {
			return nil, fmt.Errorf("run %s seq %d: %w", tr.RunID, seq, err)
		}
		tr.Seq = uint64(seq)
		tr.RecordedAt = fromMillis(recordedAt)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run transitions: %w", err)
	}
	return out, nil
}

func phaseColumn(p progress.Phase) string {
	if !p.Valid() {
		return ""
	}
	return p.String()
}

func bossNames(bosses []signal.Boss) []string {
	out := make([]string, 0, len(bosses))
	for _, b := range bosses {
		out = append(out, string(b))
	}
	return out
}

func decodeState(phase, waveDeadJSON, bossesJSON, lastOverride string) (transition.State, error) {
	var state transition.State
	var err error
	if state.Phase, err = progress.ParsePhase(phase); err != nil {
		return state, err
	}
	if strings.TrimSpace(lastOverride) != "" {
		if state.LastOverride, err = progress.ParsePhase(lastOverride); err != nil {
			return state, err
		}
	}
	var dead []string
	if err := json.Unmarshal([]byte(waveDeadJSON), &dead); err != nil {
		return state, fmt.Errorf("decode wave deaths: %w", err)
	}
	if len(dead) > 0 {
		state.WaveDead = make(map[string]struct{}, len(dead))
		for _, id := range dead {
			state.WaveDead[id] = struct{}{}
		}
	}
	var names []string
	if err := json.Unmarshal([]byte(bossesJSON), &names); err != nil {
		return state, fmt.Errorf("decode bosses: %w", err)
	}
	if len(names) > 0 {
		state.Bosses = make(map[signal.Boss]struct{}, len(names))
		for _, name := range names {
			boss, err := signal.ParseBoss(name)
			if err != nil {
				return state, err
			}
			state.Bosses[boss] = struct{}{}
		}
	}
	return state, nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
