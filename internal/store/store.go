package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/biomech/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no session is stored under the requested id.
var ErrNotFound = errors.New("session not found")

// SessionStore persists finalized sessions and hands back read-only copies.
type SessionStore interface {
	Save(ctx context.Context, s types.Session) (string, error)
	Get(ctx context.Context, id string) (types.Session, error)
	List(ctx context.Context) ([]types.SessionSummary, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// Store manages the PostgreSQL connection pool holding sessions and their samples.
// It is safe for concurrent use by HTTP handlers and the recorder.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
// Absent angles are stored as NULL, never as 0.
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			sample_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS joint_samples (
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			left_knee DOUBLE PRECISION,
			right_knee DOUBLE PRECISION,
			left_hip DOUBLE PRECISION,
			right_hip DOUBLE PRECISION,
			left_elbow DOUBLE PRECISION,
			right_elbow DOUBLE PRECISION,
			left_shoulder DOUBLE PRECISION,
			right_shoulder DOUBLE PRECISION,
			PRIMARY KEY (session_id, seq)
		);
		CREATE INDEX IF NOT EXISTS sessions_start_time_idx ON sessions (start_time DESC);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

var sampleColumns = []string{
	"session_id", "seq", "ts",
	"left_knee", "right_knee",
	"left_hip", "right_hip",
	"left_elbow", "right_elbow",
	"left_shoulder", "right_shoulder",
}

// Save stores the session and all its samples in one transaction and returns the new id.
// Either the whole session is visible afterwards or none of it is.
func (s *Store) Save(ctx context.Context, sess types.Session) (string, error) {
	id := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, name, type, start_time, end_time, sample_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, sess.Name, sess.Type, sess.StartTime, nullTime(sess.EndTime), len(sess.JointData))
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	rows := make([][]any, len(sess.JointData))
	for i, sample := range sess.JointData {
		a := sample.Angles
		rows[i] = []any{
			id, i, sample.Timestamp,
			a.LeftKnee, a.RightKnee,
			a.LeftHip, a.RightHip,
			a.LeftElbow, a.RightElbow,
			a.LeftShoulder, a.RightShoulder,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"joint_samples"}, sampleColumns, pgx.CopyFromRows(rows)); err != nil {
		return "", fmt.Errorf("copy samples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return id, nil
}

// Get loads a session and its samples in recording order.
func (s *Store) Get(ctx context.Context, id string) (types.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Session{}, ErrNotFound
	}

	// Header and samples come from one snapshot.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return types.Session{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback(ctx)

	var sess types.Session
	var end *time.Time
	err = tx.QueryRow(ctx, `
		SELECT id::text, name, type, start_time, end_time FROM sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.Name, &sess.Type, &sess.StartTime, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Session{}, ErrNotFound
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if end != nil {
		sess.EndTime = *end
	}

	rows, err := tx.Query(ctx, `
		SELECT ts, left_knee, right_knee, left_hip, right_hip, left_elbow, right_elbow, left_shoulder, right_shoulder
		FROM joint_samples WHERE session_id = $1 ORDER BY seq
	`, id)
	if err != nil {
		return types.Session{}, fmt.Errorf("load samples %s: %w", id, err)
	}
	defer rows.Close()

	sess.JointData = make([]types.JointAngleSample, 0)
	for rows.Next() {
		var sample types.JointAngleSample
		a := &sample.Angles
		if err := rows.Scan(&sample.Timestamp,
			&a.LeftKnee, &a.RightKnee,
			&a.LeftHip, &a.RightHip,
			&a.LeftElbow, &a.RightElbow,
			&a.LeftShoulder, &a.RightShoulder,
		); err != nil {
			return types.Session{}, fmt.Errorf("scan sample: %w", err)
		}
		sess.JointData = append(sess.JointData, sample)
	}
	if err := rows.Err(); err != nil {
		return types.Session{}, fmt.Errorf("load samples %s: %w", id, err)
	}
	rows.Close()
	if err := tx.Commit(ctx); err != nil {
		return types.Session{}, fmt.Errorf("finish load %s: %w", id, err)
	}
	return sess, nil
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]types.SessionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, type, start_time, end_time, sample_count FROM sessions ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SessionSummary
	for rows.Next() {
		var sum types.SessionSummary
		var end *time.Time
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Type, &sum.StartTime, &end, &sum.SampleCount); err != nil {
			return nil, err
		}
		if end != nil {
			sum.EndTime = *end
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Rename updates the display name of a session.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "UPDATE sessions SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session and, through the cascade, its samples.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS joint_samples CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
