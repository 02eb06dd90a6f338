package workflow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresJournal is the Journal backed by the workflow_executions and
// workflow_steps tables (see db/migrations). It is the journal used by
// cmd/curator-worker.
type PostgresJournal struct {
	db *sqlx.DB
}

// NewPostgresJournal wraps db as a Journal.
func NewPostgresJournal(db *sqlx.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) TryAcquire(ctx context.Context, kind, key string) (bool, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (kind, key, status, created_at)
		VALUES ($1, $2, 'running', $3)
		ON CONFLICT (kind, key) DO UPDATE
		SET status = 'running', created_at = $3
		WHERE workflow_executions.status != 'running'
	`, kind, key, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (j *PostgresJournal) Release(ctx context.Context, kind, key string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE workflow_executions SET status = 'idle' WHERE kind = $1 AND key = $2 AND status = 'running'
	`, kind, key)
	return err
}

func (j *PostgresJournal) GetStep(ctx context.Context, kind, key, stepKey string) ([]byte, bool, error) {
	var value []byte
	err := j.db.GetContext(ctx, &value, `
		SELECT value FROM workflow_steps WHERE kind = $1 AND key = $2 AND step_key = $3
	`, kind, key, stepKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (j *PostgresJournal) PutStep(ctx context.Context, kind, key, stepKey string, value []byte) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (kind, key, step_key, value, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, key, step_key) DO UPDATE SET value = $4, recorded_at = $5
	`, kind, key, stepKey, value, time.Now().UTC())
	return err
}

func (j *PostgresJournal) SetState(ctx context.Context, kind, key, stateKey string, value []byte) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO workflow_state (kind, key, state_key, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, key, state_key) DO UPDATE SET value = $4, updated_at = $5
	`, kind, key, stateKey, value, time.Now().UTC())
	return err
}

func (j *PostgresJournal) GetState(ctx context.Context, kind, key, stateKey string) ([]byte, bool, error) {
	var value []byte
	err := j.db.GetContext(ctx, &value, `
		SELECT value FROM workflow_state WHERE kind = $1 AND key = $2 AND state_key = $3
	`, kind, key, stateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (j *PostgresJournal) MarkTerminal(ctx context.Context, kind, key string, failed bool, message string) error {
	status := "succeeded"
	if failed {
		status = "failed"
	}
	_, err := j.db.ExecContext(ctx, `
		UPDATE workflow_executions SET status = $1, terminal_message = $2, finished_at = $3
		WHERE kind = $4 AND key = $5
	`, status, message, time.Now().UTC(), kind, key)
	return err
}
