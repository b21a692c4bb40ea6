package repository

import (
	"context"
	"time"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/jmoiron/sqlx"
)

type PostgresAuditRepo struct {
	db *sqlx.DB
}

func NewPostgresAuditRepo(ctx context.Context, db *sqlx.DB) (*PostgresAuditRepo, error) {
	repo := &PostgresAuditRepo{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.ToolAudit) error {
	if entry == nil {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO tool_audit (
			id, request_id, tool, arguments, result_size, error, latency_ms, created_at
		) VALUES (
			:id, :request_id, :tool, :arguments, :result_size, :error, :latency_ms, :created_at
		)
		ON CONFLICT (id) DO NOTHING
	`, entry)
	return err
}

func (r *PostgresAuditRepo) List(ctx context.Context, tool string, limit int) ([]*model.ToolAudit, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	records := make([]*model.ToolAudit, 0, limit)
	var err error
	if tool != "" {
		err = r.db.SelectContext(ctx, &records, `
			SELECT id, request_id, tool, arguments, result_size, error, latency_ms, created_at
			FROM tool_audit WHERE tool = $1 ORDER BY created_at DESC LIMIT $2`, tool, limit)
	} else {
		err = r.db.SelectContext(ctx, &records, `
			SELECT id, request_id, tool, arguments, result_size, error, latency_ms, created_at
			FROM tool_audit ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PostgresAuditRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_audit (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			tool TEXT,
			arguments TEXT,
			result_size INTEGER,
			error TEXT,
			latency_ms BIGINT,
			created_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tool_audit_tool ON tool_audit(tool, created_at DESC)`)
	return nil
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM tool_audit WHERE created_at < $1`, cutoff)
	return err
}
