package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Repository persists entries to Postgres and implements Recorder.
type Repository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRepository(db *pgxpool.Pool, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Record inserts the entry. Failures are logged, never returned.
func (r *Repository) Record(ctx context.Context, e Entry) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.Action, e.Details, e.IP, e.UserAgent, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Warn("audit write failed",
			zap.String("action", e.Action),
			zap.Error(err))
	}
}

// Recent returns the newest entries up to limit, for the admin console.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, details, ip, user_agent, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Details, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
