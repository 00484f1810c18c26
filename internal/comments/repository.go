package comments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a comment lookup finds no matching record.
var ErrNotFound = errors.New("comment not found")

const commentColumns = `c.id, c.drawing_id, c.account_id, c.content, c.created_at, c.updated_at,
	a.username, a.name`

const commentJoin = ` FROM comments c JOIN accounts a ON a.id = c.account_id `

// Repository provides CRUD operations for comments against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new comment. Sets ID, CreatedAt, UpdatedAt on c.
func (r *Repository) Create(ctx context.Context, c *Comment) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	q := `
		INSERT INTO comments (id, drawing_id, account_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, q, c.ID, c.DrawingID, c.AccountID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// GetByID retrieves one comment with its author projection.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	q := `SELECT ` + commentColumns + commentJoin + `WHERE c.id = $1`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	c, err := scanComment(rows.Scan)
	if err != nil {
		return nil, err
	}
	return c, rows.Err()
}

// ListByDrawing returns a drawing's comments newest-first.
func (r *Repository) ListByDrawing(ctx context.Context, drawingID uuid.UUID) ([]*Comment, error) {
	q := `SELECT ` + commentColumns + commentJoin + `WHERE c.drawing_id = $1 ORDER BY c.created_at DESC`
	return r.list(ctx, q, drawingID)
}

// ListByAccount returns an account's comments newest-first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Comment, error) {
	q := `SELECT ` + commentColumns + commentJoin + `WHERE c.account_id = $1 ORDER BY c.created_at DESC`
	return r.list(ctx, q, accountID)
}

// Update rewrites the content of a comment.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, content string) error {
	q := `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one comment.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByDrawing removes every comment on a drawing.
func (r *Repository) DeleteByDrawing(ctx context.Context, drawingID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE drawing_id = $1`, drawingID)
	if err != nil {
		return fmt.Errorf("delete comments by drawing: %w", err)
	}
	return nil
}

// DeleteByAccount removes every comment an account authored.
func (r *Repository) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete comments by account: %w", err)
	}
	return nil
}

// Count returns the total number of comments.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n)
	return n, err
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*Comment, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(scan func(dest ...any) error) (*Comment, error) {
	var c Comment
	var author Author
	if err := scan(
		&c.ID, &c.DrawingID, &c.AccountID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
		&author.Username, &author.Name,
	); err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	c.Author = &author
	return &c, nil
}
