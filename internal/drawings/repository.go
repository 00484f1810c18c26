package drawings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a drawing lookup finds no matching record.
var ErrNotFound = errors.New("drawing not found")

const drawingColumns = `d.id, d.account_id, d.title, d.description, d.image_key, d.image_url,
	d.average_rating, d.rating_count, d.created_at, d.updated_at,
	a.username, a.name, a.email`

const drawingJoin = ` FROM drawings d JOIN accounts a ON a.id = d.account_id `

// Repository provides CRUD operations for drawings and their ratings
// against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new drawing record. Sets ID, CreatedAt, UpdatedAt on d.
func (r *Repository) Create(ctx context.Context, d *Drawing) error {
	d.ID = uuid.New()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	q := `
		INSERT INTO drawings (id, account_id, title, description, image_key, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q,
		d.ID, d.AccountID, d.Title, d.Description, d.ImageKey, d.ImageURL,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create drawing: %w", err)
	}
	return nil
}

// GetByID retrieves one drawing with its author projection.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Drawing, error) {
	q := `SELECT ` + drawingColumns + drawingJoin + `WHERE d.id = $1`
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
	d, err := scanDrawing(rows.Scan)
	if err != nil {
		return nil, err
	}
	return d, rows.Err()
}

// List returns all drawings newest-first with author projections.
func (r *Repository) List(ctx context.Context) ([]*Drawing, error) {
	q := `SELECT ` + drawingColumns + drawingJoin + `ORDER BY d.created_at DESC`
	return r.list(ctx, q)
}

// ListByAccount returns an account's drawings newest-first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Drawing, error) {
	q := `SELECT ` + drawingColumns + drawingJoin + `WHERE d.account_id = $1 ORDER BY d.created_at DESC`
	return r.list(ctx, q, accountID)
}

// Update rewrites the title and description of a drawing.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description string) error {
	q := `UPDATE drawings SET title = $2, description = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, title, description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update drawing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a drawing row; its ratings go with it via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM drawings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete drawing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRating records an account's rating for a drawing, replacing any
// previous value, and refreshes the drawing's cached average and count.
func (r *Repository) UpsertRating(ctx context.Context, drawingID, accountID uuid.UUID, value int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO drawing_ratings (drawing_id, account_id, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (drawing_id, account_id) DO UPDATE SET value = $3, updated_at = $4`,
		drawingID, accountID, value, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE drawings SET
			average_rating = (SELECT AVG(value) FROM drawing_ratings WHERE drawing_id = $1),
			rating_count   = (SELECT COUNT(*)  FROM drawing_ratings WHERE drawing_id = $1),
			updated_at     = $2
		WHERE id = $1`,
		drawingID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("refresh average rating: %w", err)
	}

	return tx.Commit(ctx)
}

// Count returns the total number of drawings.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM drawings`).Scan(&n)
	return n, err
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*Drawing, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()

	var out []*Drawing
	for rows.Next() {
		d, err := scanDrawing(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDrawing(scan func(dest ...any) error) (*Drawing, error) {
	var d Drawing
	var author Author
	if err := scan(
		&d.ID, &d.AccountID, &d.Title, &d.Description, &d.ImageKey, &d.ImageURL,
		&d.AverageRating, &d.RatingCount, &d.CreatedAt, &d.UpdatedAt,
		&author.Username, &author.Name, &author.Email,
	); err != nil {
		return nil, fmt.Errorf("scan drawing: %w", err)
	}
	d.Author = &author
	return &d, nil
}
