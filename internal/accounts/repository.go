package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an account lookup finds no matching record.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateUsername is returned when a registration reuses a taken username.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail is returned when a registration reuses a taken email.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateGoogleID is returned when a Google identity is already linked
// to another account.
var ErrDuplicateGoogleID = errors.New("google account already linked")

const accountColumns = `id, username, email, phone, google_id, name, role, status,
	security_question, experience_level, interests, message, created_at, updated_at`

// Repository provides CRUD operations for accounts against PostgreSQL.
//
// Default reads never select password_hash or security_answer_hash; callers
// that need them for credential comparison must use the WithSecrets variants.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account record. Sets ID, CreatedAt, UpdatedAt on a.
// Uniqueness of username, email, and google_id is enforced by database
// constraints, not pre-checks, so concurrent registrations cannot race past
// each other.
func (r *Repository) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	q := `
		INSERT INTO accounts (id, username, email, phone, password_hash, google_id, name,
			role, status, security_question, security_answer_hash,
			experience_level, interests, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.Exec(ctx, q,
		a.ID, a.Username, a.Email, a.Phone, a.PasswordHash, a.GoogleID, a.Name,
		a.Role, a.Status, a.SecurityQuestion, a.SecurityAnswerHash,
		string(a.Profile.ExperienceLevel), interestsValue(a.Profile.Interests), a.Profile.Message,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "accounts_email_key":
				return ErrDuplicateEmail
			case "accounts_google_id_key":
				return ErrDuplicateGoogleID
			default:
				return ErrDuplicateUsername
			}
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its internal UUID. Hashes are not loaded.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

// GetByUsername retrieves an account by username. Hashes are not loaded.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.scanOne(ctx, q, username)
}

// GetByGoogleID retrieves the account linked to a Google identity.
func (r *Repository) GetByGoogleID(ctx context.Context, googleID string) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE google_id = $1`
	return r.scanOne(ctx, q, googleID)
}

// GetByUsernameWithSecrets retrieves an account by username including both
// credential hashes. Privileged read — use only for credential comparison.
func (r *Repository) GetByUsernameWithSecrets(ctx context.Context, username string) (*Account, error) {
	q := `SELECT ` + accountColumns + `, password_hash, security_answer_hash
		FROM accounts WHERE username = $1`
	return r.scanOneWithSecrets(ctx, q, username)
}

// GetByEmailWithSecrets retrieves an account by email including both
// credential hashes. Privileged read — use only for credential comparison.
func (r *Repository) GetByEmailWithSecrets(ctx context.Context, email string) (*Account, error) {
	q := `SELECT ` + accountColumns + `, password_hash, security_answer_hash
		FROM accounts WHERE email = $1`
	return r.scanOneWithSecrets(ctx, q, email)
}

// SetStatus updates an account's approval status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`, status)
}

// SetRole updates an account's role.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role Role) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`, role)
}

// SetPasswordHash replaces the stored password hash. No other column is
// touched, so unrelated updates can never re-hash an unchanged password.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, hash)
}

// SetSecurityAnswerHash replaces the stored security-answer hash.
func (r *Repository) SetSecurityAnswerHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET security_answer_hash = $2, updated_at = $3 WHERE id = $1`, hash)
}

// SetPhone updates only the phone column.
func (r *Repository) SetPhone(ctx context.Context, id uuid.UUID, phone string) error {
	return r.exec(ctx, id,
		`UPDATE accounts SET phone = $2, updated_at = $3 WHERE id = $1`, phone)
}

// UpdateProfile writes the enrollment profile fields and nothing else.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) error {
	q := `UPDATE accounts SET experience_level = $2, interests = $3, message = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id,
		string(p.ExperienceLevel), interestsValue(p.Interests), p.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns accounts newest-first with limit/offset pagination.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListStudents returns student-role accounts newest-first. Used by the admin
// enrollment review surface.
func (r *Repository) ListStudents(ctx context.Context) ([]*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts
		WHERE role = 'student' ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the total number of accounts.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

// CountByStatus returns the number of accounts with the given status.
func (r *Repository) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE status = $1`, status).Scan(&n)
	return n, err
}

// exec runs a single-row UPDATE with an updated_at argument appended.
func (r *Repository) exec(ctx context.Context, id uuid.UUID, q string, arg any) error {
	tag, err := r.db.Exec(ctx, q, id, arg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*Account, error) {
	rows, err := r.db.Query(ctx, q, args...)
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
	a, err := scanAccount(rows.Scan)
	if err != nil {
		return nil, err
	}
	return a, rows.Err()
}

func (r *Repository) scanOneWithSecrets(ctx context.Context, q string, args ...any) (*Account, error) {
	rows, err := r.db.Query(ctx, q, args...)
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

	var a Account
	var level string
	if err := rows.Scan(
		&a.ID, &a.Username, &a.Email, &a.Phone, &a.GoogleID, &a.Name, &a.Role, &a.Status,
		&a.SecurityQuestion, &level, &a.Profile.Interests, &a.Profile.Message,
		&a.CreatedAt, &a.UpdatedAt,
		&a.PasswordHash, &a.SecurityAnswerHash,
	); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Profile.ExperienceLevel = ExperienceLevel(level)
	return &a, rows.Err()
}

// scanAccount scans the accountColumns projection.
func scanAccount(scan func(dest ...any) error) (*Account, error) {
	var a Account
	var level string
	if err := scan(
		&a.ID, &a.Username, &a.Email, &a.Phone, &a.GoogleID, &a.Name, &a.Role, &a.Status,
		&a.SecurityQuestion, &level, &a.Profile.Interests, &a.Profile.Message,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Profile.ExperienceLevel = ExperienceLevel(level)
	return &a, nil
}

// interestsValue normalizes a nil interests slice to an empty array.
// pgx encodes nil slices as SQL NULL, and the interests column is NOT NULL.
func interestsValue(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
