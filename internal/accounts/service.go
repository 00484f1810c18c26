package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a failed login. The same value is
// used for unknown accounts and wrong passwords so the error body cannot be
// used to enumerate usernames.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrWrongSecurityAnswer is returned when a password-reset answer does not
// match the stored hash.
var ErrWrongSecurityAnswer = errors.New("incorrect security answer")

// ErrMissingFields wraps validation failures for absent required input.
var ErrMissingFields = errors.New("missing required fields")

// ErrInvalidInput wraps validation failures for malformed input values.
var ErrInvalidInput = errors.New("invalid input")

// accountRepo is the storage interface consumed by Service.
type accountRepo interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*Account, error)
	GetByUsernameWithSecrets(ctx context.Context, username string) (*Account, error)
	GetByEmailWithSecrets(ctx context.Context, email string) (*Account, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetRole(ctx context.Context, id uuid.UUID, role Role) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetPhone(ctx context.Context, id uuid.UUID, phone string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Account, error)
	ListStudents(ctx context.Context) ([]*Account, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
}

// DrawingPurger removes all drawings authored by an account, including their
// stored images and comments. Satisfied by *drawings.Service.
type DrawingPurger interface {
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// CommentPurger removes all comments authored by an account.
// Satisfied by *comments.Service.
type CommentPurger interface {
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// Service implements business logic for account lifecycle and credentials.
type Service struct {
	repo     accountRepo
	drawings DrawingPurger
	comments CommentPurger
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo accountRepo, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetCascade wires the collaborators used when deleting an account.
func (s *Service) SetCascade(d DrawingPurger, c CommentPurger) {
	s.drawings = d
	s.comments = c
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Username         string
	Password         string
	Email            string
	Name             string
	Phone            string
	SecurityQuestion string
	SecurityAnswer   string
}

// Register creates a new student account in pending status.
// Both secrets are bcrypt-hashed before the single durable write; the
// security answer is lowercased first so later comparison is
// case-insensitive.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"username", in.Username},
		{"password", in.Password},
		{"name", in.Name},
		{"securityQuestion", in.SecurityQuestion},
		{"securityAnswer", in.SecurityAnswer},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	if !ValidSecurityQuestion(in.SecurityQuestion) {
		return nil, fmt.Errorf("%w: unknown security question", ErrInvalidInput)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(strings.ToLower(in.SecurityAnswer)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash security answer: %w", err)
	}

	a := &Account{
		Username:           in.Username,
		Phone:              in.Phone,
		PasswordHash:       string(passHash),
		Name:               in.Name,
		Role:               RoleStudent,
		Status:             StatusPending,
		SecurityQuestion:   in.SecurityQuestion,
		SecurityAnswerHash: string(answerHash),
	}
	if in.Email != "" {
		a.Email = &in.Email
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// Login verifies a username/password pair. The returned account carries no
// credential hashes. Unknown usernames and wrong passwords produce the same
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Account, error) {
	a, err := s.repo.GetByUsernameWithSecrets(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !a.HasLocalPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	a.PasswordHash = ""
	a.SecurityAnswerHash = ""
	return a, nil
}

// AdminLogin verifies an email/password pair for an admin account.
// Non-admin matches fail with the same generic credentials error. A pending
// admin is promoted to active as a side effect of a successful login, so the
// first operator account is never locked out by the approval gate.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.repo.GetByEmailWithSecrets(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if a.Role != RoleAdmin {
		return nil, ErrInvalidCredentials
	}
	if !a.HasLocalPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if a.Status == StatusPending {
		if err := s.repo.SetStatus(ctx, a.ID, StatusActive); err != nil {
			return nil, fmt.Errorf("activate admin: %w", err)
		}
		a.Status = StatusActive
	}

	a.PasswordHash = ""
	a.SecurityAnswerHash = ""
	return a, nil
}

// SecurityQuestion returns the stored recovery question for a username.
// This endpoint reveals account existence through its 404; the behavior is
// kept as-is because the recovery UI depends on it.
func (s *Service) SecurityQuestion(ctx context.Context, username string) (string, error) {
	a, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if a.SecurityQuestion == "" {
		// Google-created account that never completed enrollment.
		return "", ErrNotFound
	}
	return a.SecurityQuestion, nil
}

// ResetPassword verifies the security answer (case-insensitively) and stores
// a new password hash. No session token is issued; the caller must log in
// again with the new password.
func (s *Service) ResetPassword(ctx context.Context, username, answer, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: newPassword", ErrMissingFields)
	}

	a, err := s.repo.GetByUsernameWithSecrets(ctx, username)
	if err != nil {
		return err
	}
	if a.SecurityAnswerHash == "" {
		return ErrWrongSecurityAnswer
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(a.SecurityAnswerHash), []byte(strings.ToLower(answer)),
	); err != nil {
		return ErrWrongSecurityAnswer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, a.ID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("password reset", zap.String("account_id", a.ID.String()))
	return nil
}

// GetOrCreateFromGoogle retrieves the account linked to a Google identity,
// creating a pending student without a local password on first sign-in.
// Returns the account and true if newly created.
func (s *Service) GetOrCreateFromGoogle(ctx context.Context, googleID, email, name string) (*Account, bool, error) {
	a, err := s.repo.GetByGoogleID(ctx, googleID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("lookup google account: %w", err)
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("generate username: %w", err)
	}
	if name == "" {
		name = username
	}

	a = &Account{
		Username: username,
		GoogleID: &googleID,
		Name:     name,
		Role:     RoleStudent,
		Status:   StatusPending,
	}
	if email != "" {
		a.Email = &email
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("create google account: %w", err)
	}
	return a, true, nil
}

// GetByID retrieves an account by ID without credential hashes.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername retrieves an account by username without credential hashes.
func (s *Service) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

// UpdatePhone writes only the phone column. The credential hashes are never
// read or rewritten here — field-scoped updates replace the original's
// dirty-tracking hash guard.
func (s *Service) UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error {
	return s.repo.SetPhone(ctx, id, phone)
}

// CompleteEnrollment fills in the profile (and phone when provided) for an
// account created via Google sign-in. Status stays pending until an admin
// approves.
func (s *Service) CompleteEnrollment(ctx context.Context, id uuid.UUID, phone string, p Profile) error {
	if p.ExperienceLevel != "" && !ValidExperienceLevel(p.ExperienceLevel) {
		return fmt.Errorf("%w: experience level", ErrInvalidInput)
	}
	if err := s.repo.UpdateProfile(ctx, id, p); err != nil {
		return err
	}
	if phone != "" {
		if err := s.repo.SetPhone(ctx, id, phone); err != nil {
			return err
		}
	}
	return nil
}

// ─── Admin operations ────────────────────────────────────────────────────────

// SetStatus moves an account to any status. No forward-only constraint: an
// admin may re-open a rejected account or suspend an active one.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Account, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// SetRole changes an account's role.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes an account and, best effort, everything it authored.
// The cascade is a sequence of independent deletes with no surrounding
// transaction: a failure partway is reported to the caller but earlier
// deletions are not rolled back.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if s.drawings != nil {
		if err := s.drawings.DeleteByAccount(ctx, id); err != nil {
			return fmt.Errorf("delete account drawings: %w", err)
		}
	}
	if s.comments != nil {
		if err := s.comments.DeleteByAccount(ctx, id); err != nil {
			return fmt.Errorf("delete account comments: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("account deleted", zap.String("account_id", id.String()))
	return nil
}

// List returns a page of accounts plus the total count.
func (s *Service) List(ctx context.Context, page, limit int) ([]*Account, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	as, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return as, total, nil
}

// ListStudents returns every student account, newest first.
func (s *Service) ListStudents(ctx context.Context) ([]*Account, error) {
	return s.repo.ListStudents(ctx)
}

// Counts returns total and pending account counts for the admin dashboard.
func (s *Service) Counts(ctx context.Context) (total, pending int, err error) {
	total, err = s.repo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	pending, err = s.repo.CountByStatus(ctx, StatusPending)
	if err != nil {
		return 0, 0, err
	}
	return total, pending, nil
}

// uniqueUsername derives a slug from the email local part and appends a
// numeric suffix until it is free.
func (s *Service) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := slugifyEmail(email)
	if base == "" {
		base = "student"
	}

	if _, err := s.repo.GetByUsername(ctx, base); errors.Is(err, ErrNotFound) {
		return base, nil
	}
	for i := 2; i <= 9999; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if _, err := s.repo.GetByUsername(ctx, candidate); errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate unique username for %q", email)
}

// slugifyEmail converts "alice@example.com" → "alice".
func slugifyEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}
