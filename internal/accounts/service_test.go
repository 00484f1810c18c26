package accounts_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/atelierhq/atelier/internal/accounts"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── Stub repo ─────────────────────────────────────────────────────────────

type stubRepo struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*accounts.Account
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
	byGoogle   map[string]uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		byID:       make(map[uuid.UUID]*accounts.Account),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
		byGoogle:   make(map[string]uuid.UUID),
	}
}

func (r *stubRepo) Create(_ context.Context, a *accounts.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUsername[a.Username]; ok {
		return accounts.ErrDuplicateUsername
	}
	if a.Email != nil {
		if _, ok := r.byEmail[*a.Email]; ok {
			return accounts.ErrDuplicateEmail
		}
	}
	a.ID = uuid.New()
	cp := *a
	r.byID[a.ID] = &cp
	r.byUsername[a.Username] = a.ID
	if a.Email != nil {
		r.byEmail[*a.Email] = a.ID
	}
	if a.GoogleID != nil {
		r.byGoogle[*a.GoogleID] = a.ID
	}
	return nil
}

func (r *stubRepo) get(id uuid.UUID, secrets bool) (*accounts.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	cp := *a
	if !secrets {
		cp.PasswordHash = ""
		cp.SecurityAnswerHash = ""
	}
	return &cp, nil
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id, false)
}

func (r *stubRepo) GetByUsername(_ context.Context, username string) (*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return r.get(id, false)
}

func (r *stubRepo) GetByGoogleID(_ context.Context, googleID string) (*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byGoogle[googleID]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return r.get(id, false)
}

func (r *stubRepo) GetByUsernameWithSecrets(_ context.Context, username string) (*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return r.get(id, true)
}

func (r *stubRepo) GetByEmailWithSecrets(_ context.Context, email string) (*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return r.get(id, true)
}

func (r *stubRepo) SetStatus(_ context.Context, id uuid.UUID, status accounts.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *stubRepo) SetRole(_ context.Context, id uuid.UUID, role accounts.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Role = role
	return nil
}

func (r *stubRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *stubRepo) SetPhone(_ context.Context, id uuid.UUID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Phone = phone
	return nil
}

func (r *stubRepo) UpdateProfile(_ context.Context, id uuid.UUID, p accounts.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Profile = p
	return nil
}

func (r *stubRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	delete(r.byUsername, a.Username)
	if a.Email != nil {
		delete(r.byEmail, *a.Email)
	}
	delete(r.byID, id)
	return nil
}

func (r *stubRepo) List(_ context.Context, limit, offset int) ([]*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*accounts.Account
	for _, a := range r.byID {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *stubRepo) ListStudents(_ context.Context) ([]*accounts.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*accounts.Account
	for _, a := range r.byID {
		if a.Role == accounts.RoleStudent {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func (r *stubRepo) CountByStatus(_ context.Context, status accounts.Status) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.byID {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────

func newService(t *testing.T) (*accounts.Service, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	return accounts.NewService(repo, zap.NewNop()), repo
}

func register(t *testing.T, svc *accounts.Service, username, email string) *accounts.Account {
	t.Helper()
	a, err := svc.Register(context.Background(), accounts.RegisterInput{
		Username:         username,
		Password:         "hunter22",
		Email:            email,
		Name:             "Test Student",
		SecurityQuestion: accounts.SecurityQuestions[1],
		SecurityAnswer:   "Fluffy",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return a
}

// ── Registration ──────────────────────────────────────────────────────────

func TestRegisterDefaultsToPendingStudent(t *testing.T) {
	svc, _ := newService(t)
	a := register(t, svc, "ines", "ines@example.com")

	if a.Role != accounts.RoleStudent {
		t.Errorf("role = %q, want student", a.Role)
	}
	if a.Status != accounts.StatusPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
	if a.PasswordHash == "" || a.PasswordHash == "hunter22" {
		t.Error("password was not hashed before persisting")
	}
	if a.SecurityAnswerHash == "Fluffy" || a.SecurityAnswerHash == "" {
		t.Error("security answer was not hashed before persisting")
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Register(context.Background(), accounts.RegisterInput{
		Username: "ines",
		Password: "hunter22",
	})
	if !errors.Is(err, accounts.ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestRegisterRejectsUnknownSecurityQuestion(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Register(context.Background(), accounts.RegisterInput{
		Username:         "ines",
		Password:         "hunter22",
		Name:             "Ines",
		SecurityQuestion: "What is the answer to everything?",
		SecurityAnswer:   "42",
	})
	if !errors.Is(err, accounts.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegisterDuplicateConflictsNameTheField(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "ines@example.com")

	_, err := svc.Register(context.Background(), accounts.RegisterInput{
		Username:         "ines",
		Password:         "x",
		Name:             "Other",
		SecurityQuestion: accounts.SecurityQuestions[0],
		SecurityAnswer:   "a",
	})
	if !errors.Is(err, accounts.ErrDuplicateUsername) {
		t.Errorf("same username: err = %v, want ErrDuplicateUsername", err)
	}

	_, err = svc.Register(context.Background(), accounts.RegisterInput{
		Username:         "other",
		Password:         "x",
		Email:            "ines@example.com",
		Name:             "Other",
		SecurityQuestion: accounts.SecurityQuestions[0],
		SecurityAnswer:   "a",
	})
	if !errors.Is(err, accounts.ErrDuplicateEmail) {
		t.Errorf("same email: err = %v, want ErrDuplicateEmail", err)
	}
}

// ── Login ─────────────────────────────────────────────────────────────────

func TestLoginSucceedsAndStripsHashes(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "")

	a, err := svc.Login(context.Background(), "ines", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if a.PasswordHash != "" || a.SecurityAnswerHash != "" {
		t.Error("login returned an account with credential hashes populated")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "")

	_, errUnknown := svc.Login(context.Background(), "nobody", "hunter22")
	_, errWrongPw := svc.Login(context.Background(), "ines", "wrong")

	if !errors.Is(errUnknown, accounts.ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v", errUnknown)
	}
	if !errors.Is(errWrongPw, accounts.ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", errWrongPw)
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Errorf("error messages differ: %q vs %q", errUnknown, errWrongPw)
	}
}

// ── Admin login ───────────────────────────────────────────────────────────

func TestAdminLoginPromotesPendingAdmin(t *testing.T) {
	svc, repo := newService(t)
	a := register(t, svc, "boss", "boss@example.com")
	if _, err := svc.SetRole(context.Background(), a.ID, accounts.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}

	got, err := svc.AdminLogin(context.Background(), "boss@example.com", "hunter22")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if got.Status != accounts.StatusActive {
		t.Errorf("status after login = %q, want active", got.Status)
	}

	stored, _ := repo.GetByID(context.Background(), a.ID)
	if stored.Status != accounts.StatusActive {
		t.Error("promotion was not persisted")
	}
}

func TestAdminLoginRejectsNonAdmin(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "ines@example.com")

	_, err := svc.AdminLogin(context.Background(), "ines@example.com", "hunter22")
	if !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

// ── Recovery flow ─────────────────────────────────────────────────────────

func TestSecurityQuestionLookup(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "")

	q, err := svc.SecurityQuestion(context.Background(), "ines")
	if err != nil {
		t.Fatalf("security question: %v", err)
	}
	if q != accounts.SecurityQuestions[1] {
		t.Errorf("question = %q", q)
	}

	if _, err := svc.SecurityQuestion(context.Background(), "nobody"); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestResetPasswordAnswerIsCaseInsensitive(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "") // answer stored as "Fluffy"

	for _, answer := range []string{"fluffy", "FLUFFY", "Fluffy"} {
		if err := svc.ResetPassword(context.Background(), "ines", answer, "newpass1"); err != nil {
			t.Errorf("reset with answer %q: %v", answer, err)
		}
	}
}

func TestResetPasswordFlow(t *testing.T) {
	svc, _ := newService(t)
	register(t, svc, "ines", "")

	err := svc.ResetPassword(context.Background(), "ines", "wrong answer", "newpass1")
	if !errors.Is(err, accounts.ErrWrongSecurityAnswer) {
		t.Fatalf("wrong answer: err = %v", err)
	}

	if err := svc.ResetPassword(context.Background(), "ines", "fluffy", "newpass1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := svc.Login(context.Background(), "ines", "hunter22"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Error("old password still accepted after reset")
	}
	if _, err := svc.Login(context.Background(), "ines", "newpass1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

// ── Hash guard ────────────────────────────────────────────────────────────

func TestUpdatePhoneDoesNotTouchPasswordHash(t *testing.T) {
	svc, repo := newService(t)
	a := register(t, svc, "ines", "")

	before, _ := repo.GetByUsernameWithSecrets(context.Background(), "ines")

	if err := svc.UpdatePhone(context.Background(), a.ID, "+34 600 000 000"); err != nil {
		t.Fatalf("update phone: %v", err)
	}

	after, _ := repo.GetByUsernameWithSecrets(context.Background(), "ines")
	if after.Phone != "+34 600 000 000" {
		t.Errorf("phone = %q", after.Phone)
	}
	if after.PasswordHash != before.PasswordHash {
		t.Error("password hash changed on a phone-only update")
	}
	if after.SecurityAnswerHash != before.SecurityAnswerHash {
		t.Error("security answer hash changed on a phone-only update")
	}
}

// ── Google sign-in ────────────────────────────────────────────────────────

func TestGetOrCreateFromGoogle(t *testing.T) {
	svc, _ := newService(t)

	a, created, err := svc.GetOrCreateFromGoogle(context.Background(), "g-123", "pia@example.com", "Pia")
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	if !created {
		t.Error("first sign-in did not create an account")
	}
	if a.Status != accounts.StatusPending || a.Role != accounts.RoleStudent {
		t.Errorf("new google account is %s/%s, want student/pending", a.Role, a.Status)
	}
	if a.HasLocalPassword() {
		t.Error("google account has a local password")
	}
	if a.Username != "pia" {
		t.Errorf("username = %q, want slug of email local part", a.Username)
	}

	again, created, err := svc.GetOrCreateFromGoogle(context.Background(), "g-123", "pia@example.com", "Pia")
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if created || again.ID != a.ID {
		t.Error("second sign-in did not resolve to the same account")
	}
}

// ── Delete cascade ────────────────────────────────────────────────────────

type recordingPurger struct {
	calls []uuid.UUID
	err   error
}

func (p *recordingPurger) DeleteByAccount(_ context.Context, id uuid.UUID) error {
	p.calls = append(p.calls, id)
	return p.err
}

func TestDeleteCascadesToDrawingsAndComments(t *testing.T) {
	svc, repo := newService(t)
	a := register(t, svc, "ines", "")

	dp := &recordingPurger{}
	cp := &recordingPurger{}
	svc.SetCascade(dp, cp)

	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(dp.calls) != 1 || len(cp.calls) != 1 {
		t.Errorf("purger calls: drawings=%d comments=%d, want 1 each", len(dp.calls), len(cp.calls))
	}
	if _, err := repo.GetByID(context.Background(), a.ID); !errors.Is(err, accounts.ErrNotFound) {
		t.Error("account row still present after delete")
	}
}

func TestDeleteReportsPartialFailureWithoutRollback(t *testing.T) {
	svc, repo := newService(t)
	a := register(t, svc, "ines", "")

	dp := &recordingPurger{}
	cp := &recordingPurger{err: errors.New("comment store down")}
	svc.SetCascade(dp, cp)

	if err := svc.Delete(context.Background(), a.ID); err == nil {
		t.Fatal("expected cascade failure to surface")
	}
	// Drawings were purged before the failure; the account row survives.
	if len(dp.calls) != 1 {
		t.Error("drawing purge did not run before the failure")
	}
	if _, err := repo.GetByID(context.Background(), a.ID); err != nil {
		t.Error("account row should remain after a failed cascade")
	}
}
