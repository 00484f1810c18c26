package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/accounts"
	"github.com/atelierhq/atelier/internal/api"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/identity"
)

// ── Stub account store ────────────────────────────────────────────────────

type stubAccountRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*accounts.Account
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[uuid.UUID]*accounts.Account)}
}

func (r *stubAccountRepo) Create(_ context.Context, a *accounts.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.byID {
		if ex.Username == a.Username {
			return accounts.ErrDuplicateUsername
		}
		if a.Email != nil && ex.Email != nil && *ex.Email == *a.Email {
			return accounts.ErrDuplicateEmail
		}
	}
	a.ID = uuid.New()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *stubAccountRepo) get(id uuid.UUID) (*accounts.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.get(id)
	if err != nil {
		return nil, err
	}
	a.PasswordHash, a.SecurityAnswerHash = "", ""
	return a, nil
}

func (r *stubAccountRepo) GetByUsername(_ context.Context, username string) (*accounts.Account, error) {
	a, err := r.GetByUsernameWithSecrets(context.Background(), username)
	if err != nil {
		return nil, err
	}
	a.PasswordHash, a.SecurityAnswerHash = "", ""
	return a, nil
}

func (r *stubAccountRepo) GetByGoogleID(_ context.Context, googleID string) (*accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.GoogleID != nil && *a.GoogleID == googleID {
			cp := *a
			cp.PasswordHash, cp.SecurityAnswerHash = "", ""
			return &cp, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (r *stubAccountRepo) GetByUsernameWithSecrets(_ context.Context, username string) (*accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (r *stubAccountRepo) GetByEmailWithSecrets(_ context.Context, email string) (*accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email != nil && *a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (r *stubAccountRepo) SetStatus(_ context.Context, id uuid.UUID, status accounts.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *stubAccountRepo) SetRole(_ context.Context, id uuid.UUID, role accounts.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Role = role
	return nil
}

func (r *stubAccountRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *stubAccountRepo) SetPhone(_ context.Context, id uuid.UUID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Phone = phone
	return nil
}

func (r *stubAccountRepo) UpdateProfile(_ context.Context, id uuid.UUID, p accounts.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Profile = p
	return nil
}

func (r *stubAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return accounts.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *stubAccountRepo) List(_ context.Context, limit, offset int) ([]*accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accounts.Account
	for _, a := range r.byID {
		cp := *a
		cp.PasswordHash, cp.SecurityAnswerHash = "", ""
		out = append(out, &cp)
	}
	return out, nil
}

func (r *stubAccountRepo) ListStudents(_ context.Context) ([]*accounts.Account, error) {
	return r.List(context.Background(), 0, 0)
}

func (r *stubAccountRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *stubAccountRepo) CountByStatus(_ context.Context, status accounts.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.byID {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

type noopAudit struct{}

func (noopAudit) Record(_ context.Context, _ audit.Entry) {}

// ── Test setup ────────────────────────────────────────────────────────────

func setupAuthRouter(t *testing.T) (*gin.Engine, *stubAccountRepo, *identity.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubAccountRepo()
	svc := accounts.NewService(repo, zap.NewNop())
	tokens := identity.NewTokenIssuer([]byte("test-secret"), "http://test")

	h := api.NewAuthHandler(svc, tokens, noopAudit{}, api.GoogleOAuthConfig{}, zap.NewNop())
	gate := identity.RequireAccount(tokens, svc)

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.Register(v1, gate)
	return r, repo, tokens
}

func postJSON(t *testing.T, router *gin.Engine, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const registerBody = `{
	"username": "mina",
	"password": "charcoal-and-ink",
	"email": "mina@example.com",
	"name": "Mina Okafor",
	"securityQuestion": "What was your first pet's name?",
	"securityAnswer": "Fluffy"
}`

// ── Tests ─────────────────────────────────────────────────────────────────

func TestRegister_201(t *testing.T) {
	router, _, tokens := setupAuthRouter(t)

	w := postJSON(t, router, "/api/v1/auth/register", registerBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token   string           `json:"token"`
		Account accounts.Account `json:"account"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Account.Status != accounts.StatusPending || resp.Account.Role != accounts.RoleStudent {
		t.Errorf("new account is %s/%s, want pending/student", resp.Account.Status, resp.Account.Role)
	}

	claims, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.AccountID != resp.Account.ID.String() {
		t.Errorf("token account = %s, body account = %s", claims.AccountID, resp.Account.ID)
	}
}

func TestRegister_DuplicateUsername_400(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	postJSON(t, router, "/api/v1/auth/register", registerBody, "")
	w := postJSON(t, router, "/api/v1/auth/register", registerBody, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "username") {
		t.Errorf("conflict does not name the field: %s", w.Body.String())
	}
}

func TestLogin_FailuresShareOneBody(t *testing.T) {
	router, _, _ := setupAuthRouter(t)
	postJSON(t, router, "/api/v1/auth/register", registerBody, "")

	wrongPass := postJSON(t, router, "/api/v1/auth/login",
		`{"username":"mina","password":"wrong"}`, "")
	noUser := postJSON(t, router, "/api/v1/auth/login",
		`{"username":"nobody","password":"wrong"}`, "")

	if wrongPass.Code != http.StatusUnauthorized || noUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPass.Code, noUser.Code)
	}
	if wrongPass.Body.String() != noUser.Body.String() {
		t.Errorf("failure bodies differ: %q vs %q", wrongPass.Body.String(), noUser.Body.String())
	}
}

func TestSecurityQuestionLookup(t *testing.T) {
	router, _, _ := setupAuthRouter(t)
	postJSON(t, router, "/api/v1/auth/register", registerBody, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/security-question/mina", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "first pet") {
		t.Errorf("lookup: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/security-question/nobody", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown username: expected 404, got %d", w.Code)
	}
}

func TestResetPassword_WrongAnswer_401(t *testing.T) {
	router, _, _ := setupAuthRouter(t)
	postJSON(t, router, "/api/v1/auth/register", registerBody, "")

	w := postJSON(t, router, "/api/v1/auth/reset-password",
		`{"username":"mina","securityAnswer":"Rex","newPassword":"new-pass-123"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResetPassword_ThenLoginWithNewPassword(t *testing.T) {
	router, _, _ := setupAuthRouter(t)
	postJSON(t, router, "/api/v1/auth/register", registerBody, "")

	// Answer compared case-insensitively.
	w := postJSON(t, router, "/api/v1/auth/reset-password",
		`{"username":"mina","securityAnswer":"FLUFFY","newPassword":"new-pass-123"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := postJSON(t, router, "/api/v1/auth/login",
		`{"username":"mina","password":"new-pass-123"}`, ""); w.Code != http.StatusOK {
		t.Errorf("login with new password: %d", w.Code)
	}
	if w := postJSON(t, router, "/api/v1/auth/login",
		`{"username":"mina","password":"charcoal-and-ink"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("login with old password: expected 401, got %d", w.Code)
	}
}

func TestMe_GateBlocksPendingThenAdmitsActive(t *testing.T) {
	router, repo, _ := setupAuthRouter(t)

	w := postJSON(t, router, "/api/v1/auth/register", registerBody, "")
	var resp struct {
		Token   string           `json:"token"`
		Account accounts.Account `json:"account"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	me := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := me(); code != http.StatusForbidden {
		t.Errorf("pending account: expected 403, got %d", code)
	}

	// Approval flips the very same token from rejected to accepted.
	if err := repo.SetStatus(context.Background(), resp.Account.ID, accounts.StatusActive); err != nil {
		t.Fatal(err)
	}
	if code := me(); code != http.StatusOK {
		t.Errorf("active account: expected 200, got %d", code)
	}
}

func TestMe_DeletedAccount_401(t *testing.T) {
	router, repo, _ := setupAuthRouter(t)

	w := postJSON(t, router, "/api/v1/auth/register", registerBody, "")
	var resp struct {
		Token   string           `json:"token"`
		Account accounts.Account `json:"account"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := repo.Delete(context.Background(), resp.Account.ID); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted account: expected 401, got %d", rec.Code)
	}
}
