package enrollment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/enrollment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── Stubs ─────────────────────────────────────────────────────────────────

type stubRepo struct {
	byID map[uuid.UUID]*enrollment.Application
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: make(map[uuid.UUID]*enrollment.Application)}
}

func (r *stubRepo) Create(_ context.Context, a *enrollment.Application) error {
	a.ID = uuid.New()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*enrollment.Application, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, enrollment.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *stubRepo) List(_ context.Context, status enrollment.Status) ([]*enrollment.Application, error) {
	var out []*enrollment.Application
	for _, a := range r.byID {
		if status == "" || a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubRepo) SetStatus(_ context.Context, id uuid.UUID, status enrollment.Status) error {
	a, ok := r.byID[id]
	if !ok {
		return enrollment.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *stubRepo) CountByStatus(_ context.Context, status enrollment.Status) (int, error) {
	n := 0
	for _, a := range r.byID {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

type recordingMail struct {
	mu   sync.Mutex
	sent []string // "to: subject"
}

func (m *recordingMail) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

func (m *recordingMail) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		if len(m.sent) >= n {
			out := append([]string(nil), m.sent...)
			m.mu.Unlock()
			return out
		}
		m.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d emails", n)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) Record(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, e.Action)
}

// ── Tests ─────────────────────────────────────────────────────────────────

func newService(t *testing.T) (*enrollment.Service, *stubRepo, *recordingMail, *recordingAudit) {
	t.Helper()
	repo := newStubRepo()
	mail := &recordingMail{}
	auditor := &recordingAudit{}
	svc := enrollment.NewService(repo, mail, auditor, "admin@atelier.test", zap.NewNop())
	return svc, repo, mail, auditor
}

func TestSubmitCreatesPendingAndAlertsAdmin(t *testing.T) {
	svc, _, mail, auditor := newService(t)

	app, err := svc.Submit(context.Background(), enrollment.SubmitInput{
		Name:            "  Mina Okafor ",
		Email:           "Mina@Example.COM",
		ExperienceLevel: "beginner",
		Interests:       []string{"watercolor"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.Status != enrollment.StatusPending {
		t.Errorf("status = %q, want pending", app.Status)
	}
	if app.Name != "Mina Okafor" || app.Email != "mina@example.com" {
		t.Errorf("fields not normalized: %q %q", app.Name, app.Email)
	}

	sent := mail.waitFor(t, 1)
	if sent[0] != "admin@atelier.test: New enrollment application" {
		t.Errorf("admin alert = %q", sent[0])
	}
	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	if len(auditor.actions) != 1 || auditor.actions[0] != "enrollment.submitted" {
		t.Errorf("audit actions = %v", auditor.actions)
	}
}

func TestSubmitRequiresNameAndEmail(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Submit(context.Background(), enrollment.SubmitInput{Name: "  ", Email: ""})
	if !errors.Is(err, enrollment.ErrMissingFields) {
		t.Errorf("err = %v, want ErrMissingFields", err)
	}
}

func TestUpdateStatusNotifiesApplicant(t *testing.T) {
	svc, _, mail, auditor := newService(t)
	app, _ := svc.Submit(context.Background(), enrollment.SubmitInput{
		Name: "Mina", Email: "mina@example.com",
	})
	mail.waitFor(t, 1)

	actor := uuid.New()
	got, err := svc.UpdateStatus(context.Background(), app.ID, enrollment.StatusApproved, actor)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got.Status != enrollment.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}

	sent := mail.waitFor(t, 2)
	found := false
	for _, s := range sent {
		if s == "mina@example.com: Your enrollment application" {
			found = true
		}
	}
	if !found {
		t.Errorf("applicant not notified: %v", sent)
	}
	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	if auditor.actions[len(auditor.actions)-1] != "enrollment.approved" {
		t.Errorf("audit actions = %v", auditor.actions)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newService(t)
	if _, err := svc.UpdateStatus(context.Background(), uuid.New(), "on-hold", uuid.New()); !errors.Is(err, enrollment.ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestCountPending(t *testing.T) {
	svc, _, mail, _ := newService(t)
	for i := 0; i < 3; i++ {
		svc.Submit(context.Background(), enrollment.SubmitInput{Name: "A", Email: "a@b.c"})
	}
	mail.waitFor(t, 3)
	n, err := svc.CountPending(context.Background())
	if err != nil || n != 3 {
		t.Errorf("pending = %d, %v; want 3", n, err)
	}
}
