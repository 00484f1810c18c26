package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/email"
)

var (
	ErrMissingFields = errors.New("name and email are required")
	ErrInvalidStatus = errors.New("invalid enrollment status")
)

const notifyTimeout = 10 * time.Second

type applicationRepo interface {
	Create(ctx context.Context, a *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	List(ctx context.Context, status Status) ([]*Application, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	CountByStatus(ctx context.Context, status Status) (int, error)
}

// Service implements the enrollment workflow.
type Service struct {
	repo       applicationRepo
	mail       email.Sender
	auditor    audit.Recorder
	adminInbox string
	logger     *zap.Logger
}

func NewService(repo applicationRepo, mail email.Sender, auditor audit.Recorder, adminInbox string, logger *zap.Logger) *Service {
	return &Service{repo: repo, mail: mail, auditor: auditor, adminInbox: adminInbox, logger: logger}
}

// SubmitInput carries a public enrollment application.
type SubmitInput struct {
	Name            string
	Email           string
	Phone           string
	ExperienceLevel string
	Interests       []string
	Message         string
}

// Submit records a new pending application and alerts the admin inbox.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Application, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return nil, ErrMissingFields
	}

	app := &Application{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           strings.TrimSpace(in.Phone),
		ExperienceLevel: in.ExperienceLevel,
		Interests:       in.Interests,
		Message:         strings.TrimSpace(in.Message),
		Status:          StatusPending,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:  "enrollment.submitted",
		Details: fmt.Sprintf("application %s from %s", app.ID, app.Email),
	})
	if s.adminInbox != "" {
		s.notify(s.adminInbox, "New enrollment application",
			fmt.Sprintf("%s (%s) applied to join the studio.", app.Name, app.Email))
	}
	return app, nil
}

// List returns applications, newest first. Empty status means all.
func (s *Service) List(ctx context.Context, status Status) ([]*Application, error) {
	if status != "" && !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status)
}

// UpdateStatus moves an application to the given status, records the
// decision, and emails the applicant in the background.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, actorID uuid.UUID) (*Application, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID: &actorID,
		Action:  "enrollment." + string(status),
		Details: fmt.Sprintf("application %s (%s)", app.ID, app.Email),
	})
	s.notify(app.Email, "Your enrollment application", statusBody(app))
	return app, nil
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, StatusPending)
}

// notify sends mail in the background; failures are logged only.
func (s *Service) notify(to, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.mail.Send(ctx, to, subject, body); err != nil {
			s.logger.Warn("enrollment email failed",
				zap.String("to", to),
				zap.Error(err))
		}
	}()
}

func statusBody(app *Application) string {
	switch app.Status {
	case StatusApproved:
		return fmt.Sprintf("Hi %s, your enrollment has been approved. Welcome to the studio!", app.Name)
	case StatusRejected:
		return fmt.Sprintf("Hi %s, unfortunately we can't offer you a place this term.", app.Name)
	default:
		return fmt.Sprintf("Hi %s, your enrollment application is under review.", app.Name)
	}
}
