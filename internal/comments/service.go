package comments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyContent is returned when a comment has no content after trimming.
var ErrEmptyContent = errors.New("comment content is required")

// ErrNotOwner is returned when an account mutates a comment it did not write.
var ErrNotOwner = errors.New("not authorized to modify this comment")

// commentRepo is the storage interface consumed by Service.
type commentRepo interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListByDrawing(ctx context.Context, drawingID uuid.UUID) ([]*Comment, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Comment, error)
	Update(ctx context.Context, id uuid.UUID, content string) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByDrawing(ctx context.Context, drawingID uuid.UUID) error
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// drawingChecker verifies that a drawing exists before a comment is attached.
// Satisfied by *drawings.Service.
type drawingChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// Service implements business logic for comments on drawings.
type Service struct {
	repo     commentRepo
	drawings drawingChecker
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo commentRepo, drawings drawingChecker, logger *zap.Logger) *Service {
	return &Service{repo: repo, drawings: drawings, logger: logger}
}

// Add attaches a comment to a drawing. The drawing must exist and the
// content must be non-empty after trimming.
func (s *Service) Add(ctx context.Context, drawingID, accountID uuid.UUID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.drawings != nil {
		if err := s.drawings.Exists(ctx, drawingID); err != nil {
			return nil, err
		}
	}

	c := &Comment{
		DrawingID: drawingID,
		AccountID: accountID,
		Content:   content,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, c.ID)
}

// ListByDrawing returns a drawing's comments, newest first.
func (s *Service) ListByDrawing(ctx context.Context, drawingID uuid.UUID) ([]*Comment, error) {
	return s.repo.ListByDrawing(ctx, drawingID)
}

// ListByAccount returns an account's comments, newest first.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Comment, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Update rewrites a comment's content. Only the author may update.
func (s *Service) Update(ctx context.Context, id, requesterID uuid.UUID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AccountID != requesterID {
		return nil, ErrNotOwner
	}
	if err := s.repo.Update(ctx, id, content); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a comment. The author or an admin may delete.
func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && c.AccountID != requesterID {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("comment deleted",
		zap.String("comment_id", id.String()),
		zap.Bool("by_admin", isAdmin),
	)
	return nil
}

// DeleteByDrawing removes every comment on a drawing. Used by the
// drawing-deletion cascade.
func (s *Service) DeleteByDrawing(ctx context.Context, drawingID uuid.UUID) error {
	return s.repo.DeleteByDrawing(ctx, drawingID)
}

// DeleteByAccount removes every comment an account authored. Used by the
// account-deletion cascade.
func (s *Service) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.DeleteByAccount(ctx, accountID)
}

// Count returns the total number of comments.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
