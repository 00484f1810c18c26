package drawings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize caps uploaded drawing images at 5 MiB.
const MaxImageSize = 5 << 20

// storeTimeout bounds every object-store call so a wedged backend surfaces
// as a retryable failure instead of hanging the request.
const storeTimeout = 15 * time.Second

// ErrNotOwner is returned when an account mutates a drawing it did not post.
var ErrNotOwner = errors.New("not authorized to modify this drawing")

// ErrNotAnImage is returned when an upload is not an image/* content type.
var ErrNotAnImage = errors.New("uploaded file is not an image")

// ErrImageTooLarge is returned when an upload exceeds MaxImageSize.
var ErrImageTooLarge = errors.New("image exceeds the 5 MiB limit")

// ErrRatingOutOfRange is returned for rating values outside 1..5.
var ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")

// drawingRepo is the storage interface consumed by Service.
type drawingRepo interface {
	Create(ctx context.Context, d *Drawing) error
	GetByID(ctx context.Context, id uuid.UUID) (*Drawing, error)
	List(ctx context.Context) ([]*Drawing, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Drawing, error)
	Update(ctx context.Context, id uuid.UUID, title, description string) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpsertRating(ctx context.Context, drawingID, accountID uuid.UUID, value int) error
	Count(ctx context.Context) (int, error)
}

// CommentPurger removes every comment on a drawing. Satisfied by
// *comments.Service.
type CommentPurger interface {
	DeleteByDrawing(ctx context.Context, drawingID uuid.UUID) error
}

// Service implements business logic for drawing posts, their images, and
// ratings.
type Service struct {
	repo     drawingRepo
	images   storage.ObjectStorage
	comments CommentPurger
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo drawingRepo, images storage.ObjectStorage, logger *zap.Logger) *Service {
	return &Service{repo: repo, images: images, logger: logger}
}

// SetCommentPurger wires the collaborator used when a drawing is deleted.
func (s *Service) SetCommentPurger(c CommentPurger) {
	s.comments = c
}

// CreateInput is the payload for Create.
type CreateInput struct {
	AccountID   uuid.UUID
	Title       string
	Description string
	Filename    string
	ContentType string
	Size        int64
	Image       io.Reader
}

// Create uploads the image to the object store and persists the drawing.
// If the database write fails the uploaded image is removed again, best
// effort.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Drawing, error) {
	if in.Image == nil {
		return nil, ErrNotAnImage
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return nil, ErrNotAnImage
	}
	if in.Size > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	key := uuid.New().String() + strings.ToLower(path.Ext(in.Filename))

	putCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := s.images.Put(putCtx, key, in.Image, in.Size, in.ContentType); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	d := &Drawing{
		AccountID:   in.AccountID,
		Title:       in.Title,
		Description: in.Description,
		ImageKey:    key,
		ImageURL:    s.images.URL(key),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		s.removeImage(key)
		return nil, err
	}
	return d, nil
}

// Get retrieves a drawing with its author projection.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Drawing, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether a drawing exists, returning ErrNotFound otherwise.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}

// List returns all drawings, newest first.
func (s *Service) List(ctx context.Context) ([]*Drawing, error) {
	return s.repo.List(ctx)
}

// ListByAccount returns the drawings posted by one account, newest first.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Drawing, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Update rewrites the title and description. Only the posting account may
// update a drawing.
func (s *Service) Update(ctx context.Context, id, requesterID uuid.UUID, title, description string) (*Drawing, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.AccountID != requesterID {
		return nil, ErrNotOwner
	}
	if err := s.repo.Update(ctx, id, title, description); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a drawing, its stored image, and its comments. The posting
// account or an admin may delete; the cascade is sequential and
// non-transactional.
func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && d.AccountID != requesterID {
		return ErrNotOwner
	}
	return s.delete(ctx, d)
}

// Rate records value as requesterID's rating for the drawing, replacing any
// earlier rating, and refreshes the cached average.
func (s *Service) Rate(ctx context.Context, id, requesterID uuid.UUID, value int) (*Drawing, error) {
	if value < 1 || value > 5 {
		return nil, ErrRatingOutOfRange
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertRating(ctx, id, requesterID, value); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// DeleteByAccount removes every drawing an account posted, including images
// and comments. Used by the account-deletion cascade.
func (s *Service) DeleteByAccount(ctx context.Context, accountID uuid.UUID) error {
	ds, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for _, d := range ds {
		if err := s.delete(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the total number of drawings.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// delete removes the image (best effort), the comments, then the row.
func (s *Service) delete(ctx context.Context, d *Drawing) error {
	if d.ImageKey != "" {
		s.removeImage(d.ImageKey)
	}
	if s.comments != nil {
		if err := s.comments.DeleteByDrawing(ctx, d.ID); err != nil {
			return fmt.Errorf("delete drawing comments: %w", err)
		}
	}
	return s.repo.Delete(ctx, d.ID)
}

// removeImage deletes an object-store image, logging rather than surfacing
// failures: an orphaned blob is preferable to a failed user-facing delete.
func (s *Service) removeImage(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("remove stored image", zap.String("key", key), zap.Error(err))
	}
}
