package drawings

import (
	"time"

	"github.com/google/uuid"
)

// Drawing is an image-backed post by a student or admin.
type Drawing struct {
	ID            uuid.UUID `json:"id"             db:"id"`
	AccountID     uuid.UUID `json:"account_id"     db:"account_id"`
	Title         string    `json:"title"          db:"title"`
	Description   string    `json:"description"    db:"description"`
	ImageKey      string    `json:"-"              db:"image_key"`
	ImageURL      string    `json:"image_url"      db:"image_url"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	RatingCount   int       `json:"rating_count"   db:"rating_count"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`

	// Author is the public projection of the posting account, filled on reads.
	Author *Author `json:"author,omitempty" db:"-"`
}

// Author is the subset of account fields shown next to a drawing.
type Author struct {
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
}

// Rating is one account's 1–5 score for a drawing. An account rates a
// drawing at most once; re-rating replaces the previous value.
type Rating struct {
	DrawingID uuid.UUID `json:"drawing_id" db:"drawing_id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Value     int       `json:"value"      db:"value"`
}
