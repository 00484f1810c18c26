package comments

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a remark left on a drawing.
type Comment struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	DrawingID uuid.UUID `json:"drawing_id" db:"drawing_id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Content   string    `json:"content"    db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Author is the public projection of the commenting account, filled on
	// reads.
	Author *Author `json:"author,omitempty" db:"-"`
}

// Author is the subset of account fields shown next to a comment.
type Author struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}
