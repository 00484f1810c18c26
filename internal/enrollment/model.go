// Package enrollment handles standalone class-enrollment applications:
// prospective students apply with contact details and experience level,
// and admins approve or reject the application.
package enrollment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is one enrollment request.
type Application struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	ExperienceLevel string    `json:"experienceLevel,omitempty"`
	Interests       []string  `json:"interests,omitempty"`
	Message         string    `json:"message,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
