package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Role is the privilege class of an account, independent of its status.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Status is the approval state of an account in its moderation lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

// ExperienceLevel describes a student's self-reported drawing experience.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// SecurityQuestions is the fixed set of recovery questions an account may
// choose from at registration.
var SecurityQuestions = []string{
	"What is your mother's maiden name?",
	"What was your first pet's name?",
	"What city were you born in?",
	"What is your favorite book?",
	"What was the name of your first school?",
}

// ValidSecurityQuestion reports whether q is one of SecurityQuestions.
func ValidSecurityQuestion(q string) bool {
	for _, s := range SecurityQuestions {
		if s == q {
			return true
		}
	}
	return false
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleStudent || r == RoleAdmin
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	return s == StatusPending || s == StatusActive || s == StatusRejected
}

// ValidExperienceLevel reports whether l is a known experience level.
func ValidExperienceLevel(l ExperienceLevel) bool {
	return l == ExperienceBeginner || l == ExperienceIntermediate || l == ExperienceAdvanced
}

// Account is a platform member: a student awaiting or holding approval, or an
// administrator. Both credential hashes are write-only: default repository
// reads leave them empty and JSON marshalling never includes them.
type Account struct {
	ID                 uuid.UUID `json:"id"                 db:"id"`
	Username           string    `json:"username"           db:"username"`
	Email              *string   `json:"email,omitempty"    db:"email"`
	Phone              string    `json:"phone,omitempty"    db:"phone"`
	PasswordHash       string    `json:"-"                  db:"password_hash"`
	GoogleID           *string   `json:"-"                  db:"google_id"`
	Name               string    `json:"name"               db:"name"`
	Role               Role      `json:"role"               db:"role"`
	Status             Status    `json:"status"             db:"status"`
	SecurityQuestion   string    `json:"-"                  db:"security_question"`
	SecurityAnswerHash string    `json:"-"                  db:"security_answer_hash"`
	Profile            Profile   `json:"profile"            db:"-"`
	CreatedAt          time.Time `json:"created_at"         db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"         db:"updated_at"`
}

// Profile holds the optional enrollment details a student fills in after
// registering (or after a first Google sign-in).
type Profile struct {
	ExperienceLevel ExperienceLevel `json:"experience_level,omitempty" db:"experience_level"`
	Interests       []string        `json:"interests,omitempty"        db:"interests"`
	Message         string          `json:"message,omitempty"          db:"message"`
}

// HasLocalPassword reports whether the account can authenticate with a
// username/password pair. Google-created accounts may not have one until
// they set a local password.
func (a *Account) HasLocalPassword() bool {
	return a.PasswordHash != ""
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
