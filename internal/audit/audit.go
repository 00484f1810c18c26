// Package audit records administrative and security-relevant activity.
// Writes are append-only and best effort: a failed insert is logged and
// swallowed so it can never fail the request that triggered it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a single activity record.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
	Action    string     `json:"action"`
	Details   string     `json:"details,omitempty"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Recorder is what callers depend on to emit audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}
