// Package email delivers the platform's transactional notifications:
// enrollment status updates to students and new-enrollment alerts to the
// admin inbox. Delivery is fire-and-forget — failures are logged by the
// caller, never surfaced to the requester.
package email

import "context"

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
