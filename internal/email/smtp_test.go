package email

import (
	"strings"
	"testing"
)

func TestCompose_headersAndBody(t *testing.T) {
	s := NewSMTPSender("mail.example.com", 587, "atelier", "secret", "noreply@atelier.example.com")

	msg := string(s.compose("pia@example.com", "Enrollment received", "We got your application."))

	lines := strings.Split(msg, "\r\n")
	want := []string{
		"From: noreply@atelier.example.com",
		"To: pia@example.com",
		"Subject: Enrollment received",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"We got your application.",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), msg)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: expected %q, got %q", i, w, lines[i])
		}
	}
}
