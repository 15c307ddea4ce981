package utils

import "strings"

// NormalizeEmail canonicalizes an email for storage and lockout keying.
// Idempotent: normalizing an already-normalized email is a no-op.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
