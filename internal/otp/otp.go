package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// codeSpan covers the 5-digit range [10000, 99999].
	codeMin  = 10000
	codeSpan = 90000

	// TTL is how long a challenge stays valid after issue.
	TTL = 10 * time.Minute

	// MaxAttempts is the verification attempt ceiling per challenge.
	MaxAttempts = 5
)

var (
	// ErrExpired means no challenge is outstanding or its window has passed.
	ErrExpired = errors.New("otp expired")
	// ErrAttemptsExhausted means the attempt ceiling was reached.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
	// ErrMismatch means the submitted code does not match.
	ErrMismatch = errors.New("otp mismatch")
)

// Challenge is an outstanding one-time code. Attempts counts failed
// verifications against this code; reissuing a code resets it.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// Generate draws a 5-digit code from crypto/rand and stamps it with the
// standard TTL.
func Generate(now time.Time) (Challenge, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return Challenge{}, fmt.Errorf("generate otp: %w", err)
	}

	return Challenge{
		Code:      fmt.Sprintf("%d", codeMin+n.Int64()),
		ExpiresAt: now.Add(TTL),
	}, nil
}

// Check validates a submitted code against a challenge. The attempt ceiling
// is checked before expiry so an exhausted challenge always reports
// ErrAttemptsExhausted, and a mismatch is reported without mutating the
// challenge; the caller persists the attempt increment atomically.
func Check(ch Challenge, submitted string, now time.Time) error {
	if ch.Attempts >= MaxAttempts {
		return ErrAttemptsExhausted
	}
	if ch.Code == "" || !now.Before(ch.ExpiresAt) {
		return ErrExpired
	}
	if ch.Code != submitted {
		return ErrMismatch
	}
	return nil
}
