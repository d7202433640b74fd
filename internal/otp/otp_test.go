package otp

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_CodeInRange(t *testing.T) {
	now := time.Now()
	for i := 0; i < 100; i++ {
		ch, err := Generate(now)
		require.NoError(t, err)

		require.Len(t, ch.Code, 5)
		code, err := strconv.Atoi(ch.Code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, code, 10000)
		assert.LessOrEqual(t, code, 99999)
		assert.Zero(t, ch.Attempts)
	}
}

func TestGenerate_Expiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch, err := Generate(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), ch.ExpiresAt)
}

func TestCheck(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ch := Challenge{Code: "12345", ExpiresAt: issued.Add(TTL)}

	tests := []struct {
		name      string
		challenge Challenge
		submitted string
		now       time.Time
		want      error
	}{
		{"correct code", ch, "12345", issued.Add(time.Minute), nil},
		{"wrong code", ch, "54321", issued.Add(time.Minute), ErrMismatch},
		{"just before expiry", ch, "12345", ch.ExpiresAt.Add(-time.Second), nil},
		{"exactly at expiry", ch, "12345", ch.ExpiresAt, ErrExpired},
		{"after expiry", ch, "12345", ch.ExpiresAt.Add(time.Hour), ErrExpired},
		{"no challenge outstanding", Challenge{}, "12345", issued, ErrExpired},
		{
			"attempts exhausted beats correct code",
			Challenge{Code: "12345", ExpiresAt: issued.Add(TTL), Attempts: 5},
			"12345", issued.Add(time.Minute), ErrAttemptsExhausted,
		},
		{
			"fifth attempt still allowed",
			Challenge{Code: "12345", ExpiresAt: issued.Add(TTL), Attempts: 4},
			"12345", issued.Add(time.Minute), nil,
		},
		{
			"exhausted even when expired",
			Challenge{Code: "12345", ExpiresAt: issued.Add(-time.Hour), Attempts: 5},
			"12345", issued, ErrAttemptsExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.challenge, tt.submitted, tt.now)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCooldown_NilClientAllows(t *testing.T) {
	var c *Cooldown
	assert.True(t, c.Allow(context.Background(), "registration", "a@x.com"))

	c = NewCooldown(nil, 0, nil)
	assert.True(t, c.Allow(context.Background(), "registration", "a@x.com"))
}
