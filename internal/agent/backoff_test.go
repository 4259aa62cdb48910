package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{60, 30 * time.Second},
		{1000, 30 * time.Second},
	}
	for _, tc := range tests {
		require.Equal(t, tc.expected, Backoff(tc.attempts, time.Second, 30*time.Second), "attempts=%d", tc.attempts)
	}
	require.Equal(t, 5*time.Second, Backoff(0, 10*time.Second, 5*time.Second))
	require.Zero(t, Backoff(3, 0, time.Second))
}

func TestWithJitterStaysInUpperHalf(t *testing.T) {
	d := 8 * time.Second
	require.Equal(t, 4*time.Second, withJitter(d, func(int64) int64 { return 0 }))
	require.Equal(t, d, withJitter(d, func(n int64) int64 { return n - 1 }))
}
