package agent

import "time"

// Backoff returns min(base * 2^attempts, max).
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempts; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// withJitter spreads d over [d/2, d] using r, which returns a value in [0, n).
func withJitter(d time.Duration, r func(n int64) int64) time.Duration {
	half := int64(d / 2)
	if half <= 0 {
		return d
	}
	return time.Duration(half + r(half+1))
}
