// Package countdown renders the time a note has left.
package countdown

import (
	"context"
	"fmt"
	"time"
)

const DefaultInterval = time.Minute

// FormatTimeLeft renders d as "Xh Ym", "Ym" or "Expired". Partial minutes
// are truncated.
func FormatTimeLeft(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Run calls fn with the formatted time left immediately and then on every
// tick. It returns nil once "Expired" has been delivered, or ctx.Err() when
// ctx is cancelled first.
func Run(ctx context.Context, expiresAt time.Time, every time.Duration, now func() time.Time, fn func(string)) error {
	if every <= 0 {
		every = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}

	emit := func() bool {
		left := expiresAt.Sub(now())
		fn(FormatTimeLeft(left))
		return left <= 0
	}
	if emit() {
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if emit() {
				return nil
			}
		}
	}
}
