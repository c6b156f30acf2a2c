package platform

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/gps"
)

// connectWithRetry attempts to connect with exponential backoff.
// Starts at base, doubles each attempt up to 60 times base, logs each of
// the first maxAttempts failures then continues quietly at max interval
// until ctx is done. It reports whether the receiver connected.
func connectWithRetry(ctx context.Context, logger *zap.Logger, r gps.Receiver, maxAttempts int, base time.Duration) bool {
	delay := base
	maxDelay := 60 * base
	attempt := 0

	for {
		if ctx.Err() != nil {
			return false
		}

		err := r.Connect()
		if err == nil {
			logger.Info("receiver connected", zap.String("receiver", r.Name()), zap.Int("attempt", attempt+1))
			return true
		}

		attempt++
		if attempt <= maxAttempts {
			logger.Warn("receiver connect failed",
				zap.String("receiver", r.Name()),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("retry_in", delay),
				zap.Error(err))
		} else {
			logger.Debug("receiver connect failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
