// Package retry provides bounded exponential backoff for remote calls.
// Transient transport failures and a fixed set of upstream status codes are
// retried; everything else propagates on the first attempt.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"
)

type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// StatusCoder is implemented by upstream errors that carry an HTTP status.
type StatusCoder interface {
	error
	HTTPStatus() int
}

var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Retryable classifies an error as transient. Upstream status errors are
// retried only for the statuses above; 4xx authentication and validation
// failures always propagate immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return retryableStatuses[sc.HTTPStatus()]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"no such host",
		"network is unreachable",
		"temporary failure in name resolution",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before the attempt following attempt (1-based),
// capped at MaxDelay and optionally jittered by ±25%.
func Delay(attempt int, cfg Config) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt-1))
	if capped := float64(cfg.MaxDelay); d > capped {
		d = capped
	}
	if cfg.Jitter {
		d += (rand.Float64()*2 - 1) * d * 0.25
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}

// Do runs fn up to cfg.MaxAttempts times, sleeping Delay between attempts.
// The last error is returned without further delay once attempts are
// exhausted; a non-retryable error is returned from the failing attempt.
func Do(ctx context.Context, logger *slog.Logger, cfg Config, op string, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 && logger != nil {
				logger.Info("retry succeeded", "op", op, "attempt", attempt)
			}
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := Delay(attempt, cfg)
		if logger != nil {
			logger.Warn("retrying after failure",
				"op", op,
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
