package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
)

// Config controls how Do retries an operation.
type Config struct {
	MaxAttempts int
	// Backoff returns the sleep before the given retry attempt (1-based).
	Backoff func(attempt int) time.Duration
}

// DefaultConfig matches the store retry policy: three attempts with
// linear backoff (attempt * 1s).
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
}

// Do runs op, retrying transient storage errors with the default config.
// Non-transient errors propagate immediately.
func Do(ctx context.Context, op func() error) error {
	return DoWithConfig(ctx, DefaultConfig(), op)
}

// DoWithConfig runs op under cfg. Retries are synchronous and honor ctx
// cancellation between attempts.
func DoWithConfig(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultConfig().Backoff
	}

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		log.Warnf("[Retry] transient storage error (attempt %d/%d): %v", attempt, cfg.MaxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Backoff(attempt)):
		}
	}
	return err
}

// IsTransient reports whether err is a connection-class storage error
// worth retrying: dropped/refused connections and server-side shutdown
// or connection-pressure states. Everything else, including constraint
// violations, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1040, // too many connections
			1053, // server shutdown in progress
			1290: // read-only during failover
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// Driver errors that surface as plain strings.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "invalid connection")
}
