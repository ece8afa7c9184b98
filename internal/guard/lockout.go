// Package guard blocks repeated failed logins.
package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout counts failed logins per username inside a sliding window.
type Lockout struct {
	db       repository.DBTX
	attempts repository.LoginAttemptRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewLockout creates a Lockout. now defaults to time.Now.
func NewLockout(db repository.DBTX, attempts repository.LoginAttemptRepository, logger *slog.Logger, now func() time.Time) *Lockout {
	if now == nil {
		now = time.Now
	}
	return &Lockout{db: db, attempts: attempts, logger: logger, now: now}
}

// RecordAttempt stores one login attempt. Failures to record are logged only.
func (l *Lockout) RecordAttempt(ctx context.Context, username, ip string, success bool) {
	err := l.attempts.Record(ctx, l.db, domain.LoginAttempt{
		Username:  username,
		IPAddress: ip,
		Success:   success,
		CreatedAt: l.now(),
	})
	if err != nil {
		l.logger.Warn("record login attempt failed", "username", username, "error", err)
	}
}

// CheckLocked returns ErrAccountLocked once username has MaxAttempts failures
// inside LockoutWindow. A lookup error fails open.
func (l *Lockout) CheckLocked(ctx context.Context, username string) error {
	count, err := l.attempts.CountFailuresSince(ctx, l.db, username, l.now().Add(-LockoutWindow))
	if err != nil {
		l.logger.Warn("lockout lookup failed", "username", username, "error", err)
		return nil
	}
	if count >= MaxAttempts {
		return domain.ErrAccountLocked("too many failed login attempts, try again later")
	}
	return nil
}
