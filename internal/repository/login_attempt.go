package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/greg5320/mappool/internal/domain"
)

type loginAttemptRepo struct{}

// NewPgLoginAttemptRepository returns a pgx-backed LoginAttemptRepository.
func NewPgLoginAttemptRepository() LoginAttemptRepository {
	return &loginAttemptRepo{}
}

func (r *loginAttemptRepo) Record(ctx context.Context, db DBTX, a domain.LoginAttempt) error {
	_, err := db.Exec(ctx, `
		INSERT INTO login_attempts (username, ip_address, success)
		VALUES ($1, $2, $3)`,
		a.Username, a.IPAddress, a.Success)
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}

func (r *loginAttemptRepo) CountFailuresSince(ctx context.Context, db DBTX, username string, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE username = $1 AND success = false AND created_at > $2`,
		username, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}
	return count, nil
}
