package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, password_hash, email, first_name, last_name, is_staff, created_at`

// PgUserRepository implements UserRepository using pgx.
type PgUserRepository struct{}

// NewPgUserRepository creates a new PgUserRepository.
func NewPgUserRepository() *PgUserRepository {
	return &PgUserRepository{}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email,
		&u.FirstName, &u.LastName, &u.IsStaff, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByUsername returns a user by username, or nil if not found.
func (r *PgUserRepository) FindByUsername(ctx context.Context, db DBTX, username string) (*domain.User, error) {
	return scanUser(db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *PgUserRepository) LockForUpdate(ctx context.Context, db DBTX, id int64) error {
	var locked int64
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound("user", strconv.FormatInt(id, 10))
	}
	return err
}

// Create inserts a new user and sets its ID and CreatedAt.
func (r *PgUserRepository) Create(ctx context.Context, db DBTX, user *domain.User) error {
	err := db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email, first_name, last_name, is_staff)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		user.Username, user.PasswordHash, user.Email, user.FirstName, user.LastName, user.IsStaff,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict("username already registered")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of upd.
func (r *PgUserRepository) UpdateProfile(ctx context.Context, db DBTX, id int64, upd domain.ProfileUpdate) (*domain.User, error) {
	u, err := scanUser(db.QueryRow(ctx,
		`UPDATE users SET
		   email = COALESCE($2, email),
		   first_name = COALESCE($3, first_name),
		   last_name = COALESCE($4, last_name),
		   password_hash = COALESCE($5, password_hash)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, upd.Email, upd.FirstName, upd.LastName, upd.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound("user", strconv.FormatInt(id, 10))
	}
	return u, nil
}
