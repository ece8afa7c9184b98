package repository

import (
	"context"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DB is the handle services hold: plain queries plus transactions.
type DB interface {
	DBTX
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx DBTX) error) error
	Ping(ctx context.Context) error
}

// UserRepository provides access to users.
type UserRepository interface {
	// FindByUsername returns a user, or nil if not found.
	FindByUsername(ctx context.Context, db DBTX, username string) (*domain.User, error)

	// LockForUpdate acquires a row lock on the user (SELECT FOR UPDATE).
	// Used to serialize draft creation per owner.
	LockForUpdate(ctx context.Context, db DBTX, id int64) error

	Create(ctx context.Context, db DBTX, user *domain.User) error

	// UpdateProfile applies the set fields and returns the updated user.
	UpdateProfile(ctx context.Context, db DBTX, id int64, upd domain.ProfileUpdate) (*domain.User, error)
}

// MapRepository provides access to maps.
type MapRepository interface {
	// ListActive returns active maps whose title contains title (case-insensitive).
	ListActive(ctx context.Context, db DBTX, title string) ([]domain.Map, error)

	// FindActive returns an active map, or nil if absent or soft-deleted.
	FindActive(ctx context.Context, db DBTX, id int64) (*domain.Map, error)

	Create(ctx context.Context, db DBTX, m *domain.Map) error

	// Update writes the editable columns of m.
	Update(ctx context.Context, db DBTX, m *domain.Map) error

	// SoftDelete flips status to deleted. Returns false if no active row matched.
	SoftDelete(ctx context.Context, db DBTX, id int64) (bool, error)
}

// PoolRepository provides access to map_pools.
type PoolRepository interface {
	// FindByID returns a pool without its entries, or nil if not found.
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.MapPool, error)

	// LockForUpdate returns the pool with a row lock held until the tx ends.
	LockForUpdate(ctx context.Context, db DBTX, id int64) (*domain.MapPool, error)

	// FindDraft returns the owner's most recently created draft, or nil.
	FindDraft(ctx context.Context, db DBTX, ownerID int64) (*domain.MapPool, error)

	Create(ctx context.Context, db DBTX, pool *domain.MapPool) error

	// Save persists the mutable lifecycle columns.
	Save(ctx context.Context, db DBTX, pool *domain.MapPool) error

	// List returns non-draft, non-deleted pools matching filter, ordered by id.
	List(ctx context.Context, db DBTX, filter domain.PoolFilter) ([]domain.MapPool, error)
}

// MembershipRepository provides access to map_pool_maps.
type MembershipRepository interface {
	Exists(ctx context.Context, db DBTX, poolID, mapID int64) (bool, error)
	Count(ctx context.Context, db DBTX, poolID int64) (int, error)
	Insert(ctx context.Context, db DBTX, m domain.Membership) error

	// Find returns the membership row, or nil if not found.
	Find(ctx context.Context, db DBTX, poolID, mapID int64) (*domain.Membership, error)

	UpdatePosition(ctx context.Context, db DBTX, poolID, mapID int64, position int) error

	// Delete removes the row. Returns false if it did not exist.
	Delete(ctx context.Context, db DBTX, poolID, mapID int64) (bool, error)

	// ListEntries returns the pool's maps ordered by position, then map id.
	// Soft-deleted maps are included.
	ListEntries(ctx context.Context, db DBTX, poolID int64) ([]domain.PoolEntry, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the relay, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps published_at on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// LoginAttemptRepository provides access to login_attempts.
type LoginAttemptRepository interface {
	Record(ctx context.Context, db DBTX, attempt domain.LoginAttempt) error

	// CountFailuresSince counts failed attempts for username after since.
	CountFailuresSince(ctx context.Context, db DBTX, username string, since time.Time) (int, error)
}

// Set bundles every repository so wiring can swap implementations at once.
type Set struct {
	Users         UserRepository
	Maps          MapRepository
	Pools         PoolRepository
	Memberships   MembershipRepository
	Outbox        OutboxRepository
	LoginAttempts LoginAttemptRepository
}

// NewPgSet returns the pgx-backed repositories.
func NewPgSet() Set {
	return Set{
		Users:         NewPgUserRepository(),
		Maps:          NewPgMapRepository(),
		Pools:         NewPgPoolRepository(),
		Memberships:   NewPgMembershipRepository(),
		Outbox:        NewOutboxRepository(),
		LoginAttempts: NewPgLoginAttemptRepository(),
	}
}
