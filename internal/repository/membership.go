package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/jackc/pgx/v5"
)

type membershipRepo struct{}

// NewPgMembershipRepository returns a pgx-backed MembershipRepository.
func NewPgMembershipRepository() MembershipRepository {
	return &membershipRepo{}
}

func (r *membershipRepo) Exists(ctx context.Context, db DBTX, poolID, mapID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM map_pool_maps WHERE map_pool_id = $1 AND map_id = $2)`,
		poolID, mapID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (r *membershipRepo) Count(ctx context.Context, db DBTX, poolID int64) (int, error) {
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM map_pool_maps WHERE map_pool_id = $1`, poolID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return n, nil
}

func (r *membershipRepo) Insert(ctx context.Context, db DBTX, m domain.Membership) error {
	_, err := db.Exec(ctx,
		`INSERT INTO map_pool_maps (map_pool_id, map_id, position) VALUES ($1, $2, $3)`,
		m.PoolID, m.MapID, m.Position)
	if isUniqueViolation(err) {
		return domain.ErrValidation("map already added to this pool")
	}
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *membershipRepo) Find(ctx context.Context, db DBTX, poolID, mapID int64) (*domain.Membership, error) {
	m := &domain.Membership{}
	err := db.QueryRow(ctx,
		`SELECT map_pool_id, map_id, position FROM map_pool_maps WHERE map_pool_id = $1 AND map_id = $2`,
		poolID, mapID).Scan(&m.PoolID, &m.MapID, &m.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (r *membershipRepo) UpdatePosition(ctx context.Context, db DBTX, poolID, mapID int64, position int) error {
	_, err := db.Exec(ctx,
		`UPDATE map_pool_maps SET position = $3 WHERE map_pool_id = $1 AND map_id = $2`,
		poolID, mapID, position)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

func (r *membershipRepo) Delete(ctx context.Context, db DBTX, poolID, mapID int64) (bool, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM map_pool_maps WHERE map_pool_id = $1 AND map_id = $2`, poolID, mapID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *membershipRepo) ListEntries(ctx context.Context, db DBTX, poolID int64) ([]domain.PoolEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT mp.position, m.id, m.title, m.description, m.status, m.image_url,
		       m.players, m.tileset, m.overview, m.created_at, m.updated_at
		FROM map_pool_maps mp
		JOIN maps m ON m.id = mp.map_id
		WHERE mp.map_pool_id = $1
		ORDER BY mp.position ASC, mp.map_id ASC`, poolID)
	if err != nil {
		return nil, fmt.Errorf("list pool entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.PoolEntry{}
	for rows.Next() {
		var e domain.PoolEntry
		m := &e.Map
		if err := rows.Scan(&e.Position, &m.ID, &m.Title, &m.Description, &m.Status, &m.ImageURL,
			&m.Players, &m.Tileset, &m.Overview, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
