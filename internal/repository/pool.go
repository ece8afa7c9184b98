package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/jackc/pgx/v5"
)

const poolSelect = `
	SELECT p.id, p.status, p.user_id, u.username, p.moderator_id, m.username,
	       p.player_login, p.popularity, p.creation_date, p.submit_date, p.complete_date
	FROM map_pools p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN users m ON m.id = p.moderator_id`

type poolRepo struct{}

// NewPgPoolRepository returns a pgx-backed PoolRepository.
func NewPgPoolRepository() PoolRepository {
	return &poolRepo{}
}

func scanPool(row pgx.Row) (*domain.MapPool, error) {
	p := &domain.MapPool{}
	err := row.Scan(&p.ID, &p.Status, &p.UserID, &p.UserLogin, &p.ModeratorID, &p.ModeratorLogin,
		&p.PlayerLogin, &p.Popularity, &p.CreationDate, &p.SubmitDate, &p.CompleteDate)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *poolRepo) findOne(ctx context.Context, db DBTX, sql string, args ...interface{}) (*domain.MapPool, error) {
	p, err := scanPool(db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pool: %w", err)
	}
	return p, nil
}

func (r *poolRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.MapPool, error) {
	return r.findOne(ctx, db, poolSelect+` WHERE p.id = $1`, id)
}

// LockForUpdate locks only the pool row; the joined user rows stay unlocked.
func (r *poolRepo) LockForUpdate(ctx context.Context, db DBTX, id int64) (*domain.MapPool, error) {
	return r.findOne(ctx, db, poolSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id)
}

func (r *poolRepo) FindDraft(ctx context.Context, db DBTX, ownerID int64) (*domain.MapPool, error) {
	return r.findOne(ctx, db, poolSelect+`
		WHERE p.user_id = $1 AND p.status = 'draft'
		ORDER BY p.creation_date DESC, p.id DESC
		LIMIT 1`, ownerID)
}

func (r *poolRepo) Create(ctx context.Context, db DBTX, pool *domain.MapPool) error {
	err := db.QueryRow(ctx, `
		INSERT INTO map_pools (status, user_id, player_login, creation_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		string(pool.Status), pool.UserID, pool.PlayerLogin, pool.CreationDate,
	).Scan(&pool.ID)
	if isUniqueViolation(err) {
		return domain.ErrConflict("user already has a draft pool")
	}
	if err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

func (r *poolRepo) Save(ctx context.Context, db DBTX, pool *domain.MapPool) error {
	tag, err := db.Exec(ctx, `
		UPDATE map_pools SET
		  status = $2, moderator_id = $3, player_login = $4, popularity = $5,
		  submit_date = $6, complete_date = $7
		WHERE id = $1`,
		pool.ID, string(pool.Status), pool.ModeratorID, pool.PlayerLogin, pool.Popularity,
		pool.SubmitDate, pool.CompleteDate)
	if err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("map pool", strconv.FormatInt(pool.ID, 10))
	}
	return nil
}

func (r *poolRepo) List(ctx context.Context, db DBTX, filter domain.PoolFilter) ([]domain.MapPool, error) {
	where := []string{"p.status NOT IN ('deleted', 'draft')"}
	args := []interface{}{}

	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if filter.SubmitFrom != nil && filter.SubmitTo != nil {
		args = append(args, *filter.SubmitFrom, *filter.SubmitTo)
		where = append(where, fmt.Sprintf("p.submit_date BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}

	rows, err := db.Query(ctx,
		poolSelect+` WHERE `+strings.Join(where, " AND ")+` ORDER BY p.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	pools := []domain.MapPool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}
