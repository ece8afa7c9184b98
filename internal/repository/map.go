package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/jackc/pgx/v5"
)

const mapColumns = `id, title, description, status, image_url, players, tileset, overview, created_at, updated_at`

type mapRepo struct{}

// NewPgMapRepository returns a pgx-backed MapRepository.
func NewPgMapRepository() MapRepository {
	return &mapRepo{}
}

func scanMap(row pgx.Row) (*domain.Map, error) {
	m := &domain.Map{}
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Status, &m.ImageURL,
		&m.Players, &m.Tileset, &m.Overview, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mapRepo) ListActive(ctx context.Context, db DBTX, title string) ([]domain.Map, error) {
	rows, err := db.Query(ctx, `
		SELECT `+mapColumns+`
		FROM maps
		WHERE status = 'active'
		  AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		ORDER BY id ASC`, title)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	maps := []domain.Map{}
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, *m)
	}
	return maps, rows.Err()
}

func (r *mapRepo) FindActive(ctx context.Context, db DBTX, id int64) (*domain.Map, error) {
	m, err := scanMap(db.QueryRow(ctx,
		`SELECT `+mapColumns+` FROM maps WHERE id = $1 AND status = 'active'`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find map: %w", err)
	}
	return m, nil
}

func (r *mapRepo) Create(ctx context.Context, db DBTX, m *domain.Map) error {
	err := db.QueryRow(ctx, `
		INSERT INTO maps (title, description, status, image_url, players, tileset, overview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		m.Title, m.Description, string(m.Status), m.ImageURL, m.Players, m.Tileset, m.Overview,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert map: %w", err)
	}
	return nil
}

func (r *mapRepo) Update(ctx context.Context, db DBTX, m *domain.Map) error {
	err := db.QueryRow(ctx, `
		UPDATE maps SET
		  title = $2, description = $3, image_url = $4,
		  players = $5, tileset = $6, overview = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Title, m.Description, m.ImageURL, m.Players, m.Tileset, m.Overview,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound("map", strconv.FormatInt(m.ID, 10))
	}
	if err != nil {
		return fmt.Errorf("update map: %w", err)
	}
	return nil
}

func (r *mapRepo) SoftDelete(ctx context.Context, db DBTX, id int64) (bool, error) {
	tag, err := db.Exec(ctx,
		`UPDATE maps SET status = 'deleted', updated_at = now() WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete map: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
