package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/storage"
)

// CatalogService manages the map catalog and map images.
type CatalogService struct {
	db          repository.DB
	maps        repository.MapRepository
	pools       repository.PoolRepository
	memberships repository.MembershipRepository
	images      storage.ImageStore
	logger      *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(db repository.DB, repos repository.Set, images storage.ImageStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		maps:        repos.Maps,
		pools:       repos.Pools,
		memberships: repos.Memberships,
		images:      images,
		logger:      logger,
	}
}

// MapList is the map listing plus the caller's draft summary.
type MapList struct {
	Maps           []domain.Map `json:"maps"`
	DraftPoolID    *int64       `json:"draft_pool_id"`
	DraftPoolCount int          `json:"draft_pool_count"`
}

// List returns active maps filtered by title. Authenticated callers also get
// their draft pool id and its map count.
func (s *CatalogService) List(ctx context.Context, actor domain.Identity, title string) (*MapList, error) {
	maps, err := s.maps.ListActive(ctx, s.db, strings.TrimSpace(title))
	if err != nil {
		return nil, appErr("list maps", err)
	}
	out := &MapList{Maps: maps}
	if !actor.IsAuthenticated() {
		return out, nil
	}

	draft, err := s.pools.FindDraft(ctx, s.db, actor.UserID)
	if err != nil {
		return nil, appErr("find draft", err)
	}
	if draft != nil {
		count, err := s.memberships.Count(ctx, s.db, draft.ID)
		if err != nil {
			return nil, appErr("count draft maps", err)
		}
		out.DraftPoolID = &draft.ID
		out.DraftPoolCount = count
	}
	return out, nil
}

// Get returns an active map.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Map, error) {
	m, err := s.maps.FindActive(ctx, s.db, id)
	if err != nil {
		return nil, appErr("find map", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("map", idStr(id))
	}
	return m, nil
}

// Create adds an active map.
func (s *CatalogService) Create(ctx context.Context, actor domain.Identity, in domain.MapInput) (*domain.Map, error) {
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, domain.ErrValidation("title is required")
	}

	m := &domain.Map{
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.MapActive,
		ImageURL:    in.ImageURL,
		Players:     in.Players,
		Tileset:     in.Tileset,
		Overview:    in.Overview,
	}
	if err := s.maps.Create(ctx, s.db, m); err != nil {
		return nil, appErr("create map", err)
	}
	return m, nil
}

// Update applies a partial update to an active map.
func (s *CatalogService) Update(ctx context.Context, actor domain.Identity, id int64, patch domain.MapPatch) (*domain.Map, error) {
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, domain.ErrValidation("title must not be empty")
	}

	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(m)
	if err := s.maps.Update(ctx, s.db, m); err != nil {
		return nil, appErr("update map", err)
	}
	return m, nil
}

// Delete soft-deletes an active map. The image blob is removed first; if that
// fails the map is left untouched. If the record update fails after the blob
// is gone, the orphaned URL is logged and an internal error returned.
func (s *CatalogService) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		return err
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.removeImage(ctx, m); err != nil {
		return domain.ErrDependency("failed to delete map image", err)
	}

	ok, err := s.maps.SoftDelete(ctx, s.db, id)
	if err != nil {
		if m.HasImage() {
			s.logger.Error("map record update failed after image delete",
				"map_id", id, "orphaned_image_url", *m.ImageURL, "error", err)
		}
		return domain.ErrInternal("delete map", err)
	}
	if !ok {
		return domain.ErrNotFound("map", idStr(id))
	}
	return nil
}

// removeImage deletes the blob behind m's image URL. Links that point outside
// the bucket were never stored by us and are left alone.
func (s *CatalogService) removeImage(ctx context.Context, m *domain.Map) error {
	if !m.HasImage() {
		return nil
	}
	err := s.images.Delete(ctx, *m.ImageURL)
	if errors.Is(err, storage.ErrForeignObject) {
		s.logger.Warn("map image is not in the object store, skipping delete", "map_id", m.ID, "image_url", *m.ImageURL)
		return nil
	}
	if err != nil {
		s.logger.Error("map image delete failed", "map_id", m.ID, "image_url", *m.ImageURL, "error", err)
		return err
	}
	return nil
}

// ImageUpload is one uploaded image file.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadImage replaces the image of an active map. The old blob is deleted
// before the new one is stored.
func (s *CatalogService) UploadImage(ctx context.Context, actor domain.Identity, id int64, file *ImageUpload) (*domain.Map, error) {
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		return nil, err
	}
	if file == nil || file.Body == nil {
		return nil, domain.ErrValidation("image file is required")
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.removeImage(ctx, m); err != nil {
		return nil, domain.ErrDependency("failed to delete old map image", err)
	}

	key := fmt.Sprintf("maps/%d/%s%s", id, uuid.New(), strings.ToLower(filepath.Ext(file.Filename)))
	url, err := s.images.Put(ctx, key, file.Body, file.Size, file.ContentType)
	if err != nil {
		return nil, domain.ErrDependency("failed to store map image", err)
	}

	m.ImageURL = &url
	if err := s.maps.Update(ctx, s.db, m); err != nil {
		s.logger.Error("map record update failed after image upload",
			"map_id", id, "orphaned_image_url", url, "error", err)
		return nil, domain.ErrInternal("update map image", err)
	}
	return m, nil
}
