package service

import (
	"context"
	"log/slog"

	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
)

// MembershipService manages the ordered maps inside a pool.
type MembershipService struct {
	db          repository.DB
	users       repository.UserRepository
	maps        repository.MapRepository
	pools       repository.PoolRepository
	memberships repository.MembershipRepository
	outbox      repository.OutboxRepository
	logger      *slog.Logger
	now         Clock
}

// NewMembershipService creates a MembershipService. now defaults to time.Now.
func NewMembershipService(db repository.DB, repos repository.Set, logger *slog.Logger, now Clock) *MembershipService {
	return &MembershipService{
		db:          db,
		users:       repos.Users,
		maps:        repos.Maps,
		pools:       repos.Pools,
		memberships: repos.Memberships,
		outbox:      repos.Outbox,
		logger:      logger,
		now:         clockOrNow(now),
	}
}

// AddToDraft appends an active map to the actor's draft, creating the draft
// if the actor has none. The owner row and then the pool row are locked so
// concurrent adds for one user serialize.
func (s *MembershipService) AddToDraft(ctx context.Context, actor domain.Identity, mapID int64) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}

	var pool *domain.MapPool
	err := s.db.InTx(ctx, func(tx repository.DBTX) error {
		m, err := s.maps.FindActive(ctx, tx, mapID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrNotFound("map", idStr(mapID))
		}

		if err := s.users.LockForUpdate(ctx, tx, actor.UserID); err != nil {
			return err
		}
		draft, err := s.pools.FindDraft(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if draft == nil {
			draft = domain.NewDraft(actor, s.now())
			if err := s.pools.Create(ctx, tx, draft); err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, domain.NewPoolEvent(draft, domain.EventPoolCreated, actor, draft.CreationDate)); err != nil {
				return err
			}
			s.logger.Info("draft pool created", "pool_id", draft.ID, "user", actor.Username)
		} else {
			id := draft.ID
			if draft, err = s.pools.LockForUpdate(ctx, tx, id); err != nil {
				return err
			}
			if draft == nil {
				return domain.ErrNotFound("map pool", idStr(id))
			}
		}

		exists, err := s.memberships.Exists(ctx, tx, draft.ID, mapID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrValidation("map already added to this pool")
		}
		count, err := s.memberships.Count(ctx, tx, draft.ID)
		if err != nil {
			return err
		}
		if err := s.memberships.Insert(ctx, tx, domain.Membership{PoolID: draft.ID, MapID: mapID, Position: count + 1}); err != nil {
			return err
		}
		draft.MapCount = count + 1
		pool = draft
		return nil
	})
	if err != nil {
		return nil, appErr("add map to draft", err)
	}
	return pool, nil
}

// Reposition overwrites the position of a map in a pool. Siblings are not
// renumbered and the position is not bounded by the pool size.
func (s *MembershipService) Reposition(ctx context.Context, actor domain.Identity, poolID, mapID int64, position int) (*domain.Membership, error) {
	m, err := s.authorizedMembership(ctx, actor, poolID, mapID)
	if err != nil {
		return nil, err
	}
	if position < 1 {
		return nil, domain.ErrValidation("position must be at least 1")
	}
	if err := s.memberships.UpdatePosition(ctx, s.db, poolID, mapID, position); err != nil {
		return nil, appErr("update position", err)
	}
	m.Position = position
	return m, nil
}

// Remove deletes a map from a pool without renumbering the rest.
func (s *MembershipService) Remove(ctx context.Context, actor domain.Identity, poolID, mapID int64) error {
	if _, err := s.authorizedMembership(ctx, actor, poolID, mapID); err != nil {
		return err
	}
	ok, err := s.memberships.Delete(ctx, s.db, poolID, mapID)
	if err != nil {
		return appErr("delete membership", err)
	}
	if !ok {
		return domain.ErrNotFound("map in pool", idStr(mapID))
	}
	return nil
}

func (s *MembershipService) authorizedMembership(ctx context.Context, actor domain.Identity, poolID, mapID int64) (*domain.Membership, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	pool, err := s.pools.FindByID(ctx, s.db, poolID)
	if err != nil {
		return nil, appErr("find pool", err)
	}
	if pool == nil {
		return nil, domain.ErrNotFound("map pool", idStr(poolID))
	}
	if err := auth.Check(actor, auth.OwnerOrStaff(pool.UserID)); err != nil {
		return nil, err
	}
	m, err := s.memberships.Find(ctx, s.db, poolID, mapID)
	if err != nil {
		return nil, appErr("find membership", err)
	}
	if m == nil {
		return nil, domain.ErrNotFound("map in pool", idStr(mapID))
	}
	return m, nil
}
