package service

import (
	"context"
	"log/slog"

	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/metrics"
	"github.com/greg5320/mappool/internal/repository"
)

// LifecycleService drives pool status transitions. Every transition is saved
// together with its outbox event.
type LifecycleService struct {
	db          repository.DB
	pools       repository.PoolRepository
	memberships repository.MembershipRepository
	outbox      repository.OutboxRepository
	logger      *slog.Logger
	now         Clock
	popularity  PopularitySource
}

// NewLifecycleService creates a LifecycleService. now defaults to time.Now and
// popularity to RandomPopularity.
func NewLifecycleService(db repository.DB, repos repository.Set, logger *slog.Logger, now Clock, popularity PopularitySource) *LifecycleService {
	if popularity == nil {
		popularity = RandomPopularity
	}
	return &LifecycleService{
		db:          db,
		pools:       repos.Pools,
		memberships: repos.Memberships,
		outbox:      repos.Outbox,
		logger:      logger,
		now:         clockOrNow(now),
		popularity:  popularity,
	}
}

// SetPlayerLogin records the player login on a draft.
func (s *LifecycleService) SetPlayerLogin(ctx context.Context, actor domain.Identity, id int64, login string) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, func(p *domain.MapPool) error {
		return p.SetPlayerLogin(actor, login)
	})
}

// Submit sends the owner's draft to moderation.
func (s *LifecycleService) Submit(ctx context.Context, actor domain.Identity, id int64) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, func(p *domain.MapPool) error {
		return p.Submit(actor, s.now())
	})
}

// Moderate completes or rejects a submitted pool. Staff is checked before the
// pool is looked up; the action is validated before the state.
func (s *LifecycleService) Moderate(ctx context.Context, actor domain.Identity, id int64, rawAction string) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, func(p *domain.MapPool) error {
		action, err := domain.ParseModerationAction(rawAction)
		if err != nil {
			return err
		}
		popularity := 0
		if action == domain.ActionComplete {
			popularity = s.popularity()
		}
		return p.Moderate(actor, action, s.now(), popularity)
	})
}

// Delete soft-deletes a pool.
func (s *LifecycleService) Delete(ctx context.Context, actor domain.Identity, id int64) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, func(p *domain.MapPool) error {
		return p.Delete(actor, s.now())
	})
}

// apply locks the pool, runs fn and persists the result. A status change also
// writes an outbox event.
func (s *LifecycleService) apply(ctx context.Context, actor domain.Identity, id int64, fn func(p *domain.MapPool) error) (*domain.MapPool, error) {
	var (
		pool    *domain.MapPool
		changed bool
	)
	err := s.db.InTx(ctx, func(tx repository.DBTX) error {
		p, err := s.pools.LockForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound("map pool", idStr(id))
		}

		from := p.Status
		if err := fn(p); err != nil {
			return err
		}
		if err := s.pools.Save(ctx, tx, p); err != nil {
			return err
		}

		if p.MapCount, err = s.memberships.Count(ctx, tx, p.ID); err != nil {
			return err
		}
		changed = p.Status != from
		if changed {
			event := domain.NewPoolEvent(p, domain.EventForStatus(p.Status), actor, s.now())
			if err := s.outbox.Insert(ctx, tx, event); err != nil {
				return err
			}
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, appErr("update pool", err)
	}

	if changed {
		metrics.PoolTransitions.WithLabelValues(string(pool.Status)).Inc()
	}
	s.logger.Info("pool updated", "pool_id", pool.ID, "status", pool.Status, "actor", actor.Username)
	return pool, nil
}
