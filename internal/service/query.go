package service

import (
	"context"

	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
)

// QueryService reads pools.
type QueryService struct {
	db          repository.DB
	pools       repository.PoolRepository
	memberships repository.MembershipRepository
}

// NewQueryService creates a QueryService.
func NewQueryService(db repository.DB, repos repository.Set) *QueryService {
	return &QueryService{db: db, pools: repos.Pools, memberships: repos.Memberships}
}

// PoolListInput holds the raw list filters.
type PoolListInput struct {
	StartDate string
	EndDate   string
	Status    string
}

// List returns submitted, completed and rejected pools ordered by id. Staff
// see every owner; everyone else sees their own pools only. The date range is
// applied only when both bounds are given.
func (s *QueryService) List(ctx context.Context, actor domain.Identity, in PoolListInput) ([]domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	from, to, err := domain.ParseDateRange(in.StartDate, in.EndDate)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	filter := domain.PoolFilter{
		SubmitFrom: from,
		SubmitTo:   to,
		Status:     domain.PoolStatus(in.Status),
	}
	if !actor.IsStaff {
		filter.OwnerID = actor.UserID
	}

	pools, err := s.pools.List(ctx, s.db, filter)
	if err != nil {
		return nil, appErr("list pools", err)
	}
	for i := range pools {
		if pools[i].MapCount, err = s.memberships.Count(ctx, s.db, pools[i].ID); err != nil {
			return nil, appErr("count pool maps", err)
		}
	}
	return pools, nil
}

// Get returns one pool with its maps ordered by position.
func (s *QueryService) Get(ctx context.Context, actor domain.Identity, id int64) (*domain.MapPool, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	pool, err := s.pools.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, appErr("find pool", err)
	}
	if pool == nil {
		return nil, domain.ErrNotFound("map pool", idStr(id))
	}
	if err := auth.Check(actor, auth.OwnerOrStaff(pool.UserID)); err != nil {
		return nil, err
	}

	entries, err := s.memberships.ListEntries(ctx, s.db, id)
	if err != nil {
		return nil, appErr("list pool maps", err)
	}
	pool.Maps = entries
	pool.MapCount = len(entries)
	return pool, nil
}
