package handler

import (
	"net/http"

	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/service"
)

// PoolHandler serves map pools and their memberships.
type PoolHandler struct {
	membership *service.MembershipService
	lifecycle  *service.LifecycleService
	query      *service.QueryService
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(membership *service.MembershipService, lifecycle *service.LifecycleService, query *service.QueryService) *PoolHandler {
	return &PoolHandler{membership: membership, lifecycle: lifecycle, query: query}
}

type addToDraftRequest struct {
	MapID int64 `json:"map_id" validate:"required,gt=0"`
}

type playerLoginRequest struct {
	PlayerLogin string `json:"player_login" validate:"required,max=255"`
}

// moderateRequest carries "complete" or "reject". LifecycleService.Moderate
// validates Action once the caller is known to be staff and the pool exists.
type moderateRequest struct {
	Action string `json:"action"`
}

type repositionRequest struct {
	Position int `json:"position" validate:"required,min=1"`
}

// AddToDraft handles POST /map-pools/draft.
func (h *PoolHandler) AddToDraft(w http.ResponseWriter, r *http.Request) {
	var req addToDraftRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	pool, err := h.membership.AddToDraft(r.Context(), auth.IdentityFromContext(r.Context()), req.MapID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, pool)
}

// List handles GET /map-pools.
func (h *PoolHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pools, err := h.query.List(r.Context(), auth.IdentityFromContext(r.Context()), service.PoolListInput{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Status:    q.Get("status"),
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, pools)
}

// Get handles GET /map-pools/{id}.
func (h *PoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withPoolID(w, r, func(id int64) (*domain.MapPool, error) {
		return h.query.Get(r.Context(), auth.IdentityFromContext(r.Context()), id)
	})
}

// SetPlayerLogin handles PUT /map-pools/{id}.
func (h *PoolHandler) SetPlayerLogin(w http.ResponseWriter, r *http.Request) {
	var req playerLoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	h.withPoolID(w, r, func(id int64) (*domain.MapPool, error) {
		return h.lifecycle.SetPlayerLogin(r.Context(), auth.IdentityFromContext(r.Context()), id, req.PlayerLogin)
	})
}

// Delete handles DELETE /map-pools/{id}.
func (h *PoolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.withPoolID(w, r, func(id int64) (*domain.MapPool, error) {
		return h.lifecycle.Delete(r.Context(), auth.IdentityFromContext(r.Context()), id)
	})
}

// Submit handles PUT /map-pools/{id}/submit.
func (h *PoolHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.withPoolID(w, r, func(id int64) (*domain.MapPool, error) {
		return h.lifecycle.Submit(r.Context(), auth.IdentityFromContext(r.Context()), id)
	})
}

// Moderate handles PUT /map-pools/{id}/moderate.
func (h *PoolHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req moderateRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	h.withPoolID(w, r, func(id int64) (*domain.MapPool, error) {
		return h.lifecycle.Moderate(r.Context(), auth.IdentityFromContext(r.Context()), id, req.Action)
	})
}

// Reposition handles PUT /map-pools/{id}/maps/{mapID}.
func (h *PoolHandler) Reposition(w http.ResponseWriter, r *http.Request) {
	poolID, mapID, err := membershipIDs(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req repositionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.membership.Reposition(r.Context(), auth.IdentityFromContext(r.Context()), poolID, mapID, req.Position)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// RemoveMap handles DELETE /map-pools/{id}/maps/{mapID}.
func (h *PoolHandler) RemoveMap(w http.ResponseWriter, r *http.Request) {
	poolID, mapID, err := membershipIDs(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.membership.Remove(r.Context(), auth.IdentityFromContext(r.Context()), poolID, mapID); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PoolHandler) withPoolID(w http.ResponseWriter, r *http.Request, fn func(id int64) (*domain.MapPool, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	pool, err := fn(id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, pool)
}

func membershipIDs(r *http.Request) (int64, int64, error) {
	poolID, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	mapID, err := pathID(r, "mapID")
	if err != nil {
		return 0, 0, err
	}
	return poolID, mapID, nil
}
