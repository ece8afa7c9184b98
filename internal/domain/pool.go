package domain

import (
	"fmt"
	"strings"
	"time"
)

// PoolStatus is the lifecycle state of a map pool.
type PoolStatus string

const (
	PoolDraft     PoolStatus = "draft"
	PoolSubmitted PoolStatus = "submitted"
	PoolCompleted PoolStatus = "completed"
	PoolRejected  PoolStatus = "rejected"
	PoolDeleted   PoolStatus = "deleted"
)

// Valid reports whether s is a known pool status.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolDraft, PoolSubmitted, PoolCompleted, PoolRejected, PoolDeleted:
		return true
	}
	return false
}

// Popularity bounds assigned on completion.
const (
	MinPopularity = 1
	MaxPopularity = 10
)

// ModerationAction selects the outcome of a staff review.
type ModerationAction string

const (
	ActionComplete ModerationAction = "complete"
	ActionReject   ModerationAction = "reject"
)

// ParseModerationAction validates a raw action value.
func ParseModerationAction(raw string) (ModerationAction, error) {
	switch a := ModerationAction(raw); a {
	case ActionComplete, ActionReject:
		return a, nil
	}
	return "", ErrValidation(fmt.Sprintf("invalid action %q: expected 'complete' or 'reject'", raw))
}

// MapPool is a user's moderation request bundling an ordered list of maps.
type MapPool struct {
	ID             int64       `json:"id"`
	Status         PoolStatus  `json:"status"`
	UserID         int64       `json:"-"`
	UserLogin      string      `json:"user_login"`
	ModeratorID    *int64      `json:"-"`
	ModeratorLogin *string     `json:"moderator_login"`
	PlayerLogin    *string     `json:"player_login"`
	Popularity     *int        `json:"popularity"`
	CreationDate   time.Time   `json:"creation_date"`
	SubmitDate     *time.Time  `json:"submit_date"`
	CompleteDate   *time.Time  `json:"complete_date"`
	Maps           []PoolEntry `json:"maps"`
	MapCount       int         `json:"map_count"`
}

// PoolEntry is one position-indexed map inside a pool.
type PoolEntry struct {
	Map      Map `json:"map"`
	Position int `json:"position"`
}

// Membership is the (pool, map, position) association row.
type Membership struct {
	PoolID   int64 `json:"map_pool_id"`
	MapID    int64 `json:"map_id"`
	Position int   `json:"position"`
}

// NewDraft returns a fresh draft owned by owner.
func NewDraft(owner Identity, now time.Time) *MapPool {
	return &MapPool{
		Status:       PoolDraft,
		UserID:       owner.UserID,
		UserLogin:    owner.Username,
		CreationDate: now,
	}
}

// CanAccess reports whether actor may read or edit the pool: staff or owner.
func (p *MapPool) CanAccess(actor Identity) bool {
	return actor.IsStaff || actor.Owns(p.UserID)
}

// SetPlayerLogin records the in-game login the pool is requested for.
func (p *MapPool) SetPlayerLogin(actor Identity, login string) error {
	if !p.CanAccess(actor) {
		return ErrForbidden("only the owner or staff may edit this pool")
	}
	if p.Status != PoolDraft {
		return ErrStateConflict(fmt.Sprintf("pool is %s; player_login can only change on a draft", p.Status))
	}
	login = strings.TrimSpace(login)
	if login == "" {
		return ErrValidation("player_login must not be empty")
	}
	p.PlayerLogin = &login
	return nil
}

// Submit locks a draft for review.
func (p *MapPool) Submit(actor Identity, now time.Time) error {
	if !actor.Owns(p.UserID) {
		return ErrForbidden("only the owner may submit this pool")
	}
	if p.Status != PoolDraft {
		return ErrStateConflict(fmt.Sprintf("pool is %s; only a draft can be submitted", p.Status))
	}
	if p.PlayerLogin == nil || strings.TrimSpace(*p.PlayerLogin) == "" {
		return ErrValidation("player_login is required before submission")
	}
	p.Status = PoolSubmitted
	p.SubmitDate = &now
	return nil
}

// Moderate applies a staff decision to a submitted pool. popularity is only
// used for ActionComplete.
func (p *MapPool) Moderate(moderator Identity, action ModerationAction, now time.Time, popularity int) error {
	if !moderator.IsStaff {
		return ErrForbidden("only staff may moderate pools")
	}
	if p.Status != PoolSubmitted {
		return ErrStateConflict(fmt.Sprintf("pool is %s; only a submitted pool can be moderated", p.Status))
	}
	switch action {
	case ActionComplete:
		if popularity < MinPopularity || popularity > MaxPopularity {
			return ErrInternal("popularity out of range", fmt.Errorf("got %d", popularity))
		}
		p.Status = PoolCompleted
		p.Popularity = &popularity
	case ActionReject:
		p.Status = PoolRejected
	default:
		return ErrValidation(fmt.Sprintf("invalid action %q", action))
	}
	moderatorID := moderator.UserID
	moderatorLogin := moderator.Username
	p.ModeratorID = &moderatorID
	p.ModeratorLogin = &moderatorLogin
	p.CompleteDate = &now
	return nil
}

// Delete soft-deletes the pool. Deleted is terminal.
func (p *MapPool) Delete(actor Identity, now time.Time) error {
	if !p.CanAccess(actor) {
		return ErrForbidden("only the owner or staff may delete this pool")
	}
	if p.Status == PoolDeleted {
		return ErrStateConflict("pool is already deleted")
	}
	p.Status = PoolDeleted
	p.CompleteDate = &now
	return nil
}

// PoolFilter narrows a pool listing.
type PoolFilter struct {
	// OwnerID restricts to one owner when non-zero.
	OwnerID int64
	// SubmitFrom and SubmitTo bound submit_date inclusively; both or neither.
	SubmitFrom *time.Time
	SubmitTo   *time.Time
	Status     PoolStatus
}
