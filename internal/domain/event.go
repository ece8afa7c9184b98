package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates pool lifecycle event types.
type EventType string

const (
	EventPoolCreated   EventType = "created"
	EventPoolSubmitted EventType = "submitted"
	EventPoolCompleted EventType = "completed"
	EventPoolRejected  EventType = "rejected"
	EventPoolDeleted   EventType = "deleted"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const AggregateMapPool AggregateType = "map_pool"

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	ID            int64           `json:"-"`
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Topic is the Kafka topic the event is relayed to.
func (d OutboxDraft) Topic() string {
	return "mappool." + string(d.AggregateType) + "." + string(d.EventType)
}

// poolEventPayload is the stable wire shape of a pool event.
type poolEventPayload struct {
	PoolID      int64      `json:"pool_id"`
	Status      PoolStatus `json:"status"`
	Owner       string     `json:"owner"`
	Actor       string     `json:"actor"`
	PlayerLogin *string    `json:"player_login,omitempty"`
	Popularity  *int       `json:"popularity,omitempty"`
	MapCount    int        `json:"map_count"`
}

// NewPoolEvent builds the outbox record for a lifecycle transition of pool.
func NewPoolEvent(pool *MapPool, eventType EventType, actor Identity, at time.Time) OutboxDraft {
	payload, _ := json.Marshal(poolEventPayload{
		PoolID:      pool.ID,
		Status:      pool.Status,
		Owner:       pool.UserLogin,
		Actor:       actor.Username,
		PlayerLogin: pool.PlayerLogin,
		Popularity:  pool.Popularity,
		MapCount:    pool.MapCount,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateMapPool,
		AggregateID:   strconv.FormatInt(pool.ID, 10),
		EventType:     eventType,
		Payload:       payload,
		OccurredAt:    at,
	}
}

// EventForStatus maps the status a transition produced to its event type.
func EventForStatus(s PoolStatus) EventType {
	switch s {
	case PoolSubmitted:
		return EventPoolSubmitted
	case PoolCompleted:
		return EventPoolCompleted
	case PoolRejected:
		return EventPoolRejected
	case PoolDeleted:
		return EventPoolDeleted
	}
	return EventPoolCreated
}
