// Package memory provides in-process implementations of the repository
// interfaces. Transactions are serialized by a single lock and roll back by
// restoring a snapshot, which gives the same all-or-nothing behavior the
// services rely on from PostgreSQL.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type memberKey struct{ pool, mapID int64 }

type state struct {
	users    map[int64]domain.User
	maps     map[int64]domain.Map
	pools    map[int64]domain.MapPool
	members  map[memberKey]domain.Membership
	outbox   []domain.OutboxDraft
	attempts []domain.LoginAttempt
	nextID   int64
}

func (s *state) clone() state {
	c := state{
		users:    make(map[int64]domain.User, len(s.users)),
		maps:     make(map[int64]domain.Map, len(s.maps)),
		pools:    make(map[int64]domain.MapPool, len(s.pools)),
		members:  make(map[memberKey]domain.Membership, len(s.members)),
		outbox:   append([]domain.OutboxDraft(nil), s.outbox...),
		attempts: append([]domain.LoginAttempt(nil), s.attempts...),
		nextID:   s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.maps {
		c.maps[k] = v
	}
	for k, v := range s.pools {
		c.pools[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	return c
}

// Store is an in-memory database implementing repository.DB.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	// PingErr is returned by Ping when set.
	PingErr error
	// Now stamps created_at columns.
	Now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		st: state{
			users:   map[int64]domain.User{},
			maps:    map[int64]domain.Map{},
			pools:   map[int64]domain.MapPool{},
			members: map[memberKey]domain.Membership{},
		},
		Now: time.Now,
	}
}

var _ repository.DB = (*Store)(nil)

func (s *Store) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (s *Store) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (s *Store) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...interface{}) error { return errNoSQL }

// InTx serializes fn against other transactions and restores the previous
// state if fn fails.
func (s *Store) InTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return s.PingErr }

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// NewSet returns repositories backed by s.
func NewSet(s *Store) repository.Set {
	return repository.Set{
		Users:         &userRepo{s},
		Maps:          &mapRepo{s},
		Pools:         &poolRepo{s},
		Memberships:   &membershipRepo{s},
		Outbox:        &outboxRepo{s},
		LoginAttempts: &loginAttemptRepo{s},
	}
}

// SeedUser inserts a user directly and returns it.
func (s *Store) SeedUser(username, passwordHash string, staff bool) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{
		ID:           s.id(),
		Username:     username,
		PasswordHash: passwordHash,
		IsStaff:      staff,
		CreatedAt:    s.Now(),
	}
	s.st.users[u.ID] = u
	return &u
}

// SeedMap inserts a map directly and returns it.
func (s *Store) SeedMap(m domain.Map) *domain.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	if m.Status == "" {
		m.Status = domain.MapActive
	}
	m.CreatedAt = s.Now()
	m.UpdatedAt = m.CreatedAt
	s.st.maps[m.ID] = m
	return &m
}

// MapByID returns a map regardless of status.
func (s *Store) MapByID(id int64) (domain.Map, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.maps[id]
	return m, ok
}

// Pools returns every stored pool.
func (s *Store) Pools() []domain.MapPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MapPool, 0, len(s.st.pools))
	for _, p := range s.st.pools {
		out = append(out, s.withLogins(p))
	}
	return out
}

// Events returns every outbox row written so far.
func (s *Store) Events() []domain.OutboxDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxDraft(nil), s.st.outbox...)
}

func (s *Store) withLogins(p domain.MapPool) domain.MapPool {
	if u, ok := s.st.users[p.UserID]; ok {
		p.UserLogin = u.Username
	}
	if p.ModeratorID != nil {
		if u, ok := s.st.users[*p.ModeratorID]; ok {
			login := u.Username
			p.ModeratorLogin = &login
		}
	}
	return p
}
