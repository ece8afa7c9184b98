package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) FindByUsername(_ context.Context, _ repository.DBTX, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) LockForUpdate(_ context.Context, _ repository.DBTX, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[id]; !ok {
		return domain.ErrNotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func (r *userRepo) Create(_ context.Context, _ repository.DBTX, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if u.Username == user.Username {
			return domain.ErrConflict("username already registered")
		}
	}
	user.ID = r.s.id()
	user.CreatedAt = r.s.Now()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) UpdateProfile(_ context.Context, _ repository.DBTX, id int64, upd domain.ProfileUpdate) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound("user", strconv.FormatInt(id, 10))
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	r.s.st.users[id] = u
	return &u, nil
}

type mapRepo struct{ s *Store }

func (r *mapRepo) ListActive(_ context.Context, _ repository.DBTX, title string) ([]domain.Map, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	needle := strings.ToLower(title)
	out := []domain.Map{}
	for _, m := range r.s.st.maps {
		if m.Status != domain.MapActive {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(m.Title), needle) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mapRepo) FindActive(_ context.Context, _ repository.DBTX, id int64) (*domain.Map, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.maps[id]
	if !ok || m.Status != domain.MapActive {
		return nil, nil
	}
	return &m, nil
}

func (r *mapRepo) Create(_ context.Context, _ repository.DBTX, m *domain.Map) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	m.CreatedAt = r.s.Now()
	m.UpdatedAt = m.CreatedAt
	r.s.st.maps[m.ID] = *m
	return nil
}

func (r *mapRepo) Update(_ context.Context, _ repository.DBTX, m *domain.Map) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.maps[m.ID]
	if !ok {
		return domain.ErrNotFound("map", strconv.FormatInt(m.ID, 10))
	}
	m.Status = cur.Status
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = r.s.Now()
	r.s.st.maps[m.ID] = *m
	return nil
}

func (r *mapRepo) SoftDelete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.maps[id]
	if !ok || m.Status != domain.MapActive {
		return false, nil
	}
	m.Status = domain.MapDeleted
	m.UpdatedAt = r.s.Now()
	r.s.st.maps[id] = m
	return true, nil
}

type poolRepo struct{ s *Store }

func (r *poolRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.MapPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.pools[id]
	if !ok {
		return nil, nil
	}
	p = r.s.withLogins(p)
	return &p, nil
}

func (r *poolRepo) LockForUpdate(ctx context.Context, db repository.DBTX, id int64) (*domain.MapPool, error) {
	return r.FindByID(ctx, db, id)
}

func (r *poolRepo) FindDraft(_ context.Context, _ repository.DBTX, ownerID int64) (*domain.MapPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.MapPool
	for _, p := range r.s.st.pools {
		if p.UserID != ownerID || p.Status != domain.PoolDraft {
			continue
		}
		if latest == nil || p.CreationDate.After(latest.CreationDate) ||
			(p.CreationDate.Equal(latest.CreationDate) && p.ID > latest.ID) {
			p := p
			latest = &p
		}
	}
	if latest == nil {
		return nil, nil
	}
	found := r.s.withLogins(*latest)
	return &found, nil
}

func (r *poolRepo) Create(_ context.Context, _ repository.DBTX, pool *domain.MapPool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if pool.Status == domain.PoolDraft {
		for _, p := range r.s.st.pools {
			if p.UserID == pool.UserID && p.Status == domain.PoolDraft {
				return domain.ErrConflict("user already has a draft pool")
			}
		}
	}
	pool.ID = r.s.id()
	stored := *pool
	stored.Maps = nil
	r.s.st.pools[pool.ID] = stored
	return nil
}

func (r *poolRepo) Save(_ context.Context, _ repository.DBTX, pool *domain.MapPool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.st.pools[pool.ID]
	if !ok {
		return domain.ErrNotFound("map pool", strconv.FormatInt(pool.ID, 10))
	}
	cur.Status = pool.Status
	cur.ModeratorID = pool.ModeratorID
	cur.PlayerLogin = pool.PlayerLogin
	cur.Popularity = pool.Popularity
	cur.SubmitDate = pool.SubmitDate
	cur.CompleteDate = pool.CompleteDate
	r.s.st.pools[pool.ID] = cur
	return nil
}

func (r *poolRepo) List(_ context.Context, _ repository.DBTX, f domain.PoolFilter) ([]domain.MapPool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.MapPool{}
	for _, p := range r.s.st.pools {
		if p.Status == domain.PoolDeleted || p.Status == domain.PoolDraft {
			continue
		}
		if f.OwnerID != 0 && p.UserID != f.OwnerID {
			continue
		}
		if f.SubmitFrom != nil && f.SubmitTo != nil && !within(p.SubmitDate, *f.SubmitFrom, *f.SubmitTo) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, r.s.withLogins(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func within(t *time.Time, from, to time.Time) bool {
	return t != nil && !t.Before(from) && !t.After(to)
}

type membershipRepo struct{ s *Store }

func (r *membershipRepo) Exists(_ context.Context, _ repository.DBTX, poolID, mapID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.st.members[memberKey{poolID, mapID}]
	return ok, nil
}

func (r *membershipRepo) Count(_ context.Context, _ repository.DBTX, poolID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k := range r.s.st.members {
		if k.pool == poolID {
			n++
		}
	}
	return n, nil
}

func (r *membershipRepo) Insert(_ context.Context, _ repository.DBTX, m domain.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := memberKey{m.PoolID, m.MapID}
	if _, ok := r.s.st.members[k]; ok {
		return domain.ErrValidation("map already added to this pool")
	}
	r.s.st.members[k] = m
	return nil
}

func (r *membershipRepo) Find(_ context.Context, _ repository.DBTX, poolID, mapID int64) (*domain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.members[memberKey{poolID, mapID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *membershipRepo) UpdatePosition(_ context.Context, _ repository.DBTX, poolID, mapID int64, position int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := memberKey{poolID, mapID}
	if m, ok := r.s.st.members[k]; ok {
		m.Position = position
		r.s.st.members[k] = m
	}
	return nil
}

func (r *membershipRepo) Delete(_ context.Context, _ repository.DBTX, poolID, mapID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := memberKey{poolID, mapID}
	if _, ok := r.s.st.members[k]; !ok {
		return false, nil
	}
	delete(r.s.st.members, k)
	return true, nil
}

func (r *membershipRepo) ListEntries(_ context.Context, _ repository.DBTX, poolID int64) ([]domain.PoolEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := []domain.PoolEntry{}
	for k, m := range r.s.st.members {
		if k.pool != poolID {
			continue
		}
		entries = append(entries, domain.PoolEntry{Map: r.s.st.maps[k.mapID], Position: m.Position})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].Map.ID < entries[j].Map.ID
	})
	return entries, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = r.s.id()
	r.s.st.outbox = append(r.s.st.outbox, d)
	return nil
}

// FetchUnpublished returns every stored event; published ones are removed.
func (r *outboxRepo) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := len(r.s.st.outbox)
	if limit < n {
		n = limit
	}
	return append([]domain.OutboxDraft(nil), r.s.st.outbox[:n]...), nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	done := make(map[int64]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	kept := r.s.st.outbox[:0]
	for _, d := range r.s.st.outbox {
		if !done[d.ID] {
			kept = append(kept, d)
		}
	}
	r.s.st.outbox = kept
	return nil
}

type loginAttemptRepo struct{ s *Store }

func (r *loginAttemptRepo) Record(_ context.Context, _ repository.DBTX, a domain.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.s.Now()
	}
	r.s.st.attempts = append(r.s.st.attempts, a)
	return nil
}

func (r *loginAttemptRepo) CountFailuresSince(_ context.Context, _ repository.DBTX, username string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.st.attempts {
		if a.Username == username && !a.Success && a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}
