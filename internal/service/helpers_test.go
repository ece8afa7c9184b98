package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/guard"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/repository/memory"
	"github.com/greg5320/mappool/internal/session"
	"github.com/greg5320/mappool/internal/storage"
)

var fixedNow = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

type fixture struct {
	db       *memory.Store
	repos    repository.Set
	images   *storage.MemoryStore
	sessions *session.MemoryStore

	catalog    *CatalogService
	membership *MembershipService
	lifecycle  *LifecycleService
	query      *QueryService
	accounts   *AccountService

	owner domain.Identity
	other domain.Identity
	staff domain.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewStore()
	db.Now = func() time.Time { return fixedNow }
	repos := memory.NewSet(db)
	images := storage.NewMemoryStore("http://minio:9000", "maps")
	sessions := session.NewMemoryStore()
	clock := func() time.Time { return fixedNow }

	f := &fixture{
		db:         db,
		repos:      repos,
		images:     images,
		sessions:   sessions,
		catalog:    NewCatalogService(db, repos, images, logger),
		membership: NewMembershipService(db, repos, logger, clock),
		lifecycle:  NewLifecycleService(db, repos, logger, clock, func() int { return 7 }),
		query:      NewQueryService(db, repos),
		accounts: NewAccountService(db, repos, sessions,
			guard.NewLockout(db, repos.LoginAttempts, logger, clock),
			AccountConfig{SessionTTL: time.Hour}, logger),
	}
	f.owner = db.SeedUser("owner", "", false).Identity()
	f.other = db.SeedUser("other", "", false).Identity()
	f.staff = db.SeedUser("moderator", "", true).Identity()
	return f
}

func (f *fixture) seedMap(title string) *domain.Map {
	return f.db.SeedMap(domain.Map{Title: title, Players: "2-4", Tileset: "Jungle"})
}

func strPtr(s string) *string { return &s }
