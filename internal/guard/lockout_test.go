package guard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockout(t *testing.T) {
	db := memory.NewStore()
	repos := memory.NewSet(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLockout(db, repos.LoginAttempts, slog.Default(), func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < MaxAttempts-1; i++ {
		l.RecordAttempt(ctx, "alice", "10.0.0.1", false)
	}
	require.NoError(t, l.CheckLocked(ctx, "alice"))

	l.RecordAttempt(ctx, "alice", "10.0.0.1", true)
	require.NoError(t, l.CheckLocked(ctx, "alice"), "successes do not count")

	l.RecordAttempt(ctx, "alice", "10.0.0.1", false)
	err := l.CheckLocked(ctx, "alice")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeAccountLocked))

	assert.NoError(t, l.CheckLocked(ctx, "bob"), "lockout is per username")

	now = now.Add(LockoutWindow + time.Second)
	assert.NoError(t, l.CheckLocked(ctx, "alice"), "window expires")
}
