package service

import (
	"context"
	"errors"
	"testing"

	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.Register(ctx, RegisterInput{Username: "newbie", Password: "correct-horse", Email: "n@example.com", IsStaff: true})
	require.NoError(t, err)
	assert.False(t, u.IsStaff, "staff registration disabled by default")
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	_, err = f.accounts.Register(ctx, RegisterInput{Username: "newbie", Password: "another-pass"})
	assert.True(t, domain.HasCode(err, domain.CodeConflict))

	res, err := f.accounts.Login(ctx, LoginInput{Username: "newbie", Password: "correct-horse", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)

	val, found, err := f.sessions.Get(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "newbie", string(val))

	require.NoError(t, f.accounts.Logout(ctx, res.Token))
	_, found, _ = f.sessions.Get(ctx, res.Token)
	assert.False(t, found)
	require.NoError(t, f.accounts.Logout(ctx, ""))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Password: "password1"}},
		{"bad chars", RegisterInput{Username: "a b c", Password: "password1"}},
		{"short password", RegisterInput{Username: "valid", Password: "short"}},
		{"bad email", RegisterInput{Username: "valid", Password: "password1", Email: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(context.Background(), tt.in)
			assert.True(t, domain.HasCode(err, domain.CodeValidation), "got %v", err)
		})
	}
}

func TestLogin_LockoutAfterFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, RegisterInput{Username: "target", Password: "right-password"})
	require.NoError(t, err)

	for i := 0; i < guard.MaxAttempts; i++ {
		_, err := f.accounts.Login(ctx, LoginInput{Username: "target", Password: "wrong-password"})
		assert.True(t, domain.HasCode(err, domain.CodeAuthenticationRequired))
	}

	_, err = f.accounts.Login(ctx, LoginInput{Username: "target", Password: "right-password"})
	assert.True(t, domain.HasCode(err, domain.CodeAccountLocked))
}

func TestLogin_UnknownUserAndStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Login(ctx, LoginInput{Username: "ghost", Password: "whatever1"})
	assert.True(t, domain.HasCode(err, domain.CodeAuthenticationRequired))

	_, err = f.accounts.Login(ctx, LoginInput{})
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	_, err = f.accounts.Register(ctx, RegisterInput{Username: "alive", Password: "password1"})
	require.NoError(t, err)
	f.sessions.Err = errors.New("redis down")
	_, err = f.accounts.Login(ctx, LoginInput{Username: "alive", Password: "password1"})
	assert.True(t, domain.HasCode(err, domain.CodeDependencyFailure))
}

func TestUpdateProfileAndMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.UpdateProfile(ctx, domain.Anonymous(), ProfileInput{})
	assert.True(t, domain.HasCode(err, domain.CodeAuthenticationRequired))

	_, err = f.accounts.UpdateProfile(ctx, f.owner, ProfileInput{Email: strPtr("bad")})
	assert.True(t, domain.HasCode(err, domain.CodeValidation))

	u, err := f.accounts.UpdateProfile(ctx, f.owner, ProfileInput{FirstName: strPtr("Lee"), Password: strPtr("new-password")})
	require.NoError(t, err)
	assert.Equal(t, "Lee", u.FirstName)
	assert.NotEmpty(t, u.PasswordHash)

	me, err := f.accounts.Me(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, "Lee", me.FirstName)

	_, err = f.accounts.Login(ctx, LoginInput{Username: "owner", Password: "new-password"})
	require.NoError(t, err)
}
