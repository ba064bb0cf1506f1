package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/memory"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearer("bearer  abc "))
	assert.Empty(t, ExtractBearer("Basic abc"))
	assert.Empty(t, ExtractBearer(""))
}

func TestResolveUsesDirectoryRecord(t *testing.T) {
	dir := memory.NewPrincipalDirectory(principal.Principal{
		ID: "alice", Role: principal.RoleSender, Name: "Alice", WalletAddress: "0xalice",
	})
	v, err := NewVerifier("s3cret", dir)
	require.NoError(t, err)

	token, err := v.Issue(principal.Principal{ID: "alice", Role: principal.RoleSender, WalletAddress: "0xforged"}, time.Minute)
	require.NoError(t, err)

	p, err := v.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "0xalice", p.WalletAddress)
	assert.Equal(t, "Alice", p.Name)

	token, err = v.Issue(principal.Principal{ID: "alice", Role: principal.RoleVendor}, time.Minute)
	require.NoError(t, err)
	_, err = v.Resolve(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	v, err := NewVerifier("s3cret", nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = v.Resolve(ctx, "")
	require.ErrorIs(t, err, ErrMissingToken)

	expired, err := v.Issue(principal.Principal{ID: "bob", Role: principal.RoleSender}, -time.Hour)
	require.NoError(t, err)
	_, err = v.Resolve(ctx, expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewVerifier("different", nil)
	require.NoError(t, err)
	forged, err := other.Issue(principal.Principal{ID: "bob", Role: principal.RoleSender}, time.Minute)
	require.NoError(t, err)
	_, err = v.Resolve(ctx, forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Resolve(ctx, noRole)
	require.ErrorIs(t, err, ErrInvalidToken)

	p, err := v.Resolve(ctx, mustIssue(t, v, principal.Principal{ID: "bob", Role: principal.RoleVendor, WalletAddress: "0xbob"}))
	require.NoError(t, err)
	assert.Equal(t, principal.RoleVendor, p.Role)
	assert.Equal(t, "0xbob", p.WalletAddress)
}

func mustIssue(t *testing.T, v *Verifier, p principal.Principal) string {
	t.Helper()
	token, err := v.Issue(p, time.Minute)
	require.NoError(t, err)
	return token
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(" ", nil)
	require.Error(t, err)
}

func TestLimiterIsPerKey(t *testing.T) {
	l := NewLimiter(2)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	fixed = fixed.Add(time.Minute)
	assert.True(t, l.Allow("a"))
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("a"))
	}
}
