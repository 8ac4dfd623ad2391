package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrust/internal/rbac"
)

func newTestIssuer() *Issuer {
	return NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
}

func TestAccessTokenClaims(t *testing.T) {
	issuer := newTestIssuer()

	token, jti, err := issuer.AccessToken("elder-1", rbac.RoleElder, "device-9")
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "elder-1", claims.Subject)
	assert.Equal(t, "elder", claims.Role)
	assert.Equal(t, "device-9", claims.DeviceID)
	assert.Equal(t, jti, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestRefreshTokenStartsNewFamily(t *testing.T) {
	issuer := newTestIssuer()

	first, err := issuer.RefreshToken("elder-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, first.FamilyID)
	assert.NotEmpty(t, first.JTI)

	second, err := issuer.RefreshToken("elder-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.FamilyID, second.FamilyID)
}

func TestRotatePreservesFamily(t *testing.T) {
	issuer := newTestIssuer()

	initial, err := issuer.RefreshToken("caregiver-2", "")
	require.NoError(t, err)

	seen := map[string]bool{initial.JTI: true}
	token := initial.Token
	lastJTI := initial.JTI

	for i := 0; i < 5; i++ {
		rotation, err := issuer.Rotate(token)
		require.NoError(t, err)
		assert.Equal(t, initial.FamilyID, rotation.FamilyID)
		assert.Equal(t, lastJTI, rotation.RetiredJTI)
		assert.False(t, seen[rotation.JTI], "jti must be fresh on every rotation")
		seen[rotation.JTI] = true
		token = rotation.Token
		lastJTI = rotation.JTI
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer()

	_, err := issuer.VerifyAccess("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.VerifyRefresh("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer()
	other := NewIssuer("different", "different", time.Minute, time.Hour)

	token, _, err := issuer.AccessToken("elder-1", rbac.RoleElder, "")
	require.NoError(t, err)

	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsCrossUse(t *testing.T) {
	issuer := newTestIssuer()

	refresh, err := issuer.RefreshToken("elder-1", "")
	require.NoError(t, err)

	// A refresh token presented as an access token fails the signature
	// check because the secrets differ.
	_, err = issuer.VerifyAccess(refresh.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("a", "r", time.Nanosecond, time.Nanosecond)

	token, _, err := issuer.AccessToken("elder-1", rbac.RoleElder, "")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestZeroTTLsFallBackToDefaults(t *testing.T) {
	issuer := NewIssuer("a", "r", 0, 0)
	assert.Equal(t, 15*time.Minute, issuer.accessTTL)
	assert.Equal(t, 30*24*time.Hour, issuer.refreshTTL)
}
