package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/auth"
)

func newTM() *auth.TokenManager {
	return auth.NewTokenManager("access-secret", "refresh-secret", "hydit-backend", time.Minute, time.Hour)
}

func TestGenerateAndParsePair(t *testing.T) {
	tm := newTM()

	access, refresh, exp, err := tm.GeneratePair("subj-1", "buyer")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := tm.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "subj-1", claims.SubjectID)
	assert.Equal(t, "buyer", claims.Role)

	rclaims, err := tm.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "subj-1", rclaims.SubjectID)
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	tm := newTM()
	access, refresh, _, err := tm.GeneratePair("subj-1", "buyer")
	require.NoError(t, err)

	// A refresh token is not a bearer credential and vice versa.
	_, err = tm.ParseAccess(refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = tm.ParseRefresh(access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestWrongIssuerRejected(t *testing.T) {
	other := auth.NewTokenManager("access-secret", "refresh-secret", "someone-else", time.Minute, time.Hour)
	access, _, _, err := other.GeneratePair("subj-1", "buyer")
	require.NoError(t, err)

	_, err = newTM().ParseAccess(access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestPinRoundTrip(t *testing.T) {
	hash, err := auth.HashPin("4321")
	require.NoError(t, err)
	assert.NoError(t, auth.VerifyPin("4321", hash))
	assert.Error(t, auth.VerifyPin("0000", hash))
}
