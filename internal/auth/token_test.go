package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/models"
)

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	store := newStubUserStore()
	store.users["u-1"] = &models.User{ID: "u-1", Username: "alice", TenantID: "t-1"}
	store.keys["u-1"] = "per-user-key"
	tm := auth.NewTokenManager("a-sufficiently-long-test-secret", 15*time.Minute, store)
	ctx := context.Background()

	token, err := tm.GenerateAccessToken(ctx, store.users["u-1"])
	require.NoError(t, err)

	claims, err := tm.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "t-1", claims.TenantID)
}

func TestTokenManager_KeyRotationInvalidatesToken(t *testing.T) {
	store := newStubUserStore()
	store.users["u-1"] = &models.User{ID: "u-1", Username: "alice"}
	store.keys["u-1"] = "original-key"
	tm := auth.NewTokenManager("a-sufficiently-long-test-secret", 15*time.Minute, store)
	ctx := context.Background()

	token, err := tm.GenerateAccessToken(ctx, store.users["u-1"])
	require.NoError(t, err)

	store.keys["u-1"] = "rotated-key"

	_, err = tm.ValidateToken(ctx, token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := auth.NewTokenManager("a-sufficiently-long-test-secret", 15*time.Minute, nil)

	_, err := tm.ValidateToken(context.Background(), "not.a.token")
	assert.Error(t, err)
}
