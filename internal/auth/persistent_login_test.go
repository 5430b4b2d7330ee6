package auth_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/models"
)

// stubUserStore implements PersistentLoginRepository in memory.
type stubUserStore struct {
	users map[string]*models.User
	keys  map[string]string
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{
		users: make(map[string]*models.User),
		keys:  make(map[string]string),
	}
}

func (s *stubUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func (s *stubUserStore) GetStayLoggedInKey(_ context.Context, id string) (string, error) {
	if _, ok := s.users[id]; !ok {
		return "", models.ErrNotFound
	}
	return s.keys[id], nil
}

func (s *stubUserStore) RenewStayLoggedInKey(_ context.Context, id, key string) error {
	if _, ok := s.users[id]; !ok {
		return models.ErrNotFound
	}
	s.keys[id] = key
	return nil
}

func newTestPersistentLoginService(t *testing.T) (*auth.PersistentLoginService, *stubUserStore) {
	t.Helper()
	store := newStubUserStore()
	store.users["u-1"] = &models.User{ID: "u-1", Username: "alice", Status: "active"}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return auth.NewPersistentLoginService(store, logger), store
}

func TestPersistentLogin_IssueValidateRoundTrip(t *testing.T) {
	svc, _ := newTestPersistentLoginService(t)
	ctx := context.Background()

	value, err := svc.Issue(ctx, "u-1")
	require.NoError(t, err)
	require.NotEmpty(t, value)

	user, err := svc.Validate(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestPersistentLogin_RotationInvalidatesIssuedToken(t *testing.T) {
	svc, _ := newTestPersistentLoginService(t)
	ctx := context.Background()

	value, err := svc.Issue(ctx, "u-1")
	require.NoError(t, err)

	require.NoError(t, svc.Rotate(ctx, "u-1"))

	_, err = svc.Validate(ctx, value)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestPersistentLogin_ReissueAfterRotationValidates(t *testing.T) {
	svc, _ := newTestPersistentLoginService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, svc.Rotate(ctx, "u-1"))

	fresh, err := svc.Issue(ctx, "u-1")
	require.NoError(t, err)

	user, err := svc.Validate(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
}

func TestPersistentLogin_ValidateRejectsMalformedValues(t *testing.T) {
	svc, store := newTestPersistentLoginService(t)
	ctx := context.Background()

	value, err := svc.Issue(ctx, "u-1")
	require.NoError(t, err)

	cases := []string{
		"",
		"garbage",
		"u-1:alice",
		"u-1::" + store.keys["u-1"],
		"u-2:alice:" + store.keys["u-1"],  // unknown user
		"u-1:mallory:" + store.keys["u-1"], // username mismatch
		value + "x",                        // tampered secret
	}
	for _, c := range cases {
		_, err := svc.Validate(ctx, c)
		assert.ErrorIs(t, err, models.ErrTokenInvalid, "value %q", c)
	}
}
