package jwt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTokenNotFound = fmt.Errorf("refresh token %w", domain.ErrNotFound)

// mockRepository implements identity.Repository for testing.
type mockRepository struct {
	users  map[string]*domain.User
	tokens map[string]*domain.RefreshToken
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: map[string]*domain.User{
			"user-1": {ID: "user-1", Email: "a@example.com", Role: domain.RoleAdmin},
		},
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, identity.ErrUserNotFound
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, hash string) (*domain.RefreshToken, error) {
	if t, ok := m.tokens[hash]; ok {
		return t, nil
	}
	return nil, errTokenNotFound
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, hash string) error {
	if _, ok := m.tokens[hash]; !ok {
		return errTokenNotFound
	}
	delete(m.tokens, hash)
	return nil
}

func newTestAuthenticator(repo identity.Repository) *Authenticator {
	return NewAuthenticator(repo, Config{
		SecretKey:            "test-secret-key-at-least-32-bytes!!",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	})
}

func TestGenerateAndValidate(t *testing.T) {
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)

	tokens, err := auth.GenerateTokens(context.Background(), repo.users["user-1"])
	require.NoError(t, err)
	assert.Len(t, repo.tokens, 1)
	assert.NotContains(t, repo.tokens, tokens.RefreshToken, "only the hash is stored")

	userID, role, err := auth.ValidateAccessToken(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.RoleAdmin, role)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)
	tokens, err := auth.GenerateTokens(context.Background(), repo.users["user-1"])
	require.NoError(t, err)

	other := NewAuthenticator(repo, Config{SecretKey: "another-secret", AccessTokenDuration: time.Minute})

	expired := newTestAuthenticator(repo)
	expired.now = func() time.Time { return time.Now().Add(time.Hour) }

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: issuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		auth  *Authenticator
		token string
	}{
		{"garbage", auth, "not-a-token"},
		{"wrong secret", other, tokens.AccessToken},
		{"expired", expired, tokens.AccessToken},
		{"unsigned", auth, none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.auth.ValidateAccessToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, identity.ErrInvalidToken)
		})
	}
}

func TestRefreshTokens_Rotates(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)
	first, err := auth.GenerateTokens(context.Background(), repo.users["user-1"])
	require.NoError(t, err)

	// Act
	second, err := auth.RefreshTokens(context.Background(), first.RefreshToken)

	// Assert
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Len(t, repo.tokens, 1)

	_, err = auth.RefreshTokens(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken, "a used refresh token cannot be replayed")
}

func TestRefreshTokens_Expired(t *testing.T) {
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)
	tokens, err := auth.GenerateTokens(context.Background(), repo.users["user-1"])
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = auth.RefreshTokens(context.Background(), tokens.RefreshToken)

	assert.ErrorIs(t, err, identity.ErrInvalidToken)
	assert.Empty(t, repo.tokens)
}

func TestRevokeRefreshToken(t *testing.T) {
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)
	tokens, err := auth.GenerateTokens(context.Background(), repo.users["user-1"])
	require.NoError(t, err)

	require.NoError(t, auth.RevokeRefreshToken(context.Background(), tokens.RefreshToken))
	assert.Empty(t, repo.tokens)

	// Unknown tokens are ignored.
	assert.NoError(t, auth.RevokeRefreshToken(context.Background(), "unknown"))
}
