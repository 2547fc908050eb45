// Package jwt implements identity.Authenticator with HS256 access tokens and
// opaque refresh tokens stored by hash.
package jwt

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "statusroom"

// Config holds token settings.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Claims are the access token claims.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues JWT access tokens and rotating refresh tokens.
type Authenticator struct {
	repo   identity.Repository
	config Config
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(repo identity.Repository, config Config) *Authenticator {
	return &Authenticator{
		repo:   repo,
		config: config,
		now:    time.Now,
	}
}

// Type returns the authenticator type.
func (a *Authenticator) Type() string {
	return "jwt"
}

// GenerateTokens issues an access token and stores a new refresh token.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := a.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	err = a.repo.SaveRefreshToken(ctx, &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(a.config.RefreshTokenDuration),
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccessToken returns the subject and role of a valid access token.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (string, domain.Role, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return "", "", identity.ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.IsValid() {
		return "", "", identity.ErrInvalidToken
	}
	return claims.Subject, claims.Role, nil
}

// RefreshTokens rotates a refresh token: the presented token is consumed and
// a new pair is issued.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	hash := hashToken(refreshToken)

	stored, err := a.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	// Deletion decides the winner when the same token is presented twice.
	if err := a.repo.DeleteRefreshToken(ctx, hash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}
	if !a.now().Before(stored.ExpiresAt) {
		return nil, identity.ErrInvalidToken
	}

	user, err := a.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken deletes a refresh token. Unknown tokens are ignored.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	err := a.repo.DeleteRefreshToken(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
