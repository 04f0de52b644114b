package service

import (
	"context"
	"fmt"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/store"
	"github.com/AlexFangSW/typephoon/internal/token"
)

// OAuthProvider exchanges an authorization code for the caller's namespaced
// identity. It is the one external collaborator this service never
// replaces with in-repo logic (spec §1 non-goal: building an identity
// provider, not talking to one).
type OAuthProvider interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (userID, username string, err error)
}

// AuthService implements login, logout, and token refresh for registered
// users (spec §4.3's token contract, grounded on
// original_source/services/auth.py and services/token.py).
type AuthService struct {
	states    *cache.OAuthStateStore
	users     *store.UserStore
	tokens    *token.Generator
	validator *token.Validator
	provider  OAuthProvider
}

// NewAuthService wires the collaborators an AuthService needs.
func NewAuthService(states *cache.OAuthStateStore, users *store.UserStore, tokens *token.Generator, validator *token.Validator, provider OAuthProvider) *AuthService {
	return &AuthService{states: states, users: users, tokens: tokens, validator: validator, provider: provider}
}

// Login issues a CSRF state nonce and returns the provider's authorization
// URL carrying it.
func (s *AuthService) Login(ctx context.Context) (string, error) {
	state, err := s.states.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("issuing oauth state: %w", err)
	}
	return s.provider.AuthorizationURL(state), nil
}

// LoginRedirect consumes the state, exchanges code for an identity,
// upserts the user row, and mints a fresh token pair (spec §4.3, §8 "OAuth
// login redirect").
func (s *AuthService) LoginRedirect(ctx context.Context, state, code string) (token.Pair, string, error) {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return token.Pair{}, "", fmt.Errorf("consuming oauth state: %w", err)
	}
	if !ok {
		return token.Pair{}, "", apperr.New(apperr.CodeInvalidToken, "unknown or expired oauth state")
	}

	userID, username, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return token.Pair{}, "", apperr.Wrap(apperr.CodeInvalidToken, "oauth code exchange failed", err)
	}

	if _, err := s.users.Upsert(ctx, userID, username); err != nil {
		return token.Pair{}, "", err
	}

	pair, err := s.tokens.TokenPair(userID, username)
	if err != nil {
		return token.Pair{}, "", err
	}
	if err := s.users.SetRefreshToken(ctx, userID, &pair.RefreshToken); err != nil {
		return token.Pair{}, "", err
	}
	return pair, username, nil
}

// Logout clears the stored refresh token so it can no longer be used to
// mint access tokens (spec §4.3).
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.users.ClearRefreshToken(ctx, userID)
}

// RefreshToken validates refreshToken, checks it against the one on file
// for its subject, and mints a fresh access token. A mismatch (stale
// cookie after a newer login, or a revoked session) is
// CodeRefreshTokenMismatch (spec §4.3, §7).
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.validator.Validate(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if user == nil || user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return "", apperr.New(apperr.CodeRefreshTokenMismatch, "refresh token does not match the one on file")
	}

	return s.tokens.AccessToken(user.ID, user.Name)
}
