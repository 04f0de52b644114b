// Package token mints and validates the RS256 access/refresh tokens
// described in spec §3 (Token payload) and §6 (TokenLayer config). The
// one-shot guest-token store used by QueueIn lives in internal/cache.
package token

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/model"
)

// Claims is the JWT payload shape from spec §3: {sub, name, exp, nbf, iat,
// user_type}.
type Claims struct {
	Subject  string          `json:"sub"`
	Name     string          `json:"name"`
	UserType model.UserType  `json:"user_type"`
	jwt.RegisteredClaims
}

// Generator mints access and refresh tokens. Guest access tokens carry the
// refresh_duration lifetime, not access_duration, since guests never
// refresh (spec §3).
type Generator struct {
	privateKey      *rsa.PrivateKey
	accessDuration  time.Duration
	refreshDuration time.Duration
}

// NewGenerator builds a Generator from a PEM-encoded RSA private key.
func NewGenerator(privateKeyPEM []byte, accessDuration, refreshDuration time.Duration) (*Generator, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA private key: %w", err)
	}
	return &Generator{privateKey: key, accessDuration: accessDuration, refreshDuration: refreshDuration}, nil
}

func (g *Generator) sign(userID, name string, userType model.UserType, duration time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Subject:  userID,
		Name:     name,
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(g.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// AccessToken mints a registered-user access token (access_duration).
func (g *Generator) AccessToken(userID, name string) (string, error) {
	return g.sign(userID, name, model.UserTypeRegistered, g.accessDuration)
}

// RefreshToken mints a registered-user refresh token (refresh_duration).
func (g *Generator) RefreshToken(userID, name string) (string, error) {
	return g.sign(userID, name, model.UserTypeRegistered, g.refreshDuration)
}

// GuestAccessToken mints a guest access token. Its lifetime is
// refresh_duration, not access_duration, and user_type=GUEST so validators
// can tell guests can't hit the refresh endpoint (spec §3).
func (g *Generator) GuestAccessToken(userID, name string) (string, error) {
	return g.sign(userID, name, model.UserTypeGuest, g.refreshDuration)
}

// Pair is an access+refresh token pair minted together on login.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// TokenPair mints both tokens for a freshly logged-in registered user.
func (g *Generator) TokenPair(userID, name string) (Pair, error) {
	access, err := g.AccessToken(userID, name)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := g.RefreshToken(userID, name)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Validator validates tokens minted by a Generator holding the matching
// private key.
type Validator struct {
	publicKey *rsa.PublicKey
}

// NewValidator builds a Validator from a PEM-encoded RSA public key.
func NewValidator(publicKeyPEM []byte) (*Validator, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing RSA public key: %w", err)
	}
	return &Validator{publicKey: key}, nil
}

// Validate parses and verifies tokenString, returning its claims. Any
// parse/signature/expiry failure is surfaced as apperr.CodeInvalidToken
// (spec §4.3 step 1, §7).
func (v *Validator) Validate(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.CodeInvalidToken, "token validation failed", err)
	}
	return claims, nil
}
