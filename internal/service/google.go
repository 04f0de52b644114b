package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlexFangSW/typephoon/internal/config"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"
	googleProvider = "google"
)

// GoogleProvider implements OAuthProvider against Google's OpenID Connect
// endpoints: it exchanges an authorization code for an id_token, then
// verifies that token's RS256 signature against Google's published JWKS
// (grounded on original_source/lib/oauth_providers/google.py).
type GoogleProvider struct {
	cfg    config.GoogleConfig
	client *http.Client

	keysMu      sync.Mutex
	keys        map[string]*jwtRSAPublicKey
	keysFetched time.Time
}

// NewGoogleProvider builds a GoogleProvider from the configured client
// registration.
func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// AuthorizationURL builds the consent-screen redirect URL carrying state.
func (p *GoogleProvider) AuthorizationURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {p.cfg.ClientID},
		"scope":         {"openid email profile"},
		"redirect_uri":  {p.cfg.RedirectURL},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return googleAuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	IDToken     string `json:"id_token"`
}

// Exchange trades an authorization code for Google's id_token, verifies
// it, and returns a namespaced user id plus display name.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (userID, username string, err error) {
	idToken, err := p.exchangeCodeForToken(ctx, code)
	if err != nil {
		return "", "", err
	}
	return p.verifyToken(ctx, idToken)
}

func (p *GoogleProvider) exchangeCodeForToken(ctx context.Context, code string) (string, error) {
	body := url.Values{
		"code":          {code},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"redirect_uri":  {p.cfg.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(body.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging code for token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google token endpoint returned %d", resp.StatusCode)
	}

	var parsed googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	return parsed.IDToken, nil
}

type jwtRSAPublicKey struct {
	kid string
	n   []byte
	e   []byte
}

type googleJWKSet struct {
	Keys []struct {
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// fetchKeys fetches and caches Google's signing keys for one minute, the
// same TTL as the original's alru_cache on get_google_public_key.
func (p *GoogleProvider) fetchKeys(ctx context.Context) (map[string]*jwtRSAPublicKey, error) {
	p.keysMu.Lock()
	defer p.keysMu.Unlock()

	if p.keys != nil && time.Since(p.keysFetched) < time.Minute {
		return p.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleCertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building jwks request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching google jwks: %w", err)
	}
	defer resp.Body.Close()

	var set googleJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding google jwks: %w", err)
	}

	keys := make(map[string]*jwtRSAPublicKey, len(set.Keys))
	for _, k := range set.Keys {
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &jwtRSAPublicKey{kid: k.Kid, n: n, e: e}
	}

	p.keys = keys
	p.keysFetched = time.Now()
	return keys, nil
}

func (p *GoogleProvider) verifyToken(ctx context.Context, idToken string) (userID, username string, err error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return "", "", fmt.Errorf("parsing id_token header: %w", err)
	}
	kid, _ := unverified.Header["kid"].(string)

	keys, err := p.fetchKeys(ctx)
	if err != nil {
		return "", "", err
	}
	key, ok := keys[kid]
	if !ok {
		return "", "", fmt.Errorf("no matching google signing key for kid %q", kid)
	}

	pubKey := &rsa.PublicKey{N: new(big.Int).SetBytes(key.n), E: int(new(big.Int).SetBytes(key.e).Int64())}

	var claims jwt.MapClaims
	_, err = jwt.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pubKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", "", fmt.Errorf("verifying id_token signature: %w", err)
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return "", "", fmt.Errorf("id_token missing sub claim")
	}
	return fmt.Sprintf("%s-%s", googleProvider, sub), name, nil
}
