package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"iris-api/apperr"
)

// DefaultPermissionsClaim is the custom claim the identity provider puts
// permissions in.
const DefaultPermissionsClaim = "http://iris.501st.nl/claims/permissions"

// VerifierConfig defines how bearer tokens are checked. Exactly one of
// PublicKeyPEM (RS256) or HMACSecret (HS256) must be set.
type VerifierConfig struct {
	Issuer           string
	Audience         string
	PublicKeyPEM     []byte
	HMACSecret       []byte
	PermissionsClaim string
	Now              func() time.Time
}

// Verifier validates tokens and extracts identities.
type Verifier struct {
	key     any
	method  string
	claim   string
	options []jwt.ParserOption
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{claim: cfg.PermissionsClaim}
	if v.claim == "" {
		v.claim = DefaultPermissionsClaim
	}

	switch {
	case len(cfg.PublicKeyPEM) > 0 && len(cfg.HMACSecret) > 0:
		return nil, errors.New("configure either a public key or an hmac secret, not both")
	case len(cfg.PublicKeyPEM) > 0:
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse token public key: %w", err)
		}
		v.key, v.method = key, jwt.SigningMethodRS256.Alg()
	case len(cfg.HMACSecret) > 0:
		v.key, v.method = cfg.HMACSecret, jwt.SigningMethodHS256.Alg()
	default:
		return nil, errors.New("token verification key is required")
	}

	v.options = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Now != nil {
		v.options = append(v.options, jwt.WithTimeFunc(cfg.Now))
	}
	return v, nil
}

// Verify parses token and returns the identity it asserts.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, apperr.New(apperr.CodeUnauthenticated, "bearer token is required")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Identity{}, apperr.New(apperr.CodeUnauthenticated, "token subject is required")
	}
	return Identity{Subject: sub, Permissions: permissions(claims[v.claim])}, nil
}

// permissions accepts a JSON array of strings or a space-separated string.
func permissions(raw any) []string {
	switch p := raw.(type) {
	case []any:
		out := make([]string, 0, len(p))
		for _, v := range p {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(p)
	}
	return []string{}
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperr.Wrap(apperr.CodeUnauthenticated, "token was not issued for this service", err)
	default:
		return apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
}
