package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"iris-api/apperr"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                   "auth0|123",
		"iss":                   "https://iris.test/",
		"aud":                   "iris-api",
		"exp":                   testNow.Add(time.Hour).Unix(),
		DefaultPermissionsClaim: []string{"view:dgevents", "signup:dgevent"},
	}
}

func hsVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{
		Issuer:     "https://iris.test/",
		Audience:   "iris-api",
		HMACSecret: testSecret,
		Now:        func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifyHS256(t *testing.T) {
	v := hsVerifier(t)
	id, err := v.Verify(sign(t, jwt.SigningMethodHS256, testSecret, baseClaims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "auth0|123" {
		t.Fatalf("subject = %q", id.Subject)
	}
	if !id.Has("view:dgevents") || !id.Has("signup:dgevent") || id.Has("view:dsbevents") {
		t.Fatalf("permissions = %v", id.Permissions)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := hsVerifier(t)

	expired := baseClaims()
	expired["exp"] = testNow.Add(-time.Hour).Unix()
	wrongAud := baseClaims()
	wrongAud["aud"] = "someone-else"
	wrongIss := baseClaims()
	wrongIss["iss"] = "https://evil.test/"
	noSub := baseClaims()
	delete(noSub, "sub")
	noExp := baseClaims()
	delete(noExp, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", sign(t, jwt.SigningMethodHS256, testSecret, expired)},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, testSecret, wrongAud)},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, testSecret, wrongIss)},
		{"no subject", sign(t, jwt.SigningMethodHS256, testSecret, noSub)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, testSecret, noExp)},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), baseClaims())},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, testSecret, baseClaims())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Fatalf("Verify error = %v, want unauthenticated", err)
			}
		})
	}
}

func TestVerifyRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(VerifierConfig{PublicKeyPEM: pemBytes, Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	id, err := v.Verify(sign(t, jwt.SigningMethodRS256, key, baseClaims()))
	if err != nil || id.Subject != "auth0|123" {
		t.Fatalf("Verify = %+v, %v", id, err)
	}

	// An HMAC token signed with the public key bytes must not pass.
	forged := sign(t, jwt.SigningMethodHS256, pemBytes, baseClaims())
	if _, err := v.Verify(forged); err == nil {
		t.Fatal("accepted HS256 token on an RS256 verifier")
	}
}

func TestNewVerifierNeedsKey(t *testing.T) {
	if _, err := NewVerifier(VerifierConfig{}); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := NewVerifier(VerifierConfig{HMACSecret: testSecret, PublicKeyPEM: []byte("x")}); err == nil {
		t.Fatal("expected error with both keys")
	}
	if _, err := NewVerifier(VerifierConfig{PublicKeyPEM: []byte("not pem")}); err == nil {
		t.Fatal("expected error for bad pem")
	}
}

func TestPermissionsClaimShapes(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{HMACSecret: testSecret, PermissionsClaim: "scope", Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatal(err)
	}
	c := baseClaims()
	c["scope"] = "view:dsbevents signup:dsbevent"
	id, err := v.Verify(sign(t, jwt.SigningMethodHS256, testSecret, c))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !slices.Equal(id.Permissions, []string{"view:dsbevents", "signup:dsbevent"}) {
		t.Fatalf("permissions = %v", id.Permissions)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context has identity")
	}
	ctx := WithIdentity(context.Background(), Identity{Subject: "u1"})
	id, ok := FromContext(ctx)
	if !ok || id.Subject != "u1" {
		t.Fatalf("FromContext = %+v, %v", id, ok)
	}
}

func TestGroupPolicy(t *testing.T) {
	p := NewGroupPolicy(DefaultGroups())

	if got := p.ViewGroups([]string{"view:dgevents", "signup:dsbevent"}); !slices.Equal(got, []string{"DutchGarrison"}) {
		t.Fatalf("ViewGroups = %v", got)
	}
	if got := p.ViewGroups(nil); len(got) != 0 {
		t.Fatalf("ViewGroups(nil) = %v", got)
	}
	if !p.CanSignUpFor([]string{"signup:dsbevent"}, []string{"DutchGarrison", "DuneSeaBase"}) {
		t.Fatal("dsb member cannot sign up for shared event")
	}
	if p.CanSignUpFor([]string{"signup:dsbevent"}, []string{"DutchGarrison"}) {
		t.Fatal("dsb member can sign up for dg event")
	}
}

func TestNormalizeUserID(t *testing.T) {
	tests := map[string]string{
		"auth0-5c1f":      "auth0|5c1f",
		"auth0|5c1f":      "auth0|5c1f",
		"google-oauth2|1": "google-oauth2|1",
		"plain":           "plain",
	}
	for in, want := range tests {
		if got := NormalizeUserID(in); got != want {
			t.Errorf("NormalizeUserID(%q) = %q, want %q", in, got, want)
		}
	}
}
