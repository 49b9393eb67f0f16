package services

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rabbitquest/models"
)

const (
	testSecret   = "test-secret-that-is-long-enough-for-hs256"
	testIssuer   = "rabbitquest-test"
	testAudience = "rabbitquest-test-clients"
)

func newTestTokenService() *TokenService {
	return NewTokenService(testSecret, testIssuer, testAudience)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService()
	user := &models.User{ID: 42, Email: "a@x.com"}

	token, err := ts.IssueAccessToken(user, []string{models.RoleAdmin})
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if !ts.ValidateAccessToken(token) {
		t.Fatal("ValidateAccessToken() = false, want true")
	}

	claims, err := ts.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Errorf("UserID() = %d, %v; want 42", id, err)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if !claims.HasRole(models.RoleAdmin) {
		t.Errorf("roles = %v, want Admin", claims.Roles)
	}
	if claims.ID == "" {
		t.Error("jti is empty")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != AccessTokenLifetime {
		t.Errorf("lifetime = %v, want %v", got, AccessTokenLifetime)
	}
}

func TestAccessTokenUniquePerIssue(t *testing.T) {
	ts := newTestTokenService()
	user := &models.User{ID: 1, Email: "a@x.com"}

	a, _ := ts.IssueAccessToken(user, nil)
	b, _ := ts.IssueAccessToken(user, nil)
	if a == b {
		t.Fatal("two issued tokens are identical")
	}
}

func TestValidateAccessTokenRejects(t *testing.T) {
	ts := newTestTokenService()
	user := &models.User{ID: 7, Email: "u@x.com"}

	valid, err := ts.IssueAccessToken(user, nil)
	if err != nil {
		t.Fatal(err)
	}

	expired := func() string {
		old := newTestTokenService()
		old.now = func() time.Time { return time.Now().Add(-AccessTokenLifetime - time.Second) }
		tok, _ := old.IssueAccessToken(user, nil)
		return tok
	}()

	otherKey, _ := NewTokenService("another-secret-another-secret-xx", testIssuer, testAudience).IssueAccessToken(user, nil)
	otherIssuer, _ := NewTokenService(testSecret, "someone-else", testAudience).IssueAccessToken(user, nil)
	otherAudience, _ := NewTokenService(testSecret, testIssuer, "someone-else").IssueAccessToken(user, nil)

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "7",
		"iss": testIssuer,
		"aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", otherKey},
		{"wrong issuer", otherIssuer},
		{"wrong audience", otherAudience},
		{"alg none", unsigned},
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"tampered", valid[:len(valid)-2] + "xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ts.ValidateAccessToken(tt.token) {
				t.Errorf("ValidateAccessToken(%s) = true, want false", tt.name)
			}
		})
	}
}

func TestIssueRefreshToken(t *testing.T) {
	ts := newTestTokenService()

	a, err := ts.IssueRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("refresh token is not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded length = %d, want 32", len(raw))
	}

	b, _ := ts.IssueRefreshToken()
	if a == b {
		t.Error("refresh tokens repeat")
	}
}
