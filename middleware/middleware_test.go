package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/models"
	"rabbitquest/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens() *services.TokenService {
	return services.NewTokenService("middleware-test-secret-middleware-test", "issuer", "audience")
}

func whoAmI(c *gin.Context) {
	id, ok := UserID(c)
	c.JSON(http.StatusOK, gin.H{"id": id, "authenticated": ok, "admin": IsAdmin(c)})
}

func perform(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := newTokens()
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, zap.NewNop()), whoAmI)

	user, _ := tokens.IssueAccessToken(&models.User{ID: 3, Email: "u@x.com"}, nil)
	admin, _ := tokens.IssueAccessToken(&models.User{ID: 4, Email: "a@x.com"}, []string{models.RoleAdmin})
	foreign, _ := services.NewTokenService("some-other-secret-some-other-secret", "issuer", "audience").
		IssueAccessToken(&models.User{ID: 3}, nil)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "abc", http.StatusUnauthorized},
		{"foreign token", "/me", foreign, http.StatusUnauthorized},
		{"valid token", "/me", user, http.StatusOK},
		{"admin token", "/me", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, tt.path, tt.token)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRequiresBearerScheme(t *testing.T) {
	tokens := newTokens()
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, zap.NewNop()), whoAmI)

	token, _ := tokens.IssueAccessToken(&models.User{ID: 3}, nil)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	tokens := newTokens()
	r := gin.New()
	r.GET("/maybe", OptionalAuth(tokens), whoAmI)

	token, _ := tokens.IssueAccessToken(&models.User{ID: 9}, nil)
	admin, _ := tokens.IssueAccessToken(&models.User{ID: 2}, []string{models.RoleAdmin})

	for _, tt := range []struct {
		name  string
		token string
		want  string
	}{
		{"anonymous", "", `{"admin":false,"authenticated":false,"id":0}`},
		{"invalid token", "junk", `{"admin":false,"authenticated":false,"id":0}`},
		{"valid token", token, `{"admin":false,"authenticated":true,"id":9}`},
		{"admin token", admin, `{"admin":true,"authenticated":true,"id":2}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, "/maybe", tt.token)
			if w.Code != http.StatusOK || w.Body.String() != tt.want {
				t.Errorf("got %d %s, want 200 %s", w.Code, w.Body.String(), tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin for unknown site = %q, want none", got)
	}
}

func TestCORSWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"*"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := perform(r, http.MethodGet, "/ping", "")
	id := w.Header().Get(RequestIDHeader)
	if id == "" || w.Body.String() != id {
		t.Errorf("generated id = %q, body = %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "fixed-id" {
		t.Errorf("propagated id = %q, want fixed-id", got)
	}
}

