package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "restorae.identity"
)

func testConfig() Config {
	return Config{Secret: testSecret, Issuer: testIssuer}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"iss":       testIssuer,
		"scopes":    []string{ScopeSessionsRead, ScopeSessionsWrite},
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, testSecret, validClaims())

	claims, err := Parse(token, testConfig())
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.True(t, claims.HasScope(ScopeSessionsRead))
	require.True(t, claims.HasScope(ScopeSessionsWrite))
	require.False(t, claims.HasScope("sessions:admin"))
}

func TestParseRejectsEmptyToken(t *testing.T) {
	_, err := Parse("  ", testConfig())
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", validClaims())

	_, err := Parse(token, testConfig())
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	claims := validClaims()
	claims["iss"] = "someone-else"
	token := signToken(t, testSecret, claims)

	_, err := Parse(token, testConfig())
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	token := signToken(t, testSecret, claims)

	_, err := Parse(token, testConfig())
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingTenant(t *testing.T) {
	claims := validClaims()
	delete(claims, "tenant_id")
	token := signToken(t, testSecret, claims)

	_, err := Parse(token, testConfig())
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAcceptsSpaceJoinedScopes(t *testing.T) {
	claims := validClaims()
	claims["scopes"] = ScopeSessionsRead + " " + ScopeSessionsWrite
	token := signToken(t, testSecret, claims)

	parsed, err := Parse(token, testConfig())
	require.NoError(t, err)
	require.True(t, parsed.HasScope(ScopeSessionsRead))
	require.True(t, parsed.HasScope(ScopeSessionsWrite))
}

func TestNormalizeScopesVariants(t *testing.T) {
	require.Empty(t, normalizeScopes(nil))
	require.Empty(t, normalizeScopes(42))

	fromList := normalizeScopes([]interface{}{ScopeSessionsRead, "", 7})
	require.Len(t, fromList, 1)

	fromString := normalizeScopes("  a  b ")
	require.Len(t, fromString, 2)
}

func TestHasScopeOnNilClaims(t *testing.T) {
	var claims *Claims
	require.False(t, claims.HasScope(ScopeSessionsRead))
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	m := NewMiddleware(testConfig())

	called := false
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := FromContext(r.Context())
		require.False(t, ok)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.True(t, called)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	m := NewMiddleware(testConfig())
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareRejectsNonBearerHeader(t *testing.T) {
	m := NewMiddleware(testConfig())
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareInjectsClaims(t *testing.T) {
	m := NewMiddleware(testConfig())
	token := signToken(t, testSecret, validClaims())

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "tenant-1", claims.TenantID)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}
