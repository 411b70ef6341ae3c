package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/middleware"
)

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("access-secret", "refresh-secret", "hydit-test", time.Minute, time.Hour)
}

func TestRateLimitBucketsPerClient(t *testing.T) {
	handler := middleware.RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1234"))
	// Another client keeps its own bucket.
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1234"))
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	handler := middleware.RateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestAuthRejectsMissingBearer(t *testing.T) {
	mw := middleware.NewAuthMiddleware(testTokenManager(), "dev", nil)
	handler := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthPlacesTokenClaimsInContext(t *testing.T) {
	tm := testTokenManager()
	access, _, _, err := tm.GeneratePair("subj-1", "certifier")
	require.NoError(t, err)

	mw := middleware.NewAuthMiddleware(tm, "prod", nil)
	var gotSubject, gotRole string
	handler := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = middleware.Subject(r.Context())
		gotRole, _ = middleware.Role(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "subj-1", gotSubject)
	assert.Equal(t, "certifier", gotRole)
}

func TestDevBypassResolvesStoredRole(t *testing.T) {
	roles := map[string]string{"subj-admin": "admin"}
	mw := middleware.NewAuthMiddleware(testTokenManager(), "dev", func(_ context.Context, subject string) (string, bool) {
		r, ok := roles[subject]
		return r, ok
	})

	var gotSubject, gotRole string
	handler := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = middleware.Subject(r.Context())
		gotRole, _ = middleware.Role(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev-subj-admin")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "subj-admin", gotSubject)
	assert.Equal(t, "admin", gotRole)

	// Unknown subjects fall back to buyer.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev-subj-new")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "buyer", gotRole)
}

func TestDevBypassDisabledOutsideDev(t *testing.T) {
	mw := middleware.NewAuthMiddleware(testTokenManager(), "prod", nil)
	handler := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev-subj-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
