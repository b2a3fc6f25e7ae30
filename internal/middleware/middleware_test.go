package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

const secret = "test-secret"

func TestAuth(t *testing.T) {
	var seen string
	h := middleware.Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.ContextProvider{}.CurrentUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := middleware.IssueToken(secret, "u1", "alice", time.Hour)
	require.NoError(t, err)
	forged, err := middleware.IssueToken("other-secret", "u1", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := middleware.IssueToken(secret, "u1", "alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusNoContent, wantUser: "u1"},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}

func TestLogging_RecordsAuthenticatedUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}
	h := middleware.Logging(log)(middleware.Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	token, err := middleware.IssueToken(secret, "u1", "alice", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.NotContains(t, entries[1].ContextMap(), "user_id")
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestLogging_SetsCorrelationID(t *testing.T) {
	var fromCtx string
	h := middleware.Logging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = middleware.GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", fromCtx)
	assert.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, middleware.ValidateMessageContent("hello"))
	assert.Error(t, middleware.ValidateMessageContent(strings.Repeat("x", middleware.MaxMessageLength+1)))
	assert.Error(t, middleware.ValidateMessageContent("\xff"))

	assert.NoError(t, middleware.ValidateConversationID("0190a5b2-7c4e-7d3a-9b1e-2f6c8d4e5a10"))
	assert.Error(t, middleware.ValidateConversationID("c1"))

	assert.NoError(t, middleware.ValidateUserID("u1"))
	assert.Error(t, middleware.ValidateUserID(""))
	assert.Error(t, middleware.ValidateUserID("a.b"))
}

func TestUserRateLimit(t *testing.T) {
	h := middleware.UserRateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(identity.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	assert.Equal(t, http.StatusOK, do("u2"))
}
