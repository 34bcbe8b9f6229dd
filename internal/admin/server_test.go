package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adminmw "github.com/maumercado/queuectl/internal/admin/middleware"
	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
)

const testJWTSecret = "test-secret-at-least-32-bytes-long!"

func newTestServer(t *testing.T) (*Server, *queue.Manager) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "queuectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	mgr := queue.New(st, bus)

	srv := NewServer(mgr, bus, Options{JWTSecret: testJWTSecret, RateLimitRPS: 1000})
	return srv, mgr
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Enqueue(context.Background(), "", "echo hi", 3, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	jobs, ok := body["jobs"].([]interface{})
	require.True(t, ok)
	assert.Len(t, jobs, 1)
}

func TestServer_Status(t *testing.T) {
	srv, mgr := newTestServer(t)
	_, err := mgr.Enqueue(context.Background(), "", "echo hi", 3, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status queue.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Pending)
}

func TestServer_DLQRetry_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dlq/missing/retry", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_DLQRetry_WithValidToken(t *testing.T) {
	srv, mgr := newTestServer(t)
	j, err := mgr.Enqueue(context.Background(), "", "exit 1", 1, nil)
	require.NoError(t, err)

	claimed, err := mgr.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Equal(t, j.ID, claimed.ID)
	claimed.Attempts = 1
	backoff := job.BackoffPolicy{Base: 2, MaxDelay: time.Second}
	require.NoError(t, mgr.ReportFailure(context.Background(), claimed, "boom", time.Millisecond, backoff))

	token, err := adminmw.IssueToken(testJWTSecret, "operator", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dlq/"+j.ID+"/retry", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
