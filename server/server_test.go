package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestreldb/kestrel/config"
	"github.com/kestreldb/kestrel/graph"
	kestreltesting "github.com/kestreldb/kestrel/internal/testing"
	"github.com/kestreldb/kestrel/kql"
	"github.com/kestreldb/kestrel/kql/schema"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	conn := kestreltesting.CreateTestDB(t)
	store := graph.NewSQLStore(conn, nil)
	engine := kql.NewEngine(store, schema.NewRegistry(), kql.Options{}, nil)
	cfg := &config.Config{}
	cfg.Server.Port = 0
	return New(engine, cfg, nil)
}

func postQuery(t *testing.T, s *Server, query string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleQuery(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	t.Run("executes upsert then find", func(t *testing.T) {
		s := newTestServer(t)

		rec := postQuery(t, s, "UPSERT Task {name: 'deploy', status: 'open'}")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = postQuery(t, s, "FIND Task WHERE name = 'deploy'")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp kql.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
	})

	t.Run("syntax errors map to 400", func(t *testing.T) {
		s := newTestServer(t)
		rec := postQuery(t, s, "FIND Task WHERE")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failures map to 422", func(t *testing.T) {
		s := newTestServer(t)
		rec := postQuery(t, s, "UPSERT Task {status: 'open'}")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		s := newTestServer(t)
		rec := postQuery(t, s, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get is not allowed", func(t *testing.T) {
		s := newTestServer(t)
		req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
		rec := httptest.NewRecorder()
		s.handleQuery(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleSchemas(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	rec := httptest.NewRecorder()
	s.handleSchemas(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Schemas []string `json:"schemas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Schemas, "Concept")
	assert.Contains(t, body.Schemas, "Proposition")
}

func TestRateLimiting(t *testing.T) {
	limiter := newClientLimiter(1)
	defer limiter.stop()

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"), "second request in the same second should be limited")
	assert.True(t, limiter.allow("10.0.0.2"), "distinct clients get distinct buckets")
}
