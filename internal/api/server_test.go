package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/internal/api"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	memoryrepo "github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
)

type testServer struct {
	*httptest.Server
	token string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := memoryrepo.New()
	adminID, err := repo.CreateUser(context.Background(), &simplepublish.User{
		Login: "admin",
		Email: "admin@example.com",
		Role:  "administrator",
	})
	require.NoError(t, err)

	svc, err := simplepublish.New(
		simplepublish.WithRepository(repo),
		simplepublish.WithCapabilityGate(simplepublish.NewRoleGate(repo, simplepublish.DefaultGrants())),
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := api.NewServer(svc, logger, "test-secret")

	_, token, err := server.TokenAuth().Encode(map[string]interface{}{"user_id": adminID})
	require.NoError(t, err)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthz(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/posts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostRoundTrip(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/posts", map[string]any{
		"post_type":   "post",
		"publish":     true,
		"title":       "Hello",
		"description": "body text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		PostID int64 `json:"post_id"`
	}
	decode(t, resp, &created)
	require.NotZero(t, created.PostID)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.PostID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var projection map[string]any
	decode(t, resp, &projection)
	assert.Equal(t, "Hello", projection["title"])
	assert.Equal(t, "publish", projection["post_status"])

	resp = ts.do(t, http.MethodPost, "/api/v1/posts/delete", map[string]any{
		"post_ids": []int64{created.PostID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", created.PostID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestInvalidRequestRejected(t *testing.T) {
	ts := setupTestServer(t)

	// Unknown post type surfaces as 404 with a coded body.
	resp := ts.do(t, http.MethodPost, "/api/v1/posts", map[string]any{
		"post_type": "bulletin",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "not_found", body.Code)
	assert.NotEmpty(t, body.Message)
}

func TestUserEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/users", map[string]any{
		"username": "alice",
		"password": "secret",
		"email":    "alice@example.com",
		"role":     "author",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		UserID int64 `json:"user_id"`
	}
	decode(t, resp, &created)
	require.NotZero(t, created.UserID)

	resp = ts.do(t, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	decode(t, resp, &me)
	assert.Equal(t, "admin", me["username"])
}
