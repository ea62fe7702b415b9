// Copyright 2025 QueryGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/platform/llm"
	"querygate/platform/orchestrator"
	"querygate/platform/session"
	"querygate/platform/tools"
	"querygate/platform/tools/docsearch"
)

// scriptedClient feeds the planner and summarizer canned completions
type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string, options llm.QueryOptions) (*llm.Completion, error) {
	if c.calls >= len(c.responses) {
		return &llm.Completion{Content: "done", Provider: "scripted"}, nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return &llm.Completion{Content: resp, Provider: "scripted"}, nil
}

func newTestServer(t *testing.T, client llm.Client, withSessions bool) *Server {
	return newTestServerWithTimeout(t, client, withSessions, 0)
}

func newTestServerWithTimeout(t *testing.T, client llm.Client, withSessions bool, timeout time.Duration) *Server {
	t.Helper()

	registry, err := orchestrator.NewRegistry(nil)
	require.NoError(t, err)
	audit := orchestrator.NewAuditSink("")
	t.Cleanup(audit.Close)

	search, err := docsearch.New(context.Background(), "")
	require.NoError(t, err)

	gatekeeper := orchestrator.NewGatekeeper(registry, audit)
	planner := orchestrator.NewPlanner(client)
	summarizer := orchestrator.NewSummarizer(client)
	dispatcher := orchestrator.NewDispatcher([]tools.Adapter{search}, audit, 4, 1, time.Millisecond)
	engine := orchestrator.NewEngine(gatekeeper, planner, dispatcher, summarizer, audit)

	auth, err := NewAuthenticator("test-secret", 30*time.Minute)
	require.NoError(t, err)

	var sessions *session.Manager
	if withSessions {
		mr := miniredis.RunT(t)
		sessions = session.NewManagerWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { sessions.Close() })
	}

	return NewServer(auth, engine, sessions, audit, timeout)
}

// stallingClient blocks until its context is cancelled, the way a hung
// provider would under a request deadline.
type stallingClient struct{}

func (stallingClient) Complete(ctx context.Context, prompt string, options llm.QueryOptions) (*llm.Completion, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func loginAs(t *testing.T, server *Server, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func postQuery(server *Server, token, text string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(QueryRequest{Text: text})
	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleLogin(t *testing.T) {
	server := newTestServer(t, &scriptedClient{}, false)

	token := loginAs(t, server, "viewer@example.com", "viewer123")
	assert.NotEmpty(t, token)

	body, _ := json.Marshal(map[string]string{"email": "viewer@example.com", "password": "wrong"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleQuery_RequiresAuthentication(t *testing.T) {
	server := newTestServer(t, &scriptedClient{}, false)

	rec := postQuery(server, "", "find the handbook")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postQuery(server, "not-a-token", "find the handbook")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleQuery_RequiresText(t *testing.T) {
	server := newTestServer(t, &scriptedClient{}, false)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	rec := postQuery(server, token, "   ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuery_EndToEnd(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"steps": [{"capability": "search-documents", "args": {"query": "handbook"}}]}`,
		"The handbook covers employee benefits.",
	}}
	server := newTestServer(t, client, false)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	rec := postQuery(server, token, "find the handbook")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "search-documents", resp.Results[0].Capability)
	assert.Equal(t, "success", resp.Results[0].Status)
	assert.Equal(t, "The handbook covers employee benefits.", resp.Summary)
}

func TestHandleQuery_PlanningFailure(t *testing.T) {
	client := &scriptedClient{responses: []string{"not a plan"}}
	server := newTestServer(t, client, false)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	rec := postQuery(server, token, "find the handbook")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleQuery_TimeoutBoundsPlanning(t *testing.T) {
	server := newTestServerWithTimeout(t, stallingClient{}, false, 25*time.Millisecond)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	start := time.Now()
	rec := postQuery(server, token, "find the handbook")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Less(t, time.Since(start), 5*time.Second, "the deadline must cut off a hung planning call")
}

func TestHandleQuery_TokenInBody(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"steps": []}`}}
	server := newTestServer(t, client, false)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	body, _ := json.Marshal(QueryRequest{Text: "hello", Token: token})
	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"steps": []}`,
	}}
	server := newTestServer(t, client, true)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	rec := postQuery(server, token, "just saying hello")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest("GET", "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	histRec := httptest.NewRecorder()
	server.Router().ServeHTTP(histRec, req)
	require.Equal(t, http.StatusOK, histRec.Code)

	var resp struct {
		Messages []session.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "just saying hello", resp.Messages[0].Content)
	assert.Equal(t, "assistant", resp.Messages[1].Role)
}

func TestHandleHistory_WithoutStore(t *testing.T) {
	server := newTestServer(t, &scriptedClient{}, false)
	token := loginAs(t, server, "viewer@example.com", "viewer123")

	req := httptest.NewRequest("GET", "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, &scriptedClient{}, false)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
