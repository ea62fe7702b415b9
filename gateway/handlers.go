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
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"querygate/platform/orchestrator"
	"querygate/platform/session"
)

// QueryRequest is the inbound payload for POST /api/v1/query. The token
// may arrive in the body or as an Authorization bearer header; the
// header wins when both are present.
type QueryRequest struct {
	Text  string `json:"text"`
	Token string `json:"token,omitempty"`
}

// QueryResponse is the terminal response for one query request
type QueryResponse struct {
	RequestID string       `json:"request_id"`
	Results   []StepResult `json:"results"`
	Summary   string       `json:"summary"`
}

// StepResult is one plan step outcome as presented to the caller.
// Denied steps name the missing capability and nothing else; error
// steps carry the error kind, never backend detail.
type StepResult struct {
	Capability string                 `json:"capability"`
	Status     string                 `json:"status"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleLogin verifies credentials and issues a bearer token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		sendError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	token, identity, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		sendError(w, "incorrect email or password", http.StatusUnauthorized)
		return
	}

	resp := loginResponse{AccessToken: token, TokenType: "bearer"}
	resp.User.Name = identity.Name
	resp.User.Email = identity.Email
	resp.User.Role = identity.Role

	writeJSON(w, http.StatusOK, resp)
}

// handleQuery is the single orchestration entry point: authenticate,
// plan, validate, dispatch, aggregate.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := "req-" + uuid.NewString()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.record("bad_request", time.Since(start).Milliseconds())
		sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.record("bad_request", time.Since(start).Milliseconds())
		sendError(w, "text is required", http.StatusBadRequest)
		return
	}

	token := bearerToken(r)
	if token == "" {
		token = req.Token
	}
	if token == "" {
		s.metrics.record("unauthenticated", time.Since(start).Milliseconds())
		sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	identity, err := s.auth.Validate(token)
	if err != nil {
		s.metrics.record("unauthenticated", time.Since(start).Milliseconds())
		sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	log.Printf("[Gateway] request %s identity=%s role=%s", requestID, identity.ID, identity.Role)

	s.appendSession(r, identity.ID, session.Message{Role: "user", Content: req.Text})

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	response, err := s.engine.HandleQuery(ctx, requestID, identity, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrUnauthenticated):
			s.metrics.record("unauthenticated", time.Since(start).Milliseconds())
			sendError(w, "authentication required", http.StatusUnauthorized)
		case errors.Is(err, orchestrator.ErrPlanningFailed):
			s.metrics.record("planning_error", time.Since(start).Milliseconds())
			sendError(w, "could not form a plan for this request", http.StatusServiceUnavailable)
		default:
			s.metrics.record("error", time.Since(start).Milliseconds())
			sendError(w, "request failed", http.StatusInternalServerError)
		}
		return
	}

	s.appendSession(r, identity.ID, session.Message{Role: "assistant", Content: response.Summary})

	results := make([]StepResult, len(response.Results))
	for i, step := range response.Results {
		results[i] = StepResult{
			Capability: string(step.Capability),
			Status:     string(step.Status),
			Payload:    step.Payload,
			ErrorKind:  step.ErrorKind,
			SkipReason: step.SkipReason,
		}
		s.metrics.recordStep(string(step.Status))
	}

	s.metrics.record("ok", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, QueryResponse{
		RequestID: response.RequestID,
		Results:   results,
		Summary:   response.Summary,
	})
}

// handleHistory returns the caller's recent conversation turns
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		sendError(w, "session store not configured", http.StatusServiceUnavailable)
		return
	}

	token := bearerToken(r)
	identity, err := s.auth.Validate(token)
	if err != nil {
		sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	history, err := s.sessions.History(r.Context(), identity.ID)
	if err != nil {
		sendError(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": history})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "querygate-gateway",
	})
}

// appendSession records a conversation turn; session failures are
// logged and ignored, chat history is best-effort.
func (s *Server) appendSession(r *http.Request, identityID string, msg session.Message) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Append(r.Context(), identityID, msg); err != nil {
		log.Printf("[Gateway] failed to append session message: %v", err)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func sendError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
