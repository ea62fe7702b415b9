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

package tools

import (
	"context"

	"querygate/platform/shared/types"
)

// Adapter is the uniform execution wrapper around one tool backend.
// Each adapter declares exactly one required capability. Adapters validate
// their own arguments and scope results to the identity, but never make
// authorization decisions; that belongs to the gatekeeper alone.
type Adapter interface {
	// Name returns the adapter instance name used in logs and audit records
	Name() string

	// Capability returns the single capability this adapter requires
	Capability() types.Capability

	// Invoke executes the backend call. dedupeKey is stable across retries
	// of the same step, so side-effecting adapters can commit exactly once.
	Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *ToolError)
}

// ErrorKind classifies adapter failures. The dispatcher retries
// unavailable and timeout; bad-input is never retried.
type ErrorKind string

const (
	ErrBadInput    ErrorKind = "bad-input"
	ErrUnavailable ErrorKind = "unavailable"
	ErrTimeout     ErrorKind = "timeout"
)

// ToolError is the failure result of one adapter invocation
type ToolError struct {
	Tool    string
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return e.Tool + ": " + string(e.Kind) + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Tool + ": " + string(e.Kind) + ": " + e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the dispatcher may re-issue the invocation
func (e *ToolError) Retryable() bool {
	return e.Kind == ErrUnavailable || e.Kind == ErrTimeout
}

// NewToolError creates a ToolError for the named adapter
func NewToolError(tool string, kind ErrorKind, message string, cause error) *ToolError {
	return &ToolError{
		Tool:    tool,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}
