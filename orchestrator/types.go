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

package orchestrator

import (
	"errors"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Request-level outcomes. These short-circuit the whole request, unlike
// per-step failures which only mark their own step.
var (
	// ErrUnauthenticated means the caller's identity could not be
	// established. Distinct from a capability denial.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPlanningFailed means the planning model produced no usable plan
	// (malformed output or upstream unavailability)
	ErrPlanningFailed = errors.New("planning failed")
)

// PlanStep is one proposed tool invocation emitted by the planning model.
// Args are untyped here; each adapter validates its own payload.
type PlanStep struct {
	Index      int                    `json:"index"`
	Capability types.Capability       `json:"capability"`
	Args       map[string]interface{} `json:"args,omitempty"`
	DependsOn  *int                   `json:"depends_on,omitempty"`
}

// StepStatus is the closed set of terminal per-step outcomes
type StepStatus string

const (
	StatusSuccess StepStatus = "success"
	StatusDenied  StepStatus = "denied"
	StatusError   StepStatus = "error"
	StatusSkipped StepStatus = "skipped"
)

// Skip reasons surfaced in ExecutionResult when Status is skipped
const (
	SkipDependencyFailed = "dependency-failed"
	SkipCancelled        = "cancelled"
)

// ErrKindPlanIntegrity marks a step the planner emitted that cannot be
// interpreted against the capability registry: an unknown capability
// name or a broken dependency reference. A known capability the caller
// lacks is not an integrity error; validation denies it instead.
const ErrKindPlanIntegrity = "plan-integrity"

// ExecutionResult is the terminal outcome of exactly one plan step
type ExecutionResult struct {
	Index      int                    `json:"index"`
	Capability types.Capability       `json:"capability"`
	Status     StepStatus             `json:"status"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Error      *tools.ToolError       `json:"-"`
	ErrorKind  string                 `json:"error_kind,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

// Succeeded reports whether the step completed with a success payload
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Response is what the caller ultimately receives: every step's outcome in
// original plan order, plus a natural-language summary synthesized only
// from success payloads.
type Response struct {
	RequestID string            `json:"request_id"`
	Results   []ExecutionResult `json:"results"`
	Summary   string            `json:"summary"`
}

// State tracks the orchestrator's progress through one request
type State string

const (
	StateReceived      State = "received"
	StateAuthenticated State = "authenticated"
	StatePlanning      State = "planning"
	StateValidating    State = "validating"
	StateDispatching   State = "dispatching"
	StateAggregating   State = "aggregating"
	StateResponded     State = "responded"
	StateRejected      State = "rejected"
)

// Decision is the gatekeeper's answer for one (identity, capability) pair
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)
