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
	"context"
	"sort"
	"time"

	"querygate/platform/shared/logger"
	"querygate/platform/shared/types"
)

// Engine coordinates one request through the orchestration state machine:
//
//	Received → Authenticated → Planning → Validating → Dispatching →
//	Aggregating → Responded
//
// with Rejected reachable from Received (unauthenticated) and Planning
// (planning failure). The validation pass is strictly sequential and
// finishes before any dispatch, so no tool call can be in flight for a
// step that was denied.
type Engine struct {
	gatekeeper *Gatekeeper
	planner    *Planner
	dispatcher *Dispatcher
	summarizer *Summarizer
	audit      *AuditSink
	logger     *logger.Logger
}

// NewEngine wires the orchestration engine from its collaborators
func NewEngine(gatekeeper *Gatekeeper, planner *Planner, dispatcher *Dispatcher, summarizer *Summarizer, audit *AuditSink) *Engine {
	return &Engine{
		gatekeeper: gatekeeper,
		planner:    planner,
		dispatcher: dispatcher,
		summarizer: summarizer,
		audit:      audit,
		logger:     logger.New("engine"),
	}
}

// HandleQuery runs a single authenticated request end to end. The caller
// provides the identity verbatim from the authentication collaborator;
// the engine does not re-derive roles from anywhere else.
//
// Errors returned are request-level: ErrUnauthenticated or
// ErrPlanningFailed (possibly wrapped). Per-step failures never surface
// as errors; they appear as results inside the Response.
func (e *Engine) HandleQuery(ctx context.Context, requestID string, identity types.Identity, query string) (*Response, error) {
	start := time.Now()
	state := StateReceived

	// Received → Authenticated. Authentication itself happened upstream;
	// here we establish what this identity is allowed to do. An unusable
	// identity rejects the whole request.
	allowed, err := e.gatekeeper.AllowedCapabilities(identity)
	if err != nil {
		e.transition(identity, requestID, state, StateRejected)
		return nil, err
	}
	state = e.transition(identity, requestID, state, StateAuthenticated)

	// Authenticated → Planning
	state = e.transition(identity, requestID, state, StatePlanning)
	steps, violations, err := e.planner.RequestPlan(ctx, requestID, query, allowed)
	if err != nil {
		e.transition(identity, requestID, state, StateRejected)
		return nil, err
	}

	// Planning → Validating. Every step is re-authorized against the
	// current grant table, regardless of what the planner was told.
	state = e.transition(identity, requestID, state, StateValidating)
	results := make(map[int]ExecutionResult, len(steps)+len(violations))
	for _, v := range violations {
		results[v.Index] = v
		e.audit.RecordOutcome(requestID, identity, v.Capability, v.Status, v.ErrorKind)
	}

	var allowedSteps []PlanStep
	for _, step := range steps {
		decision, err := e.gatekeeper.Authorize(requestID, identity, step.Capability)
		if err != nil {
			e.transition(identity, requestID, state, StateRejected)
			return nil, err
		}
		if decision != DecisionAllow {
			results[step.Index] = ExecutionResult{
				Index:      step.Index,
				Capability: step.Capability,
				Status:     StatusDenied,
			}
			e.audit.RecordOutcome(requestID, identity, step.Capability, StatusDenied, "")
			continue
		}
		allowedSteps = append(allowedSteps, step)
	}

	// Validating → Dispatching
	state = e.transition(identity, requestID, state, StateDispatching)
	e.dispatcher.Dispatch(ctx, requestID, identity, allowedSteps, results)

	// Dispatching → Aggregating. Results return to original plan order
	// regardless of completion order.
	state = e.transition(identity, requestID, state, StateAggregating)
	ordered := make([]ExecutionResult, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	summary := e.summarizer.Summarize(ctx, requestID, query, ordered)

	// Aggregating → Responded
	e.transition(identity, requestID, state, StateResponded)
	e.logger.InfoWithDuration(identity.ID, requestID, "request completed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"steps":   len(ordered),
			"allowed": len(allowedSteps),
		})

	return &Response{
		RequestID: requestID,
		Results:   ordered,
		Summary:   summary,
	}, nil
}

func (e *Engine) transition(identity types.Identity, requestID string, from, to State) State {
	e.logger.Debug(identity.ID, requestID, "state transition", map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	return to
}
