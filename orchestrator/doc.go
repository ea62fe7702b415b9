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

/*
Package orchestrator implements the authorization-gated orchestration
engine at the core of QueryGate.

# Overview

The engine mediates between an end user, a natural-language planning
model, and the registered tool adapters. The planning model proposes
actions; the gatekeeper decides what actually runs. No adapter receives
a request that has not been attributed to an authenticated,
permission-checked identity, and no unauthorized data is returned to
the caller or leaked into the summarization pass.

# Pipeline

Each request moves through a fixed state machine:

	Received → Authenticated → Planning → Validating → Dispatching → Aggregating → Responded

with Rejected reachable from Received (unauthenticated) and Planning
(planning failure).

The gatekeeper is consulted twice per step: once to shape the
capability set the planner is offered, and again before dispatch. The
second check re-reads the grant table, so mid-session permission
changes take effect immediately.

# Dispatch

Validated steps are resolved into dispatch waves (topological batches
over their dependency references). Independent steps within a wave run
concurrently under a fixed-size worker pool. A dependent step whose
dependency did not succeed resolves to skipped without an adapter call.
Unavailable and timeout tool errors retry with backoff up to a fixed
bound; bad-input errors never retry. Cancellation resolves unstarted
steps as skipped and leaves committed side effects in place.

# Audit

Every authorization decision and every step outcome is appended to the
audit sink. Audit writes are best-effort and never block the request
path.
*/
package orchestrator
