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
	"querygate/platform/shared/logger"
	"querygate/platform/shared/types"
)

// Gatekeeper is the single authority for allow/deny decisions. It is
// consulted twice per step: once to shape the capability set offered to
// the planner, and again immediately before dispatch. The planner's
// output never bypasses the second check.
type Gatekeeper struct {
	registry *Registry
	audit    *AuditSink
	logger   *logger.Logger
}

// NewGatekeeper creates a gatekeeper over the given grant registry
func NewGatekeeper(registry *Registry, audit *AuditSink) *Gatekeeper {
	return &Gatekeeper{
		registry: registry,
		audit:    audit,
		logger:   logger.New("gatekeeper"),
	}
}

// Authorize decides whether identity may invoke capability.
//
// An expired or role-less identity returns ErrUnauthenticated, which is a
// different answer than Deny: "who are you" versus "you may not do that".
// Unknown capabilities and unrecognized roles deny; there is no wildcard.
// Every decision is audited.
func (g *Gatekeeper) Authorize(requestID string, identity types.Identity, capability types.Capability) (Decision, error) {
	if identity.ID == "" || identity.Role == "" || identity.Expired() {
		g.logger.Warn(identity.ID, requestID, "rejected unauthenticated identity", map[string]interface{}{
			"expired": identity.Expired(),
		})
		return DecisionDeny, ErrUnauthenticated
	}

	decision := DecisionDeny
	if types.IsKnownCapability(capability) && g.registry.Allows(identity.Role, capability) {
		decision = DecisionAllow
	}

	g.audit.RecordDecision(requestID, identity, capability, decision)
	g.logger.Debug(identity.ID, requestID, "authorization decision", map[string]interface{}{
		"capability": string(capability),
		"role":       identity.Role,
		"decision":   string(decision),
	})

	return decision, nil
}

// AllowedCapabilities returns the capability set identity may invoke,
// used to constrain what the planner is offered. Returns
// ErrUnauthenticated for an unusable identity.
func (g *Gatekeeper) AllowedCapabilities(identity types.Identity) ([]types.Capability, error) {
	if identity.ID == "" || identity.Role == "" || identity.Expired() {
		return nil, ErrUnauthenticated
	}
	return g.registry.GrantsFor(identity.Role), nil
}
