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
	"testing"
	"time"

	"querygate/platform/shared/types"
)

func newTestGatekeeper(t *testing.T) (*Gatekeeper, *AuditSink) {
	t.Helper()
	registry, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	audit := NewAuditSink("")
	t.Cleanup(audit.Close)
	return NewGatekeeper(registry, audit), audit
}

func analystIdentity() types.Identity {
	return types.Identity{
		ID:        "u-1002",
		Email:     "analyst@example.com",
		Role:      "analyst",
		TenantID:  "tenant-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestGatekeeper_Authorize(t *testing.T) {
	gatekeeper, _ := newTestGatekeeper(t)
	identity := analystIdentity()

	tests := []struct {
		name       string
		capability types.Capability
		want       Decision
	}{
		{"granted capability", types.CapQueryStructuredData, DecisionAllow},
		{"ungranted capability", types.CapGenerateDocument, DecisionDeny},
		{"unknown capability", types.Capability("launch-rockets"), DecisionDeny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := gatekeeper.Authorize("req-1", identity, tt.capability)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if decision != tt.want {
				t.Errorf("expected %s, got %s", tt.want, decision)
			}
		})
	}
}

func TestGatekeeper_AuthorizeUnauthenticated(t *testing.T) {
	gatekeeper, _ := newTestGatekeeper(t)

	tests := []struct {
		name     string
		identity types.Identity
	}{
		{"empty identity", types.Identity{}},
		{"missing role", types.Identity{ID: "u-1", ExpiresAt: time.Now().Add(time.Hour)}},
		{"expired", types.Identity{ID: "u-1", Role: "admin", ExpiresAt: time.Now().Add(-time.Minute)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := gatekeeper.Authorize("req-1", tt.identity, types.CapSearchDocuments)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if decision != DecisionDeny {
				t.Errorf("expected deny, got %s", decision)
			}
		})
	}
}

func TestGatekeeper_AllowedCapabilities(t *testing.T) {
	gatekeeper, _ := newTestGatekeeper(t)

	allowed, err := gatekeeper.AllowedCapabilities(analystIdentity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[types.Capability]bool{
		types.CapQueryStructuredData: true,
		types.CapAnalyzeData:         true,
		types.CapSearchDocuments:     true,
	}
	if len(allowed) != len(want) {
		t.Fatalf("expected %d capabilities, got %v", len(want), allowed)
	}
	for _, c := range allowed {
		if !want[c] {
			t.Errorf("unexpected capability %s", c)
		}
	}

	if _, err := gatekeeper.AllowedCapabilities(types.Identity{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for anonymous identity, got %v", err)
	}
}
