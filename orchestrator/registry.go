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
	"fmt"
	"sort"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Registry holds the role-to-capability grant table. It is built once at
// startup and read-only afterwards, so lookups on the request path need
// no locking.
type Registry struct {
	grants map[string]map[types.Capability]bool
}

// DefaultGrants is the compiled-in grant table used when the config file
// does not define role_grants.
func DefaultGrants() map[string][]string {
	return map[string][]string{
		"admin": {
			string(types.CapQueryStructuredData),
			string(types.CapSearchDocuments),
			string(types.CapAnalyzeData),
			string(types.CapGenerateDocument),
			string(types.CapStrategicReasoning),
		},
		"analyst": {
			string(types.CapQueryStructuredData),
			string(types.CapAnalyzeData),
			string(types.CapSearchDocuments),
		},
		"support": {
			string(types.CapSearchDocuments),
			string(types.CapStrategicReasoning),
		},
		"viewer": {
			string(types.CapSearchDocuments),
		},
	}
}

// NewRegistry builds the grant table from config. A grant naming an
// unknown capability is a configuration error, surfaced at startup rather
// than discovered at request time.
func NewRegistry(roleGrants map[string][]string) (*Registry, error) {
	if len(roleGrants) == 0 {
		roleGrants = DefaultGrants()
	}

	grants := make(map[string]map[types.Capability]bool, len(roleGrants))
	for role, caps := range roleGrants {
		if role == "" {
			return nil, fmt.Errorf("role grant with empty role name")
		}
		set := make(map[types.Capability]bool, len(caps))
		for _, c := range caps {
			capability := types.Capability(c)
			if !types.IsKnownCapability(capability) {
				return nil, fmt.Errorf("role %q grants unknown capability %q", role, c)
			}
			set[capability] = true
		}
		grants[role] = set
	}

	return &Registry{grants: grants}, nil
}

// Allows reports whether the role may invoke the capability. Unrecognized
// roles deny everything; there is no wildcard role.
func (r *Registry) Allows(role string, capability types.Capability) bool {
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	return set[capability]
}

// GrantsFor returns the capability set granted to the role, in the stable
// registration order of the known-capability list.
func (r *Registry) GrantsFor(role string) []types.Capability {
	set, ok := r.grants[role]
	if !ok {
		return nil
	}

	var caps []types.Capability
	for _, c := range types.KnownCapabilities() {
		if set[c] {
			caps = append(caps, c)
		}
	}
	return caps
}

// Roles returns all configured role names, sorted
func (r *Registry) Roles() []string {
	roles := make([]string, 0, len(r.grants))
	for role := range r.grants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ValidateCoverage checks that every capability declared by a registered
// adapter is granted to at least one role. A capability no role can reach
// is permanently dead and treated as a configuration error.
func (r *Registry) ValidateCoverage(adapters []tools.Adapter) error {
	for _, adapter := range adapters {
		capability := adapter.Capability()
		if !types.IsKnownCapability(capability) {
			return fmt.Errorf("adapter %q declares unknown capability %q", adapter.Name(), capability)
		}

		granted := false
		for _, set := range r.grants {
			if set[capability] {
				granted = true
				break
			}
		}
		if !granted {
			return fmt.Errorf("capability %q (adapter %q) is not granted to any role", capability, adapter.Name())
		}
	}
	return nil
}
