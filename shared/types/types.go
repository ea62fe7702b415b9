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

package types

import "time"

// Capability names one invocable class of tool action. The set is closed
// and registered at process start; anything outside it is rejected.
type Capability string

const (
	CapQueryStructuredData Capability = "query-structured-data"
	CapSearchDocuments     Capability = "search-documents"
	CapAnalyzeData         Capability = "analyze-data"
	CapGenerateDocument    Capability = "generate-document"
	CapStrategicReasoning  Capability = "strategic-reasoning"
)

// KnownCapabilities returns the closed capability set in a stable order
func KnownCapabilities() []Capability {
	return []Capability{
		CapQueryStructuredData,
		CapSearchDocuments,
		CapAnalyzeData,
		CapGenerateDocument,
		CapStrategicReasoning,
	}
}

// IsKnownCapability reports whether c is a member of the registered set
func IsKnownCapability(c Capability) bool {
	switch c {
	case CapQueryStructuredData, CapSearchDocuments, CapAnalyzeData,
		CapGenerateDocument, CapStrategicReasoning:
		return true
	}
	return false
}

// Identity is the authenticated principal a request runs as. It is built
// once from a verified token and is immutable for the request's lifetime.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenant_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the identity's token lifetime has elapsed
func (i Identity) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}
