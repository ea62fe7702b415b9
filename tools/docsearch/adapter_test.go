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

package docsearch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

func searchIdentity(tenant string) types.Identity {
	return types.Identity{ID: "u-1004", Role: "viewer", TenantID: tenant, ExpiresAt: time.Now().Add(time.Hour)}
}

func TestInvoke_MatchesTitleAndBody(t *testing.T) {
	adapter := NewInMemory([]Document{
		{Title: "Onboarding Checklist", Body: "Laptop setup and account provisioning."},
		{Title: "Release Notes", Body: "The onboarding flow now supports SSO."},
		{Title: "Menu", Body: "Soup of the day."},
	})

	payload, toolErr := adapter.Invoke(context.Background(), searchIdentity(""), map[string]interface{}{
		"query": "onboarding",
	}, "k")
	require.Nil(t, toolErr)

	assert.Equal(t, 2, payload["count"])
	assert.Equal(t, "builtin_corpus", payload["source"])

	results := payload["results"].([]map[string]interface{})
	titles := []string{results[0]["title"].(string), results[1]["title"].(string)}
	assert.Contains(t, titles, "Onboarding Checklist")
	assert.Contains(t, titles, "Release Notes")
}

func TestInvoke_TenantScoping(t *testing.T) {
	adapter := NewInMemory([]Document{
		{Title: "Shared Notice", Body: "maintenance window", TenantID: ""},
		{Title: "Tenant One Report", Body: "maintenance summary", TenantID: "tenant-1"},
		{Title: "Tenant Two Report", Body: "maintenance summary", TenantID: "tenant-2"},
	})

	payload, toolErr := adapter.Invoke(context.Background(), searchIdentity("tenant-1"), map[string]interface{}{
		"query": "maintenance",
	}, "k")
	require.Nil(t, toolErr)

	assert.Equal(t, 2, payload["count"])
	results := payload["results"].([]map[string]interface{})
	for _, r := range results {
		assert.NotEqual(t, "Tenant Two Report", r["title"], "cross-tenant documents must not surface")
	}
}

func TestInvoke_SnippetTruncation(t *testing.T) {
	long := strings.Repeat("confidential data handling rules ", 20)
	adapter := NewInMemory([]Document{{Title: "Policy", Body: long}})

	payload, toolErr := adapter.Invoke(context.Background(), searchIdentity(""), map[string]interface{}{
		"query": "confidential",
	}, "k")
	require.Nil(t, toolErr)

	results := payload["results"].([]map[string]interface{})
	snippet := results[0]["snippet"].(string)
	assert.Len(t, snippet, 203)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestInvoke_MissingQuery(t *testing.T) {
	adapter := NewInMemory(nil)

	for _, args := range []map[string]interface{}{nil, {"query": ""}, {"query": 7}} {
		_, toolErr := adapter.Invoke(context.Background(), searchIdentity(""), args, "k")
		require.NotNil(t, toolErr)
		assert.Equal(t, tools.ErrBadInput, toolErr.Kind)
	}
}

func TestInvoke_NoMatches(t *testing.T) {
	adapter := NewInMemory(seedCorpus())

	payload, toolErr := adapter.Invoke(context.Background(), searchIdentity(""), map[string]interface{}{
		"query": "zeppelin",
	}, "k")
	require.Nil(t, toolErr)
	assert.Equal(t, 0, payload["count"])
}
