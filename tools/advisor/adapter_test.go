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

package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/platform/llm"
	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

type stubClient struct {
	response string
	err      error
	prompt   string
}

func (c *stubClient) Complete(ctx context.Context, prompt string, options llm.QueryOptions) (*llm.Completion, error) {
	c.prompt = prompt
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Completion{Content: c.response, Provider: "stub"}, nil
}

func supportIdentity() types.Identity {
	return types.Identity{ID: "u-1003", Role: "support", TenantID: "tenant-1", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestInvoke_ReturnsRecommendations(t *testing.T) {
	client := &stubClient{response: "1. Expand self-service docs.\n\n2. Track resolution times.\n3. Rotate on-call weekly.\n"}
	adapter := New(client)

	payload, toolErr := adapter.Invoke(context.Background(), supportIdentity(), map[string]interface{}{
		"topic": "reducing support ticket backlog",
	}, "k")
	require.Nil(t, toolErr)

	assert.Equal(t, "reducing support ticket backlog", payload["topic"])
	recommendations := payload["recommendations"].([]string)
	assert.Len(t, recommendations, 3)
	assert.Contains(t, client.prompt, "reducing support ticket backlog")
}

func TestInvoke_FallsBackToQueryArg(t *testing.T) {
	client := &stubClient{response: "1. Do the thing."}
	adapter := New(client)

	payload, toolErr := adapter.Invoke(context.Background(), supportIdentity(), map[string]interface{}{
		"query": "improving onboarding",
	}, "k")
	require.Nil(t, toolErr)
	assert.Equal(t, "improving onboarding", payload["topic"])
}

func TestInvoke_MissingTopic(t *testing.T) {
	adapter := New(&stubClient{response: "unused"})

	_, toolErr := adapter.Invoke(context.Background(), supportIdentity(), map[string]interface{}{}, "k")
	require.NotNil(t, toolErr)
	assert.Equal(t, tools.ErrBadInput, toolErr.Kind)
}

func TestInvoke_BackendFailure(t *testing.T) {
	adapter := New(&stubClient{err: errors.New("all providers unavailable")})

	_, toolErr := adapter.Invoke(context.Background(), supportIdentity(), map[string]interface{}{
		"topic": "anything",
	}, "k")
	require.NotNil(t, toolErr)
	assert.Equal(t, tools.ErrUnavailable, toolErr.Kind)
	assert.True(t, toolErr.Retryable())
}

func TestInvoke_Timeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	adapter := New(&stubClient{err: context.DeadlineExceeded})
	_, toolErr := adapter.Invoke(ctx, supportIdentity(), map[string]interface{}{
		"topic": "anything",
	}, "k")
	require.NotNil(t, toolErr)
	assert.Equal(t, tools.ErrTimeout, toolErr.Kind)
}
