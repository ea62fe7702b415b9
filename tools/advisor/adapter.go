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
	"fmt"
	"strings"

	"querygate/platform/llm"
	"querygate/platform/shared/types"
	"querygate/platform/tools"
)

// Adapter produces strategic recommendations through the planning-model
// router. It requires the strategic-reasoning capability. This is a
// plain completion call, not a planning call; its output goes to the
// caller as a tool payload, never back into plan construction.
type Adapter struct {
	client llm.Client
}

// New creates the advisor over the given completion client
func New(client llm.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string {
	return "advisor"
}

func (a *Adapter) Capability() types.Capability {
	return types.CapStrategicReasoning
}

func (a *Adapter) Invoke(ctx context.Context, identity types.Identity, args map[string]interface{}, dedupeKey string) (map[string]interface{}, *tools.ToolError) {
	topic, _ := args["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		if q, ok := args["query"].(string); ok {
			topic = q
		}
	}
	if strings.TrimSpace(topic) == "" {
		return nil, tools.NewToolError(a.Name(), tools.ErrBadInput, "missing topic argument", nil)
	}

	prompt := fmt.Sprintf(
		"Provide three concrete, actionable recommendations on the following topic. Reply as a plain numbered list, one recommendation per line.\n\nTopic: %s\n", topic)

	completion, err := a.client.Complete(ctx, prompt, llm.QueryOptions{
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, tools.NewToolError(a.Name(), tools.ErrTimeout, "recommendation call timed out", err)
		}
		return nil, tools.NewToolError(a.Name(), tools.ErrUnavailable, "recommendation backend failed", err)
	}

	var recommendations []string
	for _, line := range strings.Split(completion.Content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			recommendations = append(recommendations, line)
		}
	}

	return map[string]interface{}{
		"recommendations": recommendations,
		"topic":           topic,
	}, nil
}
