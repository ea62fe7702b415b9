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
	"encoding/json"
	"fmt"
	"strings"

	"querygate/platform/llm"
	"querygate/platform/shared/logger"
	"querygate/platform/shared/types"
)

// Planner asks the planning model for a structured action plan. It is a
// pure translation from intent to proposed steps: it never executes
// anything and never retries on its own.
type Planner struct {
	client llm.Client
	logger *logger.Logger
}

// NewPlanner creates a planner over the given completion client
func NewPlanner(client llm.Client) *Planner {
	return &Planner{
		client: client,
		logger: logger.New("planner"),
	}
}

var capabilityHints = map[types.Capability]string{
	types.CapQueryStructuredData: "run a read-only query against structured business data (CRM, SQL)",
	types.CapSearchDocuments:     "search unstructured documents, FAQs and policies",
	types.CapAnalyzeData:         "compute statistics and insights over tabular data",
	types.CapGenerateDocument:    "create a new document or record",
	types.CapStrategicReasoning:  "produce strategic recommendations",
}

// rawPlan is the JSON contract the model is instructed to emit
type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

type rawStep struct {
	Capability string                 `json:"capability"`
	Args       map[string]interface{} `json:"args"`
	DependsOn  *int                   `json:"depends_on"`
}

// RequestPlan obtains a plan constrained to the allowed capability set.
//
// The returned violations are steps the model emitted that cannot be
// interpreted at all: unknown capabilities or broken dependency
// references. Steps naming a known capability the caller was not
// offered pass through; validation denies them against the grant table,
// which is the answer the caller sees.
// A model call failure or uninterpretable output yields ErrPlanningFailed.
func (p *Planner) RequestPlan(ctx context.Context, requestID, query string, allowed []types.Capability) ([]PlanStep, []ExecutionResult, error) {
	if len(allowed) == 0 {
		// Nothing to offer; a valid empty plan, no model call needed
		return nil, nil, nil
	}

	prompt := p.buildPrompt(query, allowed)

	completion, err := p.client.Complete(ctx, prompt, llm.QueryOptions{
		MaxTokens:   800,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: planning model call: %v", ErrPlanningFailed, err)
	}

	raw, err := extractPlanJSON(completion.Content)
	if err != nil {
		p.logger.Warn("", requestID, "uninterpretable plan output", map[string]interface{}{
			"output_len": len(completion.Content),
		})
		return nil, nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}

	allowedSet := make(map[types.Capability]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	var steps []PlanStep
	var violations []ExecutionResult

	for i, rs := range raw.Steps {
		capability := types.Capability(strings.TrimSpace(rs.Capability))

		if !types.IsKnownCapability(capability) {
			p.logger.Warn("", requestID, "planner emitted unknown capability", map[string]interface{}{
				"capability": string(capability),
				"index":      i,
			})
			violations = append(violations, ExecutionResult{
				Index:      i,
				Capability: capability,
				Status:     StatusError,
				ErrorKind:  ErrKindPlanIntegrity,
			})
			continue
		}

		if !allowedSet[capability] {
			// Known capability outside the offered set. Keep the step;
			// validation denies it against the grant table.
			p.logger.Warn("", requestID, "planner emitted step outside offered set", map[string]interface{}{
				"capability": string(capability),
				"index":      i,
			})
		}

		if rs.DependsOn != nil {
			dep := *rs.DependsOn
			// Backward-only references keep the plan acyclic
			if dep < 0 || dep >= i {
				violations = append(violations, ExecutionResult{
					Index:      i,
					Capability: capability,
					Status:     StatusError,
					ErrorKind:  ErrKindPlanIntegrity,
				})
				continue
			}
		}

		steps = append(steps, PlanStep{
			Index:      i,
			Capability: capability,
			Args:       rs.Args,
			DependsOn:  rs.DependsOn,
		})
	}

	p.logger.Info("", requestID, "plan received", map[string]interface{}{
		"steps":      len(steps),
		"violations": len(violations),
	})

	return steps, violations, nil
}

func (p *Planner) buildPrompt(query string, allowed []types.Capability) string {
	var b strings.Builder

	b.WriteString("You are a planning assistant. Break the user request into tool steps.\n\n")
	b.WriteString("Available capabilities (you may use ONLY these, nothing else):\n")
	for _, c := range allowed {
		fmt.Fprintf(&b, "- %s: %s\n", c, capabilityHints[c])
	}

	b.WriteString(`
Respond with ONLY a JSON object, no markdown, in this exact structure:
{
  "steps": [
    {"capability": "<capability>", "args": {"key": "value"}, "depends_on": null}
  ]
}

Rules:
- Every step's capability must be one of the listed capabilities.
- depends_on is the zero-based index of an EARLIER step whose output this
  step needs, or null for independent steps.
- Emit an empty steps array if no tool action is needed.

`)
	fmt.Fprintf(&b, "User request: %s\n", query)

	return b.String()
}

// extractPlanJSON pulls the first JSON object out of the model output.
// Generative output often wraps JSON in prose or code fences.
func extractPlanJSON(content string) (*rawPlan, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in planner output")
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("malformed plan JSON: %v", err)
	}

	return &raw, nil
}
