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
)

// Fixed summaries for plans that produced nothing to synthesize.
// These never contain backend-origin text.
const (
	summaryNoAction      = "No action was needed for this request."
	summaryNoPermissions = "This request could not be completed: your role does not have permission for the required actions."
	summaryNoResults     = "No results were produced for this request."
)

// Summarizer turns success payloads into a natural-language summary with
// one model call. Denied and error details are never given to the model;
// leaking them through the summarization pass would be a disclosure side
// channel.
type Summarizer struct {
	client llm.Client
	logger *logger.Logger
}

// NewSummarizer creates a summarizer over the given completion client
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{
		client: client,
		logger: logger.New("summarizer"),
	}
}

// Summarize produces the response summary for the aggregated results.
// Plans with no successful step get a fixed summary; a model failure
// degrades to plain concatenation of the success payloads.
func (s *Summarizer) Summarize(ctx context.Context, requestID, query string, results []ExecutionResult) string {
	if len(results) == 0 {
		return summaryNoAction
	}

	var successes []ExecutionResult
	allDenied := true
	for _, r := range results {
		if r.Succeeded() {
			successes = append(successes, r)
		}
		if r.Status != StatusDenied {
			allDenied = false
		}
	}

	if len(successes) == 0 {
		if allDenied {
			return summaryNoPermissions
		}
		return summaryNoResults
	}

	prompt := s.buildPrompt(query, successes)

	completion, err := s.client.Complete(ctx, prompt, llm.QueryOptions{
		MaxTokens:   600,
		Temperature: 0.7,
	})
	if err != nil {
		s.logger.Warn("", requestID, "summary synthesis failed, using concatenation", map[string]interface{}{
			"error": err.Error(),
		})
		return s.concatenate(successes)
	}

	summary := strings.TrimSpace(completion.Content)
	if summary == "" {
		return s.concatenate(successes)
	}
	return summary
}

func (s *Summarizer) buildPrompt(query string, successes []ExecutionResult) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant. Answer the user's request based only on the tool results below. Be clear and concise.\n\n")
	fmt.Fprintf(&b, "User request: %s\n\nTool results:\n", query)

	for _, r := range successes {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Capability, payload)
	}

	return b.String()
}

func (s *Summarizer) concatenate(successes []ExecutionResult) string {
	var parts []string
	for _, r := range successes {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", r.Capability, payload))
	}
	return strings.Join(parts, "\n")
}
