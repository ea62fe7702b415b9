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
	"errors"
	"strings"
	"testing"

	"querygate/platform/shared/types"
)

func TestSummarizer_EmptyResults(t *testing.T) {
	client := &scriptedClient{response: "should not be called"}
	s := NewSummarizer(client)

	summary := s.Summarize(context.Background(), "req-1", "do nothing", nil)
	if summary != summaryNoAction {
		t.Errorf("expected fixed no-action summary, got %q", summary)
	}
	if client.calls != 0 {
		t.Error("no model call expected for an empty plan")
	}
}

func TestSummarizer_AllDenied(t *testing.T) {
	client := &scriptedClient{response: "should not be called"}
	s := NewSummarizer(client)

	results := []ExecutionResult{
		{Index: 0, Capability: types.CapGenerateDocument, Status: StatusDenied},
		{Index: 1, Capability: types.CapQueryStructuredData, Status: StatusDenied},
	}
	summary := s.Summarize(context.Background(), "req-1", "make me a report", results)
	if summary != summaryNoPermissions {
		t.Errorf("expected fixed permission summary, got %q", summary)
	}
	if client.calls != 0 {
		t.Error("denied outcomes must never reach the model")
	}
}

func TestSummarizer_NoSuccesses(t *testing.T) {
	client := &scriptedClient{response: "should not be called"}
	s := NewSummarizer(client)

	results := []ExecutionResult{
		{Index: 0, Capability: types.CapSearchDocuments, Status: StatusError, ErrorKind: "unavailable"},
		{Index: 1, Capability: types.CapAnalyzeData, Status: StatusSkipped, SkipReason: SkipDependencyFailed},
	}
	summary := s.Summarize(context.Background(), "req-1", "search", results)
	if summary != summaryNoResults {
		t.Errorf("expected fixed no-results summary, got %q", summary)
	}
	if client.calls != 0 {
		t.Error("error outcomes must never reach the model")
	}
}

func TestSummarizer_PromptContainsOnlySuccessPayloads(t *testing.T) {
	client := &scriptedClient{response: "Here is your answer."}
	s := NewSummarizer(client)

	results := []ExecutionResult{
		{Index: 0, Capability: types.CapSearchDocuments, Status: StatusSuccess,
			Payload: map[string]interface{}{"count": 2, "marker": "visible-payload"}},
		{Index: 1, Capability: types.CapGenerateDocument, Status: StatusDenied},
		{Index: 2, Capability: types.CapQueryStructuredData, Status: StatusError,
			ErrorKind: "unavailable",
			Payload:   map[string]interface{}{"marker": "hidden-error-payload"}},
	}
	summary := s.Summarize(context.Background(), "req-1", "find docs", results)
	if summary != "Here is your answer." {
		t.Fatalf("expected model summary, got %q", summary)
	}

	prompt := client.prompts[0]
	if !strings.Contains(prompt, "visible-payload") {
		t.Error("success payload should appear in the prompt")
	}
	if strings.Contains(prompt, "hidden-error-payload") {
		t.Error("non-success payloads must not appear in the prompt")
	}
	if strings.Contains(prompt, string(StatusDenied)) {
		t.Error("denied steps must not appear in the prompt")
	}
}

func TestSummarizer_ModelFailureFallsBackToConcatenation(t *testing.T) {
	client := &scriptedClient{err: errors.New("all providers unavailable")}
	s := NewSummarizer(client)

	results := []ExecutionResult{
		{Index: 0, Capability: types.CapSearchDocuments, Status: StatusSuccess,
			Payload: map[string]interface{}{"count": 1}},
	}
	summary := s.Summarize(context.Background(), "req-1", "search", results)
	if !strings.Contains(summary, "search-documents") || !strings.Contains(summary, `"count":1`) {
		t.Errorf("expected concatenated payloads, got %q", summary)
	}
}
