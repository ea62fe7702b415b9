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

package llm

import (
	"context"
	"time"
)

// Client is the narrow completion interface the rest of the system
// consumes. The planner and summarizer are the only callers; they treat
// every completion as untrusted text that still needs structural parsing.
type Client interface {
	Complete(ctx context.Context, prompt string, options QueryOptions) (*Completion, error)
}

// Provider is one concrete planning-model backend
type Provider interface {
	Name() string
	Query(ctx context.Context, prompt string, options QueryOptions) (*Completion, error)
	IsHealthy() bool
}

// QueryOptions tunes a single completion call
type QueryOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completion is the raw result of one model call
type Completion struct {
	Content      string
	Model        string
	Provider     string
	TokensUsed   int
	ResponseTime time.Duration
}

// Config selects and configures the available providers
type Config struct {
	OpenAIKey     string
	AnthropicKey  string
	BedrockRegion string
	BedrockModel  string
}
