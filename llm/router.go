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
	"fmt"
	"log"
)

// Router fans a completion request to the first healthy provider and
// falls back to the next one on failure. Provider order is fixed at
// construction; there is no per-request selection logic.
type Router struct {
	providers []Provider
}

// NewRouter builds a router from config. Providers with no credentials
// configured are skipped. At least one provider must come up.
func NewRouter(cfg Config) (*Router, error) {
	var providers []Provider

	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
		log.Printf("[LLMRouter] OpenAI provider configured")
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
		log.Printf("[LLMRouter] Anthropic provider configured")
	}
	if cfg.BedrockRegion != "" || cfg.BedrockModel != "" {
		bedrock, err := NewBedrockProvider(cfg.BedrockRegion, cfg.BedrockModel)
		if err != nil {
			log.Printf("[LLMRouter] Bedrock provider unavailable: %v", err)
		} else {
			providers = append(providers, bedrock)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no planning-model provider configured")
	}

	return &Router{providers: providers}, nil
}

// NewRouterWithProviders builds a router over explicit providers,
// used by tests and custom wiring.
func NewRouterWithProviders(providers ...Provider) *Router {
	return &Router{providers: providers}
}

// Complete runs the prompt against the first healthy provider, falling
// back in order. Context cancellation aborts immediately; other provider
// failures try the next provider.
func (r *Router) Complete(ctx context.Context, prompt string, options QueryOptions) (*Completion, error) {
	var lastErr error

	for _, p := range r.providers {
		if !p.IsHealthy() {
			continue
		}

		completion, err := p.Query(ctx, prompt, options)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[LLMRouter] provider %s failed, trying next: %v", p.Name(), err)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no healthy provider")
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// IsHealthy reports whether at least one provider is usable
func (r *Router) IsHealthy() bool {
	for _, p := range r.providers {
		if p.IsHealthy() {
			return true
		}
	}
	return false
}

// ProviderNames lists configured providers in fallback order
func (r *Router) ProviderNames() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
