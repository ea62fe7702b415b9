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
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider invokes models on AWS Bedrock with SDK-managed
// Signature V4 authentication.
//
// The health flag is written from whichever goroutine ran the last
// query and read by the router, so it is atomic.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	region  string
	model   string
	healthy atomic.Bool
}

// NewBedrockProvider creates a Bedrock-backed provider using the default
// AWS credential chain.
func NewBedrockProvider(region, model string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", region, err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	log.Printf("[Bedrock] initialized (region: %s, model: %s)", region, model)
	p := &BedrockProvider{
		client: client,
		region: region,
		model:  model,
	}
	p.healthy.Store(true)
	return p, nil
}

func (p *BedrockProvider) Name() string {
	return "bedrock"
}

func (p *BedrockProvider) Query(ctx context.Context, prompt string, options QueryOptions) (*Completion, error) {
	start := time.Now()

	model := options.Model
	if model == "" {
		model = p.model
	}

	requestBody, err := p.buildRequestBody(prompt, options, model)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		p.healthy.Store(false)
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	p.healthy.Store(true)

	completion, err := p.parseResponseBody(output.Body, model)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	completion.Model = model
	completion.Provider = "bedrock"
	completion.ResponseTime = time.Since(start)

	return completion, nil
}

func (p *BedrockProvider) buildRequestBody(prompt string, options QueryOptions, model string) (map[string]interface{}, error) {
	switch detectModelFamily(model) {
	case "anthropic":
		return map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        options.MaxTokens,
			"temperature":       options.Temperature,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		}, nil
	case "amazon":
		return map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": options.MaxTokens,
				"temperature":   options.Temperature,
				"topP":          0.9,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

func (p *BedrockProvider) parseResponseBody(body []byte, model string) (*Completion, error) {
	switch detectModelFamily(model) {
	case "anthropic":
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		content := ""
		if len(resp.Content) > 0 {
			content = resp.Content[0].Text
		}
		return &Completion{
			Content:    content,
			TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}, nil
	case "amazon":
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
				TokenCount int    `json:"tokenCount"`
			} `json:"results"`
			InputTextTokenCount int `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		content := ""
		outputTokens := 0
		if len(resp.Results) > 0 {
			content = resp.Results[0].OutputText
			outputTokens = resp.Results[0].TokenCount
		}
		return &Completion{
			Content:    content,
			TokensUsed: resp.InputTextTokenCount + outputTokens,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

func (p *BedrockProvider) IsHealthy() bool {
	return p.healthy.Load()
}

func detectModelFamily(model string) string {
	switch {
	case strings.HasPrefix(model, "anthropic."):
		return "anthropic"
	case strings.HasPrefix(model, "amazon."):
		return "amazon"
	default:
		return "unknown"
	}
}
