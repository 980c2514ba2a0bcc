// Copyright 2025 Tarick Lorran
//
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

// Package llm holds the Gemini adapter: the text-generation client, the
// prompt template store and the three calls the orchestration flow makes
// (delegator decision, react cycle, final-response consolidation).
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Config configures the Gemini client.
type Config struct {
	// APIKey is the Google AI API key. Required.
	APIKey string
	// Model is the generation model name.
	Model string
	// Temperature overrides the model default when non-nil.
	Temperature *float32
	// MaxTokens limits the response length when positive.
	MaxTokens int
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash-preview-05-20"
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("gemini: API key is required")
	}
	return nil
}

// Request is one text-generation call. The prompt carries all task context;
// System overrides the default system instruction when set.
type Request struct {
	System string
	Prompt string
}

// Generator produces text completions. *Client implements it; tests plug
// in fakes.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client wraps the genai SDK for plain text generation.
type Client struct {
	client *genai.Client
	model  string
	config Config
}

var _ Generator = (*Client)(nil)

// NewClient creates the Gemini client.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, config: cfg}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenAI exposes the underlying SDK client, so the embedding service can
// share the same credentials and transport.
func (c *Client) GenAI() *genai.Client {
	return c.client
}

// Generate runs one generation call and returns the concatenated text of
// the first candidate.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := startLLMSpan(ctx, c.model)
	defer span.End()

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if c.config.Temperature != nil {
		config.Temperature = genai.Ptr(*c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.config.MaxTokens)
	}

	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: req.Prompt}}, Role: "user"},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	recordLLMMetrics(ctx, c.model, err)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("gemini: generation failed: %w", err)
	}
	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
