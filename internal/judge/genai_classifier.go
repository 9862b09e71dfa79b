// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package judge

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClassifier wraps google.golang.org/genai as the Judge's external
// classifier (spec §4.4, SPEC_FULL §B). It performs exactly one
// request/response round trip per call; retries are the caller's
// concern (Judge.evaluateClassifier).
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier constructs a classifier bound to model (e.g.
// "gemini-2.0-flash") using an already-configured genai client.
func NewGeminiClassifier(client *genai.Client, model string) *GeminiClassifier {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClassifier{client: client, model: model}
}

// Classify sends systemPrompt as the model's system instruction and
// userContent as the single user turn, returning the raw text response.
func (c *GeminiClassifier) Classify(ctx context.Context, systemPrompt, userContent string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userContent), cfg)
	if err != nil {
		return "", fmt.Errorf("judge: gemini call: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("judge: gemini returned empty response")
	}
	return text, nil
}

var _ Classifier = (*GeminiClassifier)(nil)
