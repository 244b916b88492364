// Package reasoning asks a generative model whether a scored candidate
// looks like stress eating, impulse buying or a high frequency anomaly.
package reasoning

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/logger"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Evaluator judges a candidate given its signal bundle.
type Evaluator interface {
	Evaluate(ctx context.Context, candidate analytics.RawRecord, bundle *analytics.Bundle) (*Verdict, error)
}

// contentGenerator is the part of genai.Models the evaluator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEvaluator is the Evaluator backed by the Gemini API.
type GeminiEvaluator struct {
	models contentGenerator
	model  string
}

// NewGeminiEvaluator creates an evaluator with the given API key and model.
func NewGeminiEvaluator(ctx context.Context, apiKey, model string) (*GeminiEvaluator, error) {
	if apiKey == "" {
		return nil, errors.New("NewGeminiEvaluator: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEvaluator: create genai client: %w", err)
	}
	return newGeminiEvaluator(client.Models, model), nil
}

func newGeminiEvaluator(models contentGenerator, model string) *GeminiEvaluator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiEvaluator{models: models, model: model}
}

// Evaluate implements Evaluator.
func (e *GeminiEvaluator) Evaluate(ctx context.Context, candidate analytics.RawRecord, bundle *analytics.Bundle) (*Verdict, error) {
	prompt, err := buildPrompt(candidate, bundle)
	if err != nil {
		return nil, fmt.Errorf("Evaluate: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Evaluate: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Evaluate: empty response from model")
	}

	v, err := ParseVerdict(rawText)
	if err != nil {
		return nil, fmt.Errorf("Evaluate: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", e.model).
		Bool("anomaly", v.Anomaly).
		Str("anomaly_type", v.AnomalyType).
		Msg("Model verdict")

	return v, nil
}
