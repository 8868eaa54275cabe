package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kozaktomas/facewatch/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini summarizes sightings through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	pricing config.RequestPricing
}

// NewGemini creates the provider from the Gemini config section.
func NewGemini(ctx context.Context, cfg *config.Config) (*Gemini, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	model := cfg.Gemini.Model
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		pricing: cfg.GetModelPricing(model).Standard,
	}, nil
}

func (p *Gemini) Name() string {
	return p.model
}

// SummarizeSightings asks the model for a JSON digest of the window.
// A response that fails to parse is fed back with the parse error for
// another attempt.
func (p *Gemini) SummarizeSightings(ctx context.Context, window SightingsWindow) (*Summary, error) {
	const maxRetries = 5

	userMessage := buildSummaryContent(window)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: summaryPrompt + "\n\n" + userMessage},
			},
		},
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var usage Usage
	var lastError error
	var lastResponse string

	for range maxRetries {
		result, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			usage.add(
				int(result.UsageMetadata.PromptTokenCount),
				int(result.UsageMetadata.CandidatesTokenCount),
				p.pricing,
			)
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		summary, err := parseSummary(content)
		if err != nil {
			lastError = err

			// Add model response and error feedback to contents for retry
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash.", err)}},
				},
			)
			continue
		}

		summary.Usage = usage
		return summary, nil
	}

	return nil, fmt.Errorf("failed to parse summary JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
