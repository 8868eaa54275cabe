package ai

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kozaktomas/facewatch/internal/config"
)

//go:embed prompts/sightings_summary.txt
var summaryPrompt string

const defaultOpenAIModel = openai.ChatModelGPT4_1Mini

// OpenAI summarizes sightings through the OpenAI chat API.
type OpenAI struct {
	client  *openai.Client
	model   string
	pricing config.RequestPricing
}

// NewOpenAI creates the provider from the OpenAI config section.
func NewOpenAI(cfg *config.Config) (*OpenAI, error) {
	if cfg.OpenAI.Token == "" {
		return nil, errors.New("OPENAI_TOKEN is not set")
	}

	model := cfg.OpenAI.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	client := openai.NewClient(option.WithAPIKey(cfg.OpenAI.Token))
	return &OpenAI{
		client:  &client,
		model:   model,
		pricing: cfg.GetModelPricing(model).Standard,
	}, nil
}

func (p *OpenAI) Name() string {
	return p.model
}

// SummarizeSightings asks the model for a JSON digest of the window.
// A response that fails to parse is fed back with the parse error for
// another attempt.
func (p *OpenAI) SummarizeSightings(ctx context.Context, window SightingsWindow) (*Summary, error) {
	const maxRetries = 5

	userMessage := buildSummaryContent(window)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(summaryPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(userMessage),
				},
			},
		},
	}

	var usage Usage
	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    p.model,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(700),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			usage.add(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), p.pricing)
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		summary, err := parseSummary(content)
		if err != nil {
			lastError = err

			// Add assistant response and error feedback to messages for retry
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash.", err)),
						},
					},
				},
			)
			continue
		}

		summary.Usage = usage
		return summary, nil
	}

	return nil, fmt.Errorf("failed to parse summary JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
