package confirm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sentrycam-go/internal/platform/errors"
	"sentrycam-go/internal/platform/logging"
)

const systemPrompt = `You are a security camera analyst. Look at the image and decide whether a person is present. Reply with ONLY a JSON object of the form {"person_present": true, "description": "<short description of the scene>"} and nothing else. Use false for person_present when no person is visible.`

// Options configures the OpenAI analyzer.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	MaxImageSize int64
}

// OpenAIAnalyzer confirms person presence through a vision chat completion.
// Transport failures and unparseable replies are retried with exponential
// backoff; exhausting the retries yields an error so callers never mistake
// an outage for an empty scene.
type OpenAIAnalyzer struct {
	client    *openai.Client
	validator *PayloadValidator
	opts      Options
	logger    *logging.Logger
}

// NewOpenAIAnalyzer builds the analyzer. BaseURL is optional and exists for
// OpenAI-compatible endpoints and tests.
func NewOpenAIAnalyzer(opts Options, logger *logging.Logger) *OpenAIAnalyzer {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}

	return &OpenAIAnalyzer{
		client:    openai.NewClientWithConfig(cfg),
		validator: NewPayloadValidator(opts.MaxImageSize),
		opts:      opts,
		logger:    logger,
	}
}

// Analyze sends the frame to the model and parses its verdict.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, frame []byte) (*Result, error) {
	const op = "confirm.OpenAIAnalyzer.Analyze"

	if err := a.validator.Validate(frame); err != nil {
		return nil, err
	}

	dataURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(frame))

	var lastErr error
	for attempt := 0; attempt < a.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := a.opts.RetryDelay * time.Duration(1<<(attempt-1))
			a.logger.WarnTag("CONFIRM", "attempt %d failed, retrying in %s: %v", attempt, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.KindConfirm, op, "analysis cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := a.analyzeOnce(ctx, dataURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, errors.Wrap(errors.KindConfirm, op,
		fmt.Sprintf("analysis failed after %d attempts", a.opts.MaxRetries), lastErr)
}

func (a *OpenAIAnalyzer) analyzeOnce(ctx context.Context, dataURL string) (*Result, error) {
	const op = "confirm.OpenAIAnalyzer.analyzeOnce"

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.opts.Model,
		Temperature: float32(a.opts.Temperature),
		MaxTokens:   a.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Is there a person in this image?",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindConfirm, op, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.KindConfirm, op, "completion returned no choices")
	}

	return ParseVerdict(resp.Choices[0].Message.Content)
}

// Healthy checks API reachability by listing models.
func (a *OpenAIAnalyzer) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := a.client.ListModels(ctx)
	return err == nil
}
