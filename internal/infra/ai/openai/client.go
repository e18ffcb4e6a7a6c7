package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
	"github.com/bryanwahyu/historify/internal/infra/ai/prompt"
)

const maxTokens = 1000

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// InferEvent asks the model for the historical event behind the merged
// stage signals and validates the loosely-structured response into a typed
// payload. A response missing every identifying field is treated as a stage
// failure, not a malformed success.
func (c *Client) InferEvent(ctx context.Context, in domain.InferenceInput) (domain.Inference, error) {
	model := c.Model
	if model == "" {
		model = openai.GPT4o
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(in.Caption, in.ImageText, in.Objects)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Inference{}, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Inference{}, errors.New("empty completion")
	}

	return parseInference([]byte(resp.Choices[0].Message.Content))
}

// rawInference mirrors the schema loosely: the model occasionally returns
// "Unknown" where a number belongs, so numeric fields are decoded as any
// and coerced.
type rawInference struct {
	Title        string         `json:"title"`
	Event        string         `json:"event"`
	Description  string         `json:"description"`
	LocationName string         `json:"location_name"`
	Year         any            `json:"year"`
	ExactDate    string         `json:"exact_date"`
	Confidence   map[string]any `json:"confidence"`
}

func parseInference(data []byte) (domain.Inference, error) {
	var raw rawInference
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Inference{}, fmt.Errorf("decode inference response: %w", err)
	}

	if strings.TrimSpace(raw.Title) == "" && strings.TrimSpace(raw.Event) == "" && strings.TrimSpace(raw.Description) == "" {
		return domain.Inference{}, errors.New("incomplete response")
	}

	inf := domain.Inference{
		Title:        strings.TrimSpace(raw.Title),
		Event:        strings.TrimSpace(raw.Event),
		Description:  strings.TrimSpace(raw.Description),
		LocationName: strings.TrimSpace(raw.LocationName),
		ExactDate:    strings.TrimSpace(raw.ExactDate),
	}
	if y, ok := coerceInt(raw.Year); ok {
		inf.Year = &y
	}
	inf.Confidence = domain.Confidence{
		Year:     confidenceScore(raw.Confidence, "year"),
		Location: confidenceScore(raw.Confidence, "location"),
		Event:    confidenceScore(raw.Confidence, "event"),
	}
	return inf, nil
}

func confidenceScore(conf map[string]any, key string) int {
	v, ok := conf[key]
	if !ok {
		return 0
	}
	n, ok := coerceInt(v)
	if !ok {
		return 0
	}
	return n
}

// coerceInt accepts the number shapes encoding/json can produce plus
// numeric strings; anything else is no usable signal.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
