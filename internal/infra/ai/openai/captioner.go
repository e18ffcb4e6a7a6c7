package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
	"github.com/bryanwahyu/historify/internal/infra/ai/prompt"
)

// Captioner produces a one-sentence scene description from the prepared
// image using a vision-capable chat model.
type Captioner struct {
	*openai.Client
	Model string
}

func NewCaptioner(apiKey, model string) *Captioner {
	return &Captioner{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Captioner) Caption(ctx context.Context, img *domain.PreparedImage) (string, error) {
	if img == nil || len(img.JPEG) == 0 {
		return "", errors.New("empty image")
	}
	model := c.Model
	if model == "" {
		model = openai.GPT4o
	}

	dataURI := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img.JPEG))
	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 150,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetCaptionPrompt()},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
				},
			},
		},
	})
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", errors.New("empty caption")
	}
	// the model sometimes narrates instead of describing
	caption = strings.TrimPrefix(caption, "A picture of ")
	caption = strings.TrimPrefix(caption, "An image of ")
	return caption, nil
}
