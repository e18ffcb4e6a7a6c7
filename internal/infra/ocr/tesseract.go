package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// Extractor pulls visible text out of the prepared image using a Tesseract
// client. A fresh client is created per call so the extractor is safe for
// concurrent use.
type Extractor struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

func NewExtractor(languages ...string) *Extractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Extractor{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Extractor) ExtractText(ctx context.Context, img *domain.PreparedImage) (string, error) {
	if img == nil || len(img.JPEG) == 0 {
		return "", errors.New("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img.JPEG); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return cleanExtractedText(text), nil
}

// cleanExtractedText filters OCR artifacts: lines shorter than two
// characters or with less than 30% alphanumeric content are dropped, the
// rest is joined with single spaces.
func cleanExtractedText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 2 {
			continue
		}
		alnum := 0
		for _, r := range line {
			if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
				alnum++
			}
		}
		if alnum*10 < len(line)*3 {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}
