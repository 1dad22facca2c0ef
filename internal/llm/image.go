package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rahul/foundry/internal/usage"
)

// AspectRatio of a generated image.
type AspectRatio string

const (
	AspectSquare   AspectRatio = "1:1"
	AspectWide     AspectRatio = "16:9"
	AspectPortrait AspectRatio = "9:16"
)

// imageBatchLimit caps concurrent image requests in one batch.
const imageBatchLimit = 4

// ImageGenerator produces an image, as a data URI, for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, aspect AspectRatio) (string, usage.Usage, error)
}

// Image generates one image. Failures, hard quota included, yield "".
func (inv *Invoker) Image(ctx context.Context, stage, prompt string, aspect AspectRatio) (string, usage.Usage) {
	if inv.images == nil || strings.TrimSpace(prompt) == "" {
		return "", usage.Usage{}
	}
	img, u, err := inv.do(ctx, stage, Cheapest, func(ctx context.Context, _ Tier) (string, usage.Usage, error) {
		return inv.images.Generate(withStep(ctx, stage, "image", Cheapest), prompt, aspect)
	})
	inv.logger.LogImage(CallInfoFrom(ctx).RunID, stage, err == nil, err)
	if err != nil {
		return "", usage.Usage{}
	}
	return img, u
}

// ImageBatch generates images in parallel. The result slice is aligned with
// prompts; a failed image is an empty string and never aborts the batch.
func (inv *Invoker) ImageBatch(ctx context.Context, stage string, prompts []string, aspect AspectRatio) ([]string, usage.Usage) {
	images := make([]string, len(prompts))
	usages := make([]usage.Usage, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageBatchLimit)
	for i, p := range prompts {
		g.Go(func() error {
			images[i], usages[i] = inv.Image(gctx, stage, p, aspect)
			return nil
		})
	}
	_ = g.Wait()

	return images, usage.Sum(usages...)
}

// OpenAIImages calls an OpenAI compatible /images/generations endpoint.
type OpenAIImages struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenAIImages(baseURL, apiKey, model string) *OpenAIImages {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIImages{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func imageSize(aspect AspectRatio) string {
	switch aspect {
	case AspectWide:
		return "1536x1024"
	case AspectPortrait:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

// Generate returns the image as a data URI.
func (c *OpenAIImages) Generate(ctx context.Context, prompt string, aspect AspectRatio) (string, usage.Usage, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.Model,
		"prompt": prompt,
		"size":   imageSize(aspect),
		"n":      1,
	})
	if err != nil {
		return "", usage.Usage{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", usage.Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", usage.Usage{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", usage.Usage{}, fmt.Errorf("image generation failed: status code %d: %s", resp.StatusCode, msg)
	}

	var out struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", usage.Usage{}, fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(out.Data) == 0 {
		return "", usage.Usage{}, ErrEmptyResponse
	}

	return "data:image/png;base64," + out.Data[0].B64JSON, usage.Usage{
		Input:  out.Usage.InputTokens,
		Output: out.Usage.OutputTokens,
		Total:  out.Usage.TotalTokens,
	}, nil
}
