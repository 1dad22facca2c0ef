package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VideoStatus is the state of a long-running video operation.
type VideoStatus struct {
	Done  bool
	URI   string
	Error string
}

// VideoGenerator starts a video operation and reports on it when polled.
type VideoGenerator interface {
	Start(ctx context.Context, prompt string) (operationID string, err error)
	Poll(ctx context.Context, operationID string) (VideoStatus, error)
}

// OpenAIVideos drives an OpenAI compatible /videos endpoint.
type OpenAIVideos struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenAIVideos(baseURL, apiKey, model string) *OpenAIVideos {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIVideos{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type videoJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIVideos) Start(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"model": c.Model, "prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	var job videoJob
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/videos", body, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("video generation returned no operation id")
	}
	return job.ID, nil
}

func (c *OpenAIVideos) Poll(ctx context.Context, operationID string) (VideoStatus, error) {
	var job videoJob
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/videos/"+url.PathEscape(operationID), nil, &job); err != nil {
		return VideoStatus{}, err
	}
	switch job.Status {
	case "completed":
		return VideoStatus{Done: true, URI: c.BaseURL + "/videos/" + url.PathEscape(operationID) + "/content"}, nil
	case "failed":
		msg := "video generation failed"
		if job.Error != nil && job.Error.Message != "" {
			msg = job.Error.Message
		}
		return VideoStatus{Done: true, Error: msg}, nil
	}
	return VideoStatus{}, nil
}

func (c *OpenAIVideos) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("video request failed: status code %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
