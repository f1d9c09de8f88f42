package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Vision calls a local OCR/vision sidecar over HTTP. The sidecar already
// receives image-derived text from the ingestion collaborators; this
// provider only covers categorization of such text when the cloud
// providers are down or unconfigured.
type Vision struct {
	baseURL    string
	httpClient *http.Client
}

// NewVision creates a Vision provider targeting the sidecar base URL.
func NewVision(baseURL string) *Vision {
	return &Vision{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

func (p *Vision) Name() string { return NameVision }

type visionRequest struct {
	Prompt string `json:"prompt"`
}

type visionResponse struct {
	Text string `json:"text"`
}

// Generate posts the prompt to the sidecar and returns its text response.
func (p *Vision) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(visionRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return result.Text, nil
}
