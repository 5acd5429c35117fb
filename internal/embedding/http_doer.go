package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpRequest/httpResponse mirror the OpenAI-compatible `{model, input}`
// embeddings wire shape that Voyage, OpenAI, and DeepInfra all speak.
type httpRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type httpResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type restDoer struct {
	baseURL   string
	apiHeader string
	apiKey    string
	client    *http.Client
}

func newHTTPDoer(backend Backend, apiKey string) httpDoer {
	switch backend {
	case BackendVoyage:
		return &restDoer{baseURL: "https://api.voyageai.com/v1/embeddings", apiHeader: "Authorization", apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
	case BackendOpenAI:
		return &restDoer{baseURL: "https://api.openai.com/v1/embeddings", apiHeader: "Authorization", apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
	case BackendDeepInfra:
		return &restDoer{baseURL: "https://api.deepinfra.com/v1/openai/embeddings", apiHeader: "Authorization", apiKey: apiKey, client: &http.Client{Timeout: 60 * time.Second}}
	default:
		return &restDoer{baseURL: "", apiHeader: "", apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
	}
}

func (d *restDoer) Do(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(httpRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	} else if d.apiHeader != "" {
		req.Header.Set(d.apiHeader, d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embedding endpoint returned %s: %s", resp.Status, string(raw))
	}

	var parsed httpResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(parsed.Data), len(inputs))
	}
	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}
