package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPConfig configures the HTTP narrator endpoint and behavior.
type HTTPConfig struct {
	ResponsesURL string
	Model        string
	APIKey       string
	HTTPClient   *http.Client
}

// HTTPNarrator calls an OpenAI-responses-style endpoint with the
// serialized context bundle and decodes prose plus optional deltas.
type HTTPNarrator struct {
	cfg HTTPConfig
}

// NewHTTP builds an HTTP narrator.
func NewHTTP(cfg HTTPConfig) (*HTTPNarrator, error) {
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		return nil, fmt.Errorf("responses url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &HTTPNarrator{cfg: cfg}, nil
}

// Narrate posts the bundle and returns the narration. All failures
// are wrapped as narrator-unavailable so the engine can mask them.
func (n *HTTPNarrator) Narrate(ctx context.Context, bundle ContextBundle) (Narration, error) {
	input, err := json.Marshal(bundle)
	if err != nil {
		return Narration{}, ErrUnavailable(fmt.Errorf("marshal context bundle: %w", err))
	}
	requestBody, err := json.Marshal(map[string]any{
		"model":        n.cfg.Model,
		"instructions": bundle.SystemInstructions,
		"input":        string(input),
	})
	if err != nil {
		return Narration{}, ErrUnavailable(fmt.Errorf("marshal narrate request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return Narration{}, ErrUnavailable(fmt.Errorf("build narrate request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.APIKey != "" {
		// Credential material travels only in the Authorization header
		// and is never echoed in errors.
		req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	}

	res, err := n.cfg.HTTPClient.Do(req)
	if err != nil {
		return Narration{}, ErrUnavailable(fmt.Errorf("narrate request failed: %w", err))
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return Narration{}, ErrUnavailable(fmt.Errorf("read narrate error body: %w", readErr))
		}
		return Narration{}, ErrUnavailable(fmt.Errorf("narrate request status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload struct {
		OutputText string       `json:"output_text"`
		Deltas     []StateDelta `json:"deltas"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Narration{}, ErrUnavailable(fmt.Errorf("decode narrate response: %w", err))
	}

	text := strings.TrimSpace(payload.OutputText)
	if text == "" {
		for _, output := range payload.Output {
			for _, content := range output.Content {
				if content.Type == "output_text" && strings.TrimSpace(content.Text) != "" {
					text = strings.TrimSpace(content.Text)
					break
				}
			}
			if text != "" {
				break
			}
		}
	}
	if text == "" {
		return Narration{}, ErrUnavailable(fmt.Errorf("narrate response contained no text"))
	}
	return Narration{Text: text, Deltas: payload.Deltas}, nil
}
