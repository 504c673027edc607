package narrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/louisbranch/everloom/internal/errors"
)

func TestNewHTTPValidatesConfig(t *testing.T) {
	if _, err := NewHTTP(HTTPConfig{Model: "narrator-1"}); err == nil {
		t.Error("NewHTTP(no url) err = nil, want error")
	}
	if _, err := NewHTTP(HTTPConfig{ResponsesURL: "http://narrator"}); err == nil {
		t.Error("NewHTTP(no model) err = nil, want error")
	}
}

func TestNarrateDecodesTextAndDeltas(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var request map[string]any
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if request["model"] != "narrator-1" {
			t.Errorf("model = %v, want narrator-1", request["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"output_text": "The gate creaks open.",
			"deltas":      []map[string]string{{"kind": "hp_lost", "value": "3"}},
		})
	}))
	defer server.Close()

	narrator, err := NewHTTP(HTTPConfig{ResponsesURL: server.URL, Model: "narrator-1", APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewHTTP() err = %v", err)
	}

	narration, err := narrator.Narrate(context.Background(), ContextBundle{
		SystemInstructions: "narrate the scene",
		PlayerInput:        "I push the gate",
	})
	if err != nil {
		t.Fatalf("Narrate() err = %v", err)
	}
	if narration.Text != "The gate creaks open." {
		t.Errorf("Text = %q", narration.Text)
	}
	if len(narration.Deltas) != 1 || narration.Deltas[0].Kind != "hp_lost" || narration.Deltas[0].Value != "3" {
		t.Errorf("Deltas = %+v, want one hp_lost delta", narration.Deltas)
	}
	if narration.Degraded {
		t.Error("Degraded = true, want false")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestNarrateFallsBackToOutputBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{{
				"content": []map[string]string{
					{"type": "reasoning", "text": "ignored"},
					{"type": "output_text", "text": "A cold wind answers."},
				},
			}},
		})
	}))
	defer server.Close()

	narrator, err := NewHTTP(HTTPConfig{ResponsesURL: server.URL, Model: "narrator-1"})
	if err != nil {
		t.Fatalf("NewHTTP() err = %v", err)
	}
	narration, err := narrator.Narrate(context.Background(), ContextBundle{PlayerInput: "listen"})
	if err != nil {
		t.Fatalf("Narrate() err = %v", err)
	}
	if narration.Text != "A cold wind answers." {
		t.Errorf("Text = %q", narration.Text)
	}
}

func TestNarrateServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	narrator, err := NewHTTP(HTTPConfig{ResponsesURL: server.URL, Model: "narrator-1"})
	if err != nil {
		t.Fatalf("NewHTTP() err = %v", err)
	}
	_, err = narrator.Narrate(context.Background(), ContextBundle{PlayerInput: "wait"})
	if !apperrors.IsCode(err, apperrors.CodeNarratorUnavailable) {
		t.Fatalf("Narrate() err = %v, want %s", err, apperrors.CodeNarratorUnavailable)
	}
}

func TestNarrateEmptyResponseIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output_text": ""})
	}))
	defer server.Close()

	narrator, err := NewHTTP(HTTPConfig{ResponsesURL: server.URL, Model: "narrator-1"})
	if err != nil {
		t.Fatalf("NewHTTP() err = %v", err)
	}
	if _, err := narrator.Narrate(context.Background(), ContextBundle{PlayerInput: "wait"}); !apperrors.IsCode(err, apperrors.CodeNarratorUnavailable) {
		t.Fatalf("Narrate() err = %v, want %s", err, apperrors.CodeNarratorUnavailable)
	}
}

func TestStaticNarrator(t *testing.T) {
	static := Static{Text: "canned", Deltas: []StateDelta{{Kind: "hp_lost", Value: "1"}}}
	narration, err := static.Narrate(context.Background(), ContextBundle{})
	if err != nil {
		t.Fatalf("Narrate() err = %v", err)
	}
	if narration.Text != "canned" || len(narration.Deltas) != 1 {
		t.Errorf("narration = %+v", narration)
	}

	failing := Static{Err: ErrUnavailable(nil)}
	if _, err := failing.Narrate(context.Background(), ContextBundle{}); !apperrors.IsCode(err, apperrors.CodeNarratorUnavailable) {
		t.Fatalf("Narrate() err = %v, want unavailable", err)
	}
}

func TestFallbackIsDegraded(t *testing.T) {
	narration := Fallback()
	if !narration.Degraded {
		t.Error("Degraded = false, want true")
	}
	if narration.Text == "" {
		t.Error("Text is empty")
	}
}
