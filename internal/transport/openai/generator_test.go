package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// openaiChatResponse mirrors the OpenAI-compatible chat completion response.
type openaiChatResponse struct {
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func chatResponse(content string, prompt, completion int) openaiChatResponse {
	resp := openaiChatResponse{Object: "chat.completion", Model: "test-model"}
	resp.Choices = append(resp.Choices, struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}{
		Index:        0,
		FinishReason: "stop",
	})
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content
	resp.Usage.PromptTokens = prompt
	resp.Usage.CompletionTokens = completion
	resp.Usage.TotalTokens = prompt + completion
	return resp
}

func TestGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("model = %q, expected test-model", body.Model)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("  refined query\n", 30, 7))
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "test-model",
		Logger:       zap.NewNop(),
	})

	result, err := gen.Generate(context.Background(), domain.GenerationRequest{
		System: "you rewrite queries",
		Prompt: "original query",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Text != "refined query" {
		t.Errorf("Text = %q, expected trimmed content", result.Text)
	}
	if result.Model != "test-model" {
		t.Errorf("Model = %q, expected default model fallback", result.Model)
	}
	if result.InputTokens != 30 || result.OutputTokens != 7 {
		t.Errorf("usage = %d/%d, expected 30/7", result.InputTokens, result.OutputTokens)
	}
}

func TestGenerator_ExplicitModelOverridesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "other-model" {
			t.Errorf("model = %q, expected other-model", body.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("ok", 1, 1))
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "test-model",
		Logger:       zap.NewNop(),
	})

	result, err := gen.Generate(context.Background(), domain.GenerationRequest{
		Model:  "other-model",
		Prompt: "hi",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Model != "other-model" {
		t.Errorf("Model = %q, expected other-model", result.Model)
	}
}

func TestGenerator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "upstream unavailable",
				"type":    "server_error",
			},
		})
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "test-model",
		Logger:       zap.NewNop(),
	})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !errors.Is(err, domain.ErrGenerationProvider) {
		t.Errorf("expected ErrGenerationProvider, got %v", err)
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openaiChatResponse{Object: "chat.completion", Model: "test-model"})
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "test-model",
		Logger:       zap.NewNop(),
	})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrGenerationProvider) {
		t.Errorf("expected ErrGenerationProvider for empty choices, got %v", err)
	}
}
