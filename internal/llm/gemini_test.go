package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func geminiReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func newTestGemini(url string) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: url,
		Timeout: 5 * time.Second,
	})
}

func TestGeminiCompleteWithSystem(t *testing.T) {
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/models/gemini-test:generateContent"; r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q, want test-key", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		geminiReply(t, w, "  the answer  ")
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	got, err := c.CompleteWithSystem(context.Background(), "be brief", "what is up")
	if err != nil {
		t.Fatalf("CompleteWithSystem() error = %v", err)
	}
	if got != "the answer" {
		t.Errorf("completion = %q, want trimmed %q", got, "the answer")
	}

	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" ||
		len(gotReq.Contents[0].Parts) != 1 || gotReq.Contents[0].Parts[0].Text != "what is up" {
		t.Errorf("contents = %+v, want one user turn", gotReq.Contents)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("systemInstruction = %+v, want the system prompt", gotReq.SystemInstruction)
	}
	if gotReq.GenerationConfig.ResponseMimeType != "" {
		t.Errorf("response mime type = %q, want empty for plain completion", gotReq.GenerationConfig.ResponseMimeType)
	}
}

func TestGeminiCompleteStructured(t *testing.T) {
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		geminiReply(t, w, `{"action":"build"}`)
	}))
	defer srv.Close()

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{"type": "string"},
		},
	}
	c := newTestGemini(srv.URL)
	got, err := c.CompleteStructured(context.Background(), "sys", "user", schema)
	if err != nil {
		t.Fatalf("CompleteStructured() error = %v", err)
	}
	if !strings.Contains(got, `"action"`) {
		t.Errorf("completion = %q, want raw JSON", got)
	}

	if gotReq.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("response mime type = %q, want application/json", gotReq.GenerationConfig.ResponseMimeType)
	}
	if gotReq.GenerationConfig.ResponseSchema == nil {
		t.Fatal("response schema missing from request")
	}
	if gotReq.GenerationConfig.ResponseSchema["type"] != "object" {
		t.Errorf("schema type = %v, want object", gotReq.GenerationConfig.ResponseSchema["type"])
	}
}

func TestGeminiRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		geminiReply(t, w, "recovered")
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	got, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v, want retry to succeed", err)
	}
	if got != "recovered" {
		t.Errorf("completion = %q, want recovered", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one 429, one success)", calls)
	}
}

func TestGeminiNonRetryableStatusFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"code":400,"message":"bad schema"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	_, err := c.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("Complete() error = nil, want 400 failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls)
	}
}

func TestGeminiAPIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"error":{"code":403,"message":"API key invalid","status":"PERMISSION_DENIED"}}`)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	_, err := c.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("Complete() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "API key invalid") {
		t.Errorf("error = %v, want the API error message", err)
	}
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"candidates":[]}`)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	if _, err := c.Complete(context.Background(), "hello"); err == nil {
		t.Fatal("Complete() error = nil, want no-completion error")
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{BaseURL: "http://127.0.0.1:0"})
	if _, err := c.Complete(context.Background(), "hello"); err == nil {
		t.Fatal("Complete() error = nil, want missing key error")
	}
}

func TestGeminiHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/models/gemini-test"; r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		if _, err := w.Write([]byte(`{"name":"models/gemini-test"}`)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer srv.Close()

	c := newTestGemini(srv.URL)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestGeminiDefaults(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{APIKey: "k"})
	info := c.Info()
	if info.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", info.Provider)
	}
	if info.Model != defaultGeminiModel {
		t.Errorf("model = %q, want %q", info.Model, defaultGeminiModel)
	}
	if info.Endpoint != defaultGeminiBaseURL {
		t.Errorf("endpoint = %q, want %q", info.Endpoint, defaultGeminiBaseURL)
	}
}
