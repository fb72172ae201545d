package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func generateBody(text string) string {
	resp := GenerateResponse{
		Candidates: []Candidate{
			{Content: Content{Role: "model", Parts: []Part{{Text: text}}}},
		},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestGenerateTextSendsAPIKeyAndBody(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotBody GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		fmt.Fprint(w, generateBody("hello"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gemini-1.5-flash-002"})
	text, err := client.GenerateText(context.Background(), "say hello", 0.7, 256)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "hello" {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/v1beta/models/gemini-1.5-flash-002:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("x-goog-api-key = %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "say hello" {
		t.Fatalf("request body = %+v", gotBody)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.MaxOutputTokens != 256 {
		t.Fatalf("generation config = %+v", gotBody.GenerationConfig)
	}
}

func TestGenerateTextErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.GenerateText(context.Background(), "p", 0, 16)
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 429 || !apiErr.Retryable() {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "quota exceeded") {
		t.Fatalf("error message = %q", apiErr.Error())
	}
}

func TestGenerateTextNonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream proxy error")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.GenerateText(context.Background(), "p", 0, 16)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := IsAPIError(err); ok {
		t.Fatalf("non-envelope body must not become an APIError")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error = %v", err)
	}
}

func TestGenerateTextEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	if _, err := client.GenerateText(context.Background(), "p", 0, 16); err == nil {
		t.Fatalf("empty candidates must error")
	}
}

func TestAPIErrorRetryable(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{408, true}, {429, true}, {500, true}, {503, true},
		{400, false}, {401, false}, {403, false}, {404, false},
	}
	for _, tc := range cases {
		apiErr := &APIError{StatusCode: tc.code}
		if got := apiErr.Retryable(); got != tc.want {
			t.Fatalf("Retryable(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(Config{})
	if client.baseURL != "https://generativelanguage.googleapis.com" {
		t.Fatalf("baseURL = %q", client.baseURL)
	}
	if client.Model() != "gemini-1.5-flash-002" {
		t.Fatalf("model = %q", client.Model())
	}
}

func TestCollectTextJoinsParts(t *testing.T) {
	resp := &GenerateResponse{
		Candidates: []Candidate{
			{Content: Content{Parts: []Part{{Text: "a"}, {Text: ""}, {Text: "b"}}}},
		},
	}
	if got := CollectText(resp); got != "ab" {
		t.Fatalf("CollectText = %q", got)
	}
	if got := CollectText(nil); got != "" {
		t.Fatalf("CollectText(nil) = %q", got)
	}
}

func TestGenerateTextContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GenerateText(ctx, "p", 0, 16)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
