package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sseChunk(text string) string {
	return fmt.Sprintf("data: %s\n\n", generateBody(text))
}

func TestStreamTextParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash-002:streamGenerateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt = %q", r.URL.Query().Get("alt"))
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, sseChunk("Hello"))
		fmt.Fprint(w, sseChunk(" world"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	stream, err := client.StreamText(context.Background(), "p", 0.5, 128)
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	defer stream.Close()

	var tokens []string
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		tokens = append(tokens, token)
	}
	if len(tokens) != 2 || tokens[0] != "Hello" || tokens[1] != " world" {
		t.Fatalf("tokens = %v", tokens)
	}
}

func TestStreamTextSkipsEmptyChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[]}\n\n")
		fmt.Fprint(w, sseChunk("only"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	stream, err := client.StreamText(context.Background(), "p", 0, 64)
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	defer stream.Close()

	token, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if token != "only" {
		t.Fatalf("token = %q", token)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestStreamTextOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":401,"message":"API key invalid","status":"UNAUTHENTICATED"}}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.StreamText(context.Background(), "p", 0, 64)
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 401 || apiErr.Retryable() {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestStreamTextJoinsMultiPartChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := GenerateResponse{
			Candidates: []Candidate{
				{Content: Content{Role: "model", Parts: []Part{{Text: "Hello"}, {Text: " world"}}}},
			},
		}
		out, _ := json.Marshal(resp)
		fmt.Fprintf(w, "data: %s\n\n", out)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	stream, err := client.StreamText(context.Background(), "p", 0, 64)
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	defer stream.Close()

	token, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if token != "Hello world" {
		t.Fatalf("token = %q, want %q", token, "Hello world")
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last chunk, got %v", err)
	}
}

func TestStreamTextRecvAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("x"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	stream, err := client.StreamText(context.Background(), "p", 0, 64)
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("Recv after Close should return EOF, got %v", err)
	}
	// idempotent
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
