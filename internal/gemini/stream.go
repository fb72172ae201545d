package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// TextStream reads candidate text chunks off a streamGenerateContent SSE
// response. Recv returns io.EOF once the upstream stream completes.
type TextStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func (c *Client) StreamText(ctx context.Context, prompt string, temperature float64, maxTokens int) (*TextStream, error) {
	req := GenerateRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: prompt}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", c.model)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		request.Header.Set("x-goog-api-key", c.apiKey)
	}

	response, err := c.streamClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1<<16))
		_ = response.Body.Close()
		envelope, ok := ParseAPIErrorEnvelope(body)
		if !ok {
			return nil, fmt.Errorf("stream api status %d: %s", response.StatusCode, string(body))
		}
		return nil, &APIError{
			StatusCode: response.StatusCode,
			Envelope:   envelope,
			Body:       body,
		}
	}

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &TextStream{body: response.Body, scanner: scanner}, nil
}

func (s *TextStream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk GenerateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if envelope, ok := ParseAPIErrorEnvelope([]byte(data)); ok {
			return "", &APIError{StatusCode: envelope.Error.Code, Envelope: envelope, Body: []byte(data)}
		}
		text := CollectText(&chunk)
		if text == "" {
			continue
		}
		return text, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", io.EOF
}

func (s *TextStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
