package intervention

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type scriptedStream struct {
	tokens []string
	next   int
	err    error // returned after tokens are drained instead of io.EOF
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.next >= len(s.tokens) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	token := s.tokens[s.next]
	s.next++
	return token, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type scriptedStreamClient struct {
	stream  *scriptedStream
	openErr error
}

func (c *scriptedStreamClient) StreamText(context.Context, string, float64, int) (TokenStream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

func TestStreamDeliversTokensThenDone(t *testing.T) {
	stream := &scriptedStream{tokens: []string{"Hello", " ", "world"}}
	g := NewStreamingGateway(&scriptedStreamClient{stream: stream}, GatewayConfig{}, nil, SubsystemModel, testLogger())

	events, err := g.Stream(context.Background(), "p")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var tokens []string
	var done bool
	for event := range events {
		switch {
		case event.Done:
			done = true
		case event.Err != nil:
			t.Fatalf("unexpected error event: %v", event.Err)
		default:
			tokens = append(tokens, event.Token)
		}
	}
	if !done {
		t.Fatalf("missing terminal Done event")
	}
	if len(tokens) != 3 || tokens[0] != "Hello" || tokens[2] != "world" {
		t.Fatalf("tokens = %v", tokens)
	}
	if !stream.closed {
		t.Fatalf("upstream not closed after completion")
	}
}

func TestStreamMidFlightErrorIsTerminal(t *testing.T) {
	boom := errors.New("connection reset")
	stream := &scriptedStream{tokens: []string{"a", "b"}, err: boom}
	health := NewHealthMonitor(SubsystemModel)
	g := NewStreamingGateway(&scriptedStreamClient{stream: stream}, GatewayConfig{}, health, SubsystemModel, testLogger())

	events, err := g.Stream(context.Background(), "p")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var sawTokens int
	var terminal error
	for event := range events {
		if event.Err != nil {
			terminal = event.Err
			continue
		}
		if event.Done {
			t.Fatalf("Done must not follow a failure")
		}
		sawTokens++
	}
	if sawTokens != 2 {
		t.Fatalf("tokens before failure = %d, want 2", sawTokens)
	}
	if !errors.Is(terminal, boom) {
		t.Fatalf("terminal error = %v, want wrapped %v", terminal, boom)
	}
	if snap := health.Snapshot(); snap.Status != StatusDegraded {
		t.Fatalf("mid-flight failure must mark the model subsystem not live")
	}
}

func TestStreamOpenFailure(t *testing.T) {
	g := NewStreamingGateway(&scriptedStreamClient{openErr: errors.New("dial refused")}, GatewayConfig{}, nil, SubsystemModel, testLogger())
	_, err := g.Stream(context.Background(), "p")
	var unavailable *GatewayUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected GatewayUnavailableError, got %v", err)
	}
}

func TestStreamCancellationStopsConsumption(t *testing.T) {
	stream := &scriptedStream{tokens: []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}}
	g := NewStreamingGateway(&scriptedStreamClient{stream: stream}, GatewayConfig{}, nil, SubsystemModel, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := g.Stream(ctx, "p")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	received := 0
	for event := range events {
		if event.Token != "" {
			received++
		}
		if received == 2 {
			cancel()
			break
		}
	}

	// the producer goroutine must exit and close the channel
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				if stream.next > 4 {
					t.Fatalf("upstream consumption continued after cancel: %d reads", stream.next)
				}
				return
			}
		case <-deadline:
			t.Fatalf("producer did not stop after cancellation")
		}
	}
}
