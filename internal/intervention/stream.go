package intervention

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"seal-gateway/internal/gemini"
)

// TokenStream is the upstream chunk source. Recv returns io.EOF when the
// model finishes the stream cleanly.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// StreamingClient is the streaming call contract against the hosted model.
// *gemini.Client satisfies it via a thin adapter (see GeminiStreamAdapter).
type StreamingClient interface {
	StreamText(ctx context.Context, prompt string, temperature float64, maxTokens int) (TokenStream, error)
}

// StreamEvent is one element of the delivered sequence: a token, or exactly
// one terminal event (Done for clean completion, Err for mid-stream failure).
type StreamEvent struct {
	Token string
	Err   error
	Done  bool
}

// GeminiStreamAdapter lifts *gemini.Client onto the StreamingClient
// contract (its concrete stream type satisfies TokenStream).
type GeminiStreamAdapter struct {
	Client *gemini.Client
}

func (a GeminiStreamAdapter) StreamText(ctx context.Context, prompt string, temperature float64, maxTokens int) (TokenStream, error) {
	stream, err := a.Client.StreamText(ctx, prompt, temperature, maxTokens)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// StreamingGateway delivers model output token by token to a single
// consumer. Streaming calls are never retried here; a retry is a fresh call
// by the caller. Cancelling the context stops upstream consumption within
// one chunk wait and closes the connection.
type StreamingGateway struct {
	client    StreamingClient
	cfg       GatewayConfig
	health    *HealthMonitor
	subsystem string
	logger    *slog.Logger
}

func NewStreamingGateway(client StreamingClient, cfg GatewayConfig, health *HealthMonitor, subsystem string, logger *slog.Logger) *StreamingGateway {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamingGateway{
		client:    client,
		cfg:       cfg,
		health:    health,
		subsystem: subsystem,
		logger:    logger,
	}
}

// Stream opens the upstream call and returns the event channel. The channel
// is unbuffered: the producer suspends until the consumer takes each chunk,
// so nothing is buffered indefinitely and cancellation propagates promptly.
func (g *StreamingGateway) Stream(ctx context.Context, prompt string) (<-chan StreamEvent, error) {
	upstream, err := g.client.StreamText(ctx, prompt, g.cfg.Params.Temperature, g.cfg.Params.MaxOutputTokens)
	if err != nil {
		g.markLive(false)
		return nil, &GatewayUnavailableError{Attempts: 1, Err: err}
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer upstream.Close()
		tokens := 0
		for {
			token, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				g.markLive(true)
				g.logger.Info("stream completed", "subsystem", g.subsystem, "tokens", tokens)
				select {
				case out <- StreamEvent{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				g.markLive(false)
				g.logger.Error("stream failed mid-flight", "subsystem", g.subsystem, "tokens", tokens, "error", err)
				select {
				case out <- StreamEvent{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- StreamEvent{Token: token}:
				tokens++
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (g *StreamingGateway) markLive(live bool) {
	if g.health != nil {
		g.health.SetLive(g.subsystem, live)
	}
}
