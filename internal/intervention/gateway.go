package intervention

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ModelClient is the synchronous call contract against the hosted model.
// *gemini.Client satisfies it.
type ModelClient interface {
	GenerateText(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

type GatewayConfig struct {
	Params         GenerationParams
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func (c *GatewayConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.Params.MaxOutputTokens <= 0 {
		c.Params.MaxOutputTokens = 2048
	}
}

type backoffSchedule interface {
	NextBackOff() time.Duration
}

// monotonicSchedule clamps each delay to at least the previous one. The
// jitter ranges of consecutive exponential steps overlap, so the raw
// schedule alone can hand out a shorter delay after a longer one.
type monotonicSchedule struct {
	inner backoffSchedule
	floor time.Duration
}

func (s *monotonicSchedule) NextBackOff() time.Duration {
	d := s.inner.NextBackOff()
	if d < s.floor {
		d = s.floor
	}
	s.floor = d
	return d
}

// Gateway wraps a ModelClient with sequential retry, per-attempt timeouts and
// liveness reporting. Retries never run concurrently to avoid duplicate
// billed calls.
type Gateway struct {
	client    ModelClient
	cfg       GatewayConfig
	health    *HealthMonitor
	subsystem string
	logger    *slog.Logger

	newSchedule func() backoffSchedule
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewGateway(client ModelClient, cfg GatewayConfig, health *HealthMonitor, subsystem string, logger *slog.Logger) *Gateway {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		client:    client,
		cfg:       cfg,
		health:    health,
		subsystem: subsystem,
		logger:    logger,
		sleep:     sleepContext,
	}
	g.newSchedule = func() backoffSchedule {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.BaseDelay
		b.MaxInterval = cfg.MaxDelay
		return &monotonicSchedule{inner: b}
	}
	return g
}

// Generate runs the synchronous call path. The returned GatewayCallResult is
// populated on failure too, so attempt counts and latency stay observable.
func (g *Gateway) Generate(ctx context.Context, prompt string) (GatewayCallResult, error) {
	start := time.Now()
	schedule := g.newSchedule()
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		text, err := g.client.GenerateText(attemptCtx, prompt, g.cfg.Params.Temperature, g.cfg.Params.MaxOutputTokens)
		cancel()

		if err == nil {
			g.markLive(true)
			result := GatewayCallResult{
				Text:     text,
				Latency:  time.Since(start),
				Attempts: attempt,
				Status:   CallSuccess,
			}
			g.logger.Info("gateway call succeeded",
				"subsystem", g.subsystem,
				"attempts", attempt,
				"latency_ms", result.Latency.Milliseconds(),
			)
			return result, nil
		}

		if !retryable(err) {
			g.markLive(false)
			result := GatewayCallResult{
				Latency:  time.Since(start),
				Attempts: attempt,
				Status:   CallFatal,
			}
			g.logger.Error("gateway call failed fatally",
				"subsystem", g.subsystem,
				"attempts", attempt,
				"latency_ms", result.Latency.Milliseconds(),
				"error", err,
			)
			return result, &GatewayUnavailableError{Attempts: attempt, Err: err}
		}

		lastErr = &GatewayTransientError{Err: err}
		g.logger.Warn("gateway call failed, will retry",
			"subsystem", g.subsystem,
			"attempt", attempt,
			"max_attempts", g.cfg.MaxAttempts,
			"error", err,
		)
		if attempt < g.cfg.MaxAttempts {
			if err := g.sleep(ctx, schedule.NextBackOff()); err != nil {
				g.markLive(false)
				return GatewayCallResult{
					Latency:  time.Since(start),
					Attempts: attempt,
					Status:   CallFatal,
				}, &GatewayUnavailableError{Attempts: attempt, Err: err}
			}
		}
	}

	g.markLive(false)
	result := GatewayCallResult{
		Latency:  time.Since(start),
		Attempts: g.cfg.MaxAttempts,
		Status:   CallExhausted,
	}
	g.logger.Error("gateway retries exhausted",
		"subsystem", g.subsystem,
		"attempts", g.cfg.MaxAttempts,
		"latency_ms", result.Latency.Milliseconds(),
		"error", lastErr,
	)
	return result, &GatewayUnavailableError{Attempts: g.cfg.MaxAttempts, Err: lastErr}
}

// Probe issues a single lightweight call and records the outcome in the
// liveness cache. Used by on-demand health refresh; never retried.
func (g *Gateway) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()
	_, err := g.client.GenerateText(probeCtx, "Return the word 'healthy' if you're working.", 0, 16)
	g.markLive(err == nil)
	return err == nil
}

func (g *Gateway) markLive(live bool) {
	if g.health != nil {
		g.health.SetLive(g.subsystem, live)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
