package intervention

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

const tracerName = "seal-core"

// AuditRecord is the structured event the core emits per pipeline outcome.
// Where it is written is the sink's business.
type AuditRecord struct {
	ID        string `json:"id"`
	ClassID   string `json:"class_id"`
	Area      string `json:"area"`
	Outcome   string `json:"outcome"`
	Decision  string `json:"decision,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Attempts  int    `json:"attempts"`
	LatencyMS int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type AuditSink interface {
	Record(ctx context.Context, entry AuditRecord)
}

// Observer receives pipeline metrics. Implemented by the server
// observability layer; a nil Observer is replaced with a no-op.
type Observer interface {
	MarkPlan(ctx context.Context, outcome string)
	MarkSafety(ctx context.Context, decision string)
	MarkBackpressure(ctx context.Context)
	RecordGatewayLatency(ctx context.Context, ms int64, status string)
}

type noopObserver struct{}

func (noopObserver) MarkPlan(context.Context, string)                    {}
func (noopObserver) MarkSafety(context.Context, string)                  {}
func (noopObserver) MarkBackpressure(context.Context)                    {}
func (noopObserver) RecordGatewayLatency(context.Context, int64, string) {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditRecord) {}

// CallLimiter bounds outstanding model calls across every pipeline that
// shares it. Acquisition never blocks; callers past the limit fail fast.
type CallLimiter struct {
	sem   *semaphore.Weighted
	limit int
}

func NewCallLimiter(limit int) *CallLimiter {
	if limit <= 0 {
		limit = 8
	}
	return &CallLimiter{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

func (l *CallLimiter) TryAcquire() bool { return l.sem.TryAcquire(1) }
func (l *CallLimiter) Release()         { l.sem.Release(1) }
func (l *CallLimiter) Limit() int       { return l.limit }

type ServiceDeps struct {
	Gateway   *Gateway
	Streaming *StreamingGateway
	Prompts   *PromptBuilder
	Guardrail *Guardrail
	Validator *Validator[InterventionPlan]
	Audit     AuditSink
	Observer  Observer
	Logger    *slog.Logger
	// Limiter is shared with every other pipeline calling the same model.
	// When nil, a private limiter of MaxConcurrentCalls slots is created.
	Limiter            *CallLimiter
	MaxConcurrentCalls int
}

// Service is the request pipeline: aggregate, build prompt, call the model,
// run the guardrail, validate the output. Outstanding model calls across
// both paths are bounded; callers past the limit fail fast with a
// BackpressureError rather than queueing.
type Service struct {
	gateway   *Gateway
	streaming *StreamingGateway
	prompts   *PromptBuilder
	guard     *Guardrail
	validator *Validator[InterventionPlan]
	audit     AuditSink
	observer  Observer
	logger    *slog.Logger
	limiter   *CallLimiter
}

func NewService(deps ServiceDeps) *Service {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewCallLimiter(deps.MaxConcurrentCalls)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := deps.Audit
	if audit == nil {
		audit = noopAudit{}
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = NewPromptBuilder(nil)
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewPlanValidator()
	}
	return &Service{
		gateway:   deps.Gateway,
		streaming: deps.Streaming,
		prompts:   prompts,
		guard:     deps.Guardrail,
		validator: validator,
		audit:     audit,
		observer:  observer,
		logger:    logger,
		limiter:   limiter,
	}
}

// GeneratePlan is the synchronous path: returns a schema-conformant plan or
// a typed error. Rejections and mismatches are never downgraded to partial
// successes.
func (s *Service) GeneratePlan(ctx context.Context, req InterventionRequest) (*InterventionPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.limiter.TryAcquire() {
		s.observer.MarkBackpressure(ctx)
		return nil, &BackpressureError{Limit: s.limiter.Limit()}
	}
	defer s.limiter.Release()

	requestID := uuid.NewString()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "intervention.generate_plan")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("class.id", req.Metadata.ClassID),
		attribute.String("deficient.area", string(req.Metadata.DeficientArea)),
	)

	aggregated := Aggregate(req.Scores)
	prompt, err := s.prompts.Build(req.Metadata, aggregated)
	if err != nil {
		s.record(ctx, requestID, req.Metadata, "template_not_found", nil, GatewayCallResult{}, err)
		return nil, err
	}

	result, gatewayErr := s.gateway.Generate(ctx, prompt)
	s.observer.RecordGatewayLatency(ctx, result.Latency.Milliseconds(), string(result.Status))
	if gatewayErr != nil {
		span.RecordError(gatewayErr)
		s.observer.MarkPlan(ctx, "gateway_unavailable")
		s.record(ctx, requestID, req.Metadata, "gateway_unavailable", nil, result, gatewayErr)
		return nil, gatewayErr
	}

	verdict := s.guard.Evaluate(result.Text)
	s.observer.MarkSafety(ctx, string(verdict.Decision))
	text := result.Text
	switch verdict.Decision {
	case DecisionReject:
		rejection := &SafetyRejection{Verdict: verdict}
		s.observer.MarkPlan(ctx, "safety_rejected")
		s.record(ctx, requestID, req.Metadata, "safety_rejected", &verdict, result, rejection)
		return nil, rejection
	case DecisionRedact:
		text = Redact(text, verdict)
	}

	plan, err := s.validator.Validate(text)
	if err != nil {
		span.RecordError(err)
		s.observer.MarkPlan(ctx, "schema_mismatch")
		s.record(ctx, requestID, req.Metadata, "schema_mismatch", &verdict, result, err)
		return nil, err
	}

	s.observer.MarkPlan(ctx, "success")
	s.record(ctx, requestID, req.Metadata, "success", &verdict, result, nil)
	return plan, nil
}

// streamGuardTail is how many bytes of screened text are held back across
// chunk boundaries so a guard pattern split over two upstream chunks still
// lands inside one evaluation window. Covers the widest structural pattern.
const streamGuardTail = 64

// StreamPlan is the token-streaming path. The guardrail runs over a rolling
// window that withholds the last streamGuardTail bytes until the next chunk
// arrives, so banned terms split across chunks are still caught. A reject
// verdict cancels the upstream call and is delivered as the terminal error
// event. Streaming output is not schema-validated.
func (s *Service) StreamPlan(ctx context.Context, req InterventionRequest) (<-chan StreamEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.limiter.TryAcquire() {
		s.observer.MarkBackpressure(ctx)
		return nil, &BackpressureError{Limit: s.limiter.Limit()}
	}

	aggregated := Aggregate(req.Scores)
	prompt, err := s.prompts.Build(req.Metadata, aggregated)
	if err != nil {
		s.limiter.Release()
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	upstream, err := s.streaming.Stream(streamCtx, prompt)
	if err != nil {
		cancel()
		s.limiter.Release()
		return nil, err
	}

	requestID := uuid.NewString()
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer s.limiter.Release()
		defer cancel()

		start := time.Now()
		var tail string
		emit := func(text string) bool {
			if text == "" {
				return true
			}
			return s.deliver(ctx, out, StreamEvent{Token: text})
		}
		finish := func(outcome string, cause error) {
			result := GatewayCallResult{Latency: time.Since(start), Attempts: 1}
			s.record(ctx, requestID, req.Metadata, outcome, nil, result, cause)
		}

		for event := range upstream {
			if event.Err != nil {
				if emit(tail) {
					s.deliver(ctx, out, StreamEvent{Err: &GatewayUnavailableError{Attempts: 1, Err: event.Err}})
				}
				finish("gateway_unavailable", event.Err)
				return
			}
			if event.Done {
				if emit(tail) {
					s.deliver(ctx, out, StreamEvent{Done: true})
				}
				finish("success", nil)
				return
			}

			tail += event.Token
			verdict := s.guard.Evaluate(tail)
			switch verdict.Decision {
			case DecisionReject:
				cancel()
				s.observer.MarkSafety(ctx, string(verdict.Decision))
				s.record(ctx, requestID, req.Metadata, "safety_rejected", &verdict,
					GatewayCallResult{Latency: time.Since(start), Attempts: 1}, nil)
				s.deliver(ctx, out, StreamEvent{Err: &SafetyRejection{Verdict: verdict}})
				return
			case DecisionRedact:
				tail = Redact(tail, verdict)
			}

			if len(tail) > streamGuardTail {
				cut := len(tail) - streamGuardTail
				for cut < len(tail) && !utf8.RuneStart(tail[cut]) {
					cut++
				}
				if !emit(tail[:cut]) {
					return
				}
				tail = tail[cut:]
			}
		}
	}()
	return out, nil
}

func (s *Service) deliver(ctx context.Context, out chan<- StreamEvent, event StreamEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) record(ctx context.Context, requestID string, meta ClassMetadata, outcome string, verdict *SafetyVerdict, result GatewayCallResult, cause error) {
	entry := AuditRecord{
		ID:        requestID,
		ClassID:   meta.ClassID,
		Area:      string(meta.DeficientArea),
		Outcome:   outcome,
		Attempts:  result.Attempts,
		LatencyMS: result.Latency.Milliseconds(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if verdict != nil {
		entry.Decision = string(verdict.Decision)
		entry.Severity = verdict.Severity.String()
	}
	if cause != nil {
		entry.Detail = cause.Error()
	}
	s.audit.Record(ctx, entry)
}
