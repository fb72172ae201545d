package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"seal-gateway/internal/curriculum"
	"seal-gateway/internal/intervention"
)

const version = "1.0.0"

type API struct {
	intervention *intervention.Service
	curriculum   *curriculum.Service
	health       *intervention.HealthMonitor
	store        Store
	auth         *Auth
	obs          *Observability
	provider     string
}

func NewAPI(interventionSvc *intervention.Service, curriculumSvc *curriculum.Service, health *intervention.HealthMonitor, store Store, auth *Auth, obs *Observability, provider string) *API {
	return &API{
		intervention: interventionSvc,
		curriculum:   curriculumSvc,
		health:       health,
		store:        store,
		auth:         auth,
		obs:          obs,
		provider:     provider,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /score", a.handleScore)
	mux.HandleFunc("POST /score/stream", a.handleScoreStream)
	mux.HandleFunc("POST /curriculum", a.handleCurriculum)
	mux.Handle("GET /api/v1/admin/audit", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminAudit)))

	wrapped := otelhttp.NewHandler(mux, "seal-api-http")
	return withCORS(wrapped)
}

func (a *API) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("seal-api").Start(r.Context(), "api.score")
	defer span.End()

	var req ScoreRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	span.SetAttributes(
		attribute.String("class.id", req.Metadata.ClassID),
		attribute.String("deficient.area", req.Metadata.DeficientArea),
	)

	plan, err := a.intervention.GeneratePlan(ctx, req.ToCore())
	if err != nil {
		span.RecordError(err)
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handleScoreStream(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	events, err := a.intervention.StreamPlan(r.Context(), req.ToCore())
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range events {
		switch {
		case event.Err != nil:
			payload, _ := json.Marshal(map[string]string{"status": "error", "error": event.Err.Error()})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			return
		case event.Done:
			payload, _ := json.Marshal(map[string]string{"status": "complete"})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			return
		default:
			payload, _ := json.Marshal(map[string]string{"token": event.Token})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (a *API) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("seal-api").Start(r.Context(), "api.curriculum")
	defer span.End()

	var req curriculum.Request
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	plan, err := a.curriculum.GeneratePlan(ctx, req)
	if err != nil {
		span.RecordError(err)
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := a.health.Snapshot()
	response := HealthResponse{
		Status:     string(snapshot.Status),
		Version:    version,
		Provider:   a.provider,
		Subsystems: snapshot.Subsystems,
	}
	status := http.StatusOK
	if snapshot.Status != intervention.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := a.store.ListAudit(r.Context(), parseLimit(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"audit": entries,
	})
}

// mapError translates the core's typed outcomes onto HTTP statuses. Every
// distinct error kind gets a distinct response; nothing is downgraded to a
// best-effort success.
func mapError(err error) (int, string) {
	var validation *intervention.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, validation.Error()
	}
	var backpressure *intervention.BackpressureError
	if errors.As(err, &backpressure) {
		return http.StatusTooManyRequests, backpressure.Error()
	}
	var notFound *intervention.TemplateNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusInternalServerError, notFound.Error()
	}
	var rejection *intervention.SafetyRejection
	if errors.As(err, &rejection) {
		return http.StatusUnprocessableEntity, rejection.Error()
	}
	var mismatch *intervention.SchemaMismatchError
	if errors.As(err, &mismatch) {
		return http.StatusBadGateway, mismatch.Error()
	}
	var unavailable *intervention.GatewayUnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable, unavailable.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
