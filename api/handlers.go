package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/metrics"
	"github.com/warp/homecare-engine/pipeline"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pipeline  *pipeline.Pipeline
	Templates bundle.TemplateStore
	Rates     billing.Rates
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	// DefaultOrganization applies when a request names no organization.
	DefaultOrganization string

	// Ping reports storage health for /healthz. Nil means always healthy.
	Ping func(context.Context) error
}

// NewHandler creates a handler over a wired pipeline.
func NewHandler(p *pipeline.Pipeline, templates bundle.TemplateStore, rates billing.Rates, log zerolog.Logger) *Handler {
	return &Handler{
		Pipeline:  p,
		Templates: templates,
		Rates:     rates,
		Metrics:   p.Metrics,
		Log:       log,
	}
}

func (h *Handler) organization(orgID *string) *string {
	if orgID != nil && *orgID != "" {
		return orgID
	}
	if h.DefaultOrganization != "" {
		org := h.DefaultOrganization
		return &org
	}
	return nil
}

// =============================================================================
// ASSESSMENT HANDLERS
// =============================================================================

// ScoreAssessment returns the clinical scales, triggered CAPs and
// recommended PSW hours for raw items.
func (h *Handler) ScoreAssessment(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no assessment items", generic.ErrNoAssessment)
		return
	}
	writeJSON(w, http.StatusOK, assessment.Summarize(req.Items))
}

// =============================================================================
// CLASSIFICATION HANDLERS
// =============================================================================

// Classify classifies an assessment for the patient in the path and
// supersedes the previous classification.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var a rug.Assessment
	if !decode(w, r, &a) {
		return
	}
	a.PatientID = chi.URLParam(r, "id")

	c, err := h.Pipeline.Classifications.Classify(r.Context(), &a)
	if err != nil {
		h.writeDomainError(w, "classification failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) CurrentClassification(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	c, ok, err := h.Pipeline.Classifications.Current(r.Context(), patientID)
	if err != nil {
		h.writeDomainError(w, "failed to load classification", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no current classification", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClassificationHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	history, err := h.Pipeline.Classifications.History(r.Context(), patientID)
	if err != nil {
		h.writeDomainError(w, "failed to load classifications", err)
		return
	}
	if history == nil {
		history = []rug.Classification{}
	}
	writeJSON(w, http.StatusOK, ClassificationsResponse{PatientID: patientID, Classifications: history})
}

// EvaluateCurrent runs matching, planning and costing for the patient's
// current classification.
func (h *Handler) EvaluateCurrent(w http.ResponseWriter, r *http.Request) {
	var req EvaluateClassificationRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	patientID := chi.URLParam(r, "id")

	c, ok, err := h.Pipeline.Classifications.Current(r.Context(), patientID)
	if err != nil {
		h.writeDomainError(w, "failed to load classification", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no current classification", nil)
		return
	}

	result, err := h.Pipeline.EvaluateClassification(r.Context(), c, h.organization(req.OrganizationID), req.AsOf)
	if err != nil {
		h.writeDomainError(w, "evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Templates.Templates(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to list templates", err)
		return
	}
	if templates == nil {
		templates = []bundle.Template{}
	}
	writeJSON(w, http.StatusOK, TemplatesResponse{Templates: templates})
}

// MatchTemplates scores every template against a classification.
func (h *Handler) MatchTemplates(w http.ResponseWriter, r *http.Request) {
	var c rug.Classification
	if !decode(w, r, &c) {
		return
	}
	if c.Flags == nil {
		c.Flags = generic.NewFlags()
	}
	if c.RUGCategory == "" {
		c.RUGCategory, _ = rug.CategoryOf(c.RUGGroup)
	}

	matches, err := h.Pipeline.Matcher.FindAllMatchingTemplates(r.Context(), &c)
	if err != nil {
		h.writeDomainError(w, "matching failed", err)
		return
	}
	if matches == nil {
		matches = []bundle.Match{}
	}
	writeJSON(w, http.StatusOK, MatchesResponse{Matches: matches})
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// Evaluate runs the full pipeline for one assessment.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if !decode(w, r, &req) {
		return
	}
	req.OrganizationID = h.organization(req.OrganizationID)

	result, err := h.Pipeline.Run(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "evaluation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Preview reprices a care plan snapshot with the rates valid today or on
// as_of.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decode(w, r, &req) {
		return
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = generic.Today()
	}
	preview := h.Pipeline.Engine.PreviewCarePlanWithCurrentRates(r.Context(), req.Snapshot, h.organization(req.OrganizationID), asOf)
	writeJSON(w, http.StatusOK, preview)
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ServiceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required", nil)
		return
	}
	if !req.UnitType.IsKnown() {
		writeError(w, http.StatusBadRequest, "unknown unit_type", nil)
		return
	}

	created, err := h.Rates.CreateRate(r.Context(), req.record())
	if err != nil {
		h.writeDomainError(w, "failed to create rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// EffectiveRate returns the record valid on as_of for exactly the given
// service type and organization.
func (h *Handler) EffectiveRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serviceType := q.Get("service_type")
	if serviceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required", nil)
		return
	}

	asOf := generic.Today()
	if s := q.Get("as_of"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of", err)
			return
		}
		asOf = d
	}

	var orgID *string
	if org := q.Get("organization_id"); org != "" {
		orgID = &org
	}

	rate, err := h.Rates.EffectiveRate(r.Context(), serviceType, orgID, asOf)
	if err != nil {
		h.writeDomainError(w, "rate lookup failed", err)
		return
	}
	if rate == nil {
		writeError(w, http.StatusNotFound, "no rate effective on "+asOf.String(), nil)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrNoAssessment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generic.ErrOverlappingRate), generic.IsRetryable(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg(message)
	}
	writeError(w, status, message, err)
}
