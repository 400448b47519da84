// Package frontdoor contains the gateway's HTTP handlers: one analysis
// endpoint per input modality, the generation endpoint and the history
// snapshot.
package frontdoor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/prabujayant/LLM-safety-gateway/internal/detect"
	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
	"github.com/prabujayant/LLM-safety-gateway/internal/generate"
	"github.com/prabujayant/LLM-safety-gateway/internal/history"
	"github.com/prabujayant/LLM-safety-gateway/internal/metrics"
	"github.com/prabujayant/LLM-safety-gateway/internal/normalize"
	"github.com/prabujayant/LLM-safety-gateway/internal/route"
	"github.com/prabujayant/LLM-safety-gateway/internal/server"
)

// maxUploadBytes caps multipart uploads before any file is read.
const maxUploadBytes = 25 << 20

// Detector executes a routed request against the detection backend.
type Detector interface {
	Do(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error)
}

var _ Detector = (*detect.Client)(nil)

// SnapshotSource exposes the aggregator's published history view.
type SnapshotSource interface {
	Snapshot() history.Snapshot
}

type Handler struct {
	detector   Detector
	normalizer *normalize.Normalizer
	invoker    *generate.Invoker
	aggregator SnapshotSource
	logger     *slog.Logger
}

func NewHandler(detector Detector, normalizer *normalize.Normalizer, invoker *generate.Invoker, aggregator SnapshotSource, logger *slog.Logger) *Handler {
	return &Handler{
		detector:   detector,
		normalizer: normalizer,
		invoker:    invoker,
		aggregator: aggregator,
		logger:     logger,
	}
}

type analyzeTextRequest struct {
	Prompt string `json:"prompt"`
}

// HandleAnalyzeText accepts a JSON prompt and returns its canonical
// detection record.
func (h *Handler) HandleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("request body is not valid JSON").WithDetails(err.Error()))
		return
	}

	h.process(w, r, route.Submission{Source: domain.InputText, Prompt: req.Prompt}, normalize.Meta{Prompt: req.Prompt})
}

// HandleAnalyzeImage accepts a multipart upload under the "image" field.
func (h *Handler) HandleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, domain.InputImage, "image")
}

// HandleAnalyzeDocument accepts a multipart upload under the "file" field.
func (h *Handler) HandleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, domain.InputDocument, "file")
}

// HandleAnalyzeVoice accepts a multipart upload under the "audio" field.
func (h *Handler) HandleAnalyzeVoice(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, domain.InputVoice, "audio")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, source domain.InputSource, field string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile(field)
	if err != nil {
		h.writeError(w, r, domain.ErrMissingInput(field+" file is required").WithDetails(err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, domain.ErrValidation("failed to read uploaded file").WithDetails(err.Error()))
		return
	}

	sub := route.Submission{
		Source: source,
		File: &route.File{
			Name:        header.Filename,
			ContentType: partContentType(header),
			Data:        data,
		},
	}
	h.process(w, r, sub, normalize.Meta{Filename: header.Filename})
}

// process runs one submission through routing, detection and
// normalization, measuring the round trip to the detection backend.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, sub route.Submission, meta normalize.Meta) {
	ctx := r.Context()
	modality := string(sub.Source)
	server.AddLogField(ctx, "modality", modality)

	req, err := route.Route(sub)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(modality, "rejected").Inc()
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	body, err := h.detector.Do(ctx, req.Endpoint, req.ContentType, bytes.NewReader(req.Body))
	elapsed := time.Since(start)
	metrics.DetectionDuration.WithLabelValues(modality).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(modality, "error").Inc()
		h.writeError(w, r, err)
		return
	}

	meta.ClientMs = elapsed.Milliseconds()
	rec, err := h.normalizer.Normalize(sub.Source, body, meta)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(modality, "error").Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.SubmissionsTotal.WithLabelValues(modality, "ok").Inc()
	metrics.ActionsTotal.WithLabelValues(modality, string(rec.Scores.Action)).Inc()
	server.AddLogField(ctx, "action", string(rec.Scores.Action))
	server.AddLogField(ctx, "record_id", rec.ID)

	h.writeJSON(w, http.StatusOK, rec)
}

type generateRequest struct {
	Prompt          string `json:"prompt"`
	SanitizedPrompt string `json:"sanitized_prompt"`
	Action          string `json:"action"`
}

// HandleGenerate forwards an already-screened prompt to the generation
// backend, honoring the record's action.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("request body is not valid JSON").WithDetails(err.Error()))
		return
	}
	if req.Prompt == "" && req.SanitizedPrompt == "" {
		h.writeError(w, r, domain.ErrMissingInput("prompt is required"))
		return
	}

	rec := &domain.CanonicalRecord{
		RawContent:       req.Prompt,
		SanitizedContent: req.SanitizedPrompt,
		Scores:           domain.Scores{Action: domain.ParseAction(req.Action)},
	}

	server.AddLogField(r.Context(), "action", string(rec.Scores.Action))

	result, err := h.invoker.Invoke(r.Context(), rec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleHistory serves the aggregator's latest snapshot. A degraded
// snapshot still returns 200 with its last known records.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Snapshot())
}

// HandleHealthz reports liveness.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		gwErr = domain.NewGatewayError(domain.ErrorKindUnknownInvocation, "internal server error")
	}

	h.writeJSON(w, gwErr.HTTPStatusCode(), errorResponse{
		Error:   gwErr.Message,
		Kind:    string(gwErr.Kind),
		Details: gwErr.Details,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// partContentType reads the declared Content-Type off a multipart file
// header, leaving the fallback decision to the router.
func partContentType(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}
