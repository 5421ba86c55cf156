package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"soilsense/internal/services/prediction"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

const maxBodyBytes = 1 << 16

// Predictor is the part of prediction.Service the API serves
type Predictor interface {
	Predict(ctx context.Context, raw map[string]any) (*prediction.Result, error)
	Clusters() ([]prediction.ClusterView, error)
	Model() (*prediction.ModelView, error)
}

var _ Predictor = (*prediction.Service)(nil)

// Handlers serves the prediction API
type Handlers struct {
	service Predictor
	log     *logger.Logger
}

// NewHandlers creates the prediction API handlers
func NewHandlers(service Predictor, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With("component", "api"),
	}
}

// ErrorResponse is the body of every non-2xx API answer
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldIssue `json:"fields,omitempty"`
}

// FieldIssue is one rejected request field
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HandlePredict assigns one soil sample to a cluster
func (h *Handlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		h.writeError(w, errors.NewInputShapeError("body", "must be a JSON object", err.Error()))
		return
	}

	result, err := h.service.Predict(r.Context(), raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Response())
}

// HandleClusters lists every cluster profile of the live model
func (h *Handlers) HandleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.service.Clusters()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// HandleModel describes the live model and its selection report
func (h *Handlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.Model()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	body := ErrorResponse{Error: err.Error()}

	var shapeErr *errors.InputShapeError
	if errors.As(err, &shapeErr) {
		for _, p := range shapeErr.Problems {
			body.Fields = append(body.Fields, FieldIssue{Field: p.Field, Message: p.Message})
		}
	}

	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		h.log.Errorw("Request failed", "error", err)
		body.Error = "internal error"
	}

	writeJSON(w, code, body)
}

// StatusCode maps service errors onto HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrInputShape), errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNoModel), errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
