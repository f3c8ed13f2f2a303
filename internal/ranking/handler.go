package ranking

// HTTP routes:
//
//	POST /jobs/{id}/recompute   → recompute and return the new ranking
//	GET  /jobs/{id}/matches     → current ranking of the job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// statusClientClosedRequest is the non-standard status logged for requests
// the caller abandoned.
const statusClientClosedRequest = 499

// Handler exposes the Coordinator over HTTP.
type Handler struct {
	coord *Coordinator
	log   *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(coord *Coordinator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{coord: coord, log: log}
}

// RegisterRoutes mounts the matching routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/jobs/", h.handleJobAction)
}

// handleJobAction dispatches /jobs/{id}/{action}
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] == "" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	jobID, action := parts[1], parts[2]

	switch {
	case action == "recompute" && r.Method == http.MethodPost:
		h.recompute(w, r, jobID)
	case action == "matches" && r.Method == http.MethodGet:
		h.matches(w, r, jobID)
	case action == "recompute" || action == "matches":
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request, jobID string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if err := validateRecomputeBody(body); err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		CandidatePool []string `json:"candidatePool"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ranking, err := h.coord.Recompute(r.Context(), jobID, req.CandidatePool)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, ranking)
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request, jobID string) {
	ranking, err := h.coord.Ranking(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, ranking)
}

// writeError maps domain errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		ve *ValidationError
		ip *InProgressError
	)
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrNoRanking):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptyPool):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.As(err, &ip):
		secs := int(math.Ceil(ip.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		jsonError(w, ErrRecomputeInProgress.Error(), http.StatusConflict)
	case errors.Is(err, ErrAggregationUnavailable), errors.Is(err, ErrPersistenceUnavailable):
		h.log.Warn("recompute unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "5")
		jsonError(w, rootMessage(err), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		h.log.Debug("request cancelled by client", zap.Error(err))
		jsonError(w, err.Error(), statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("request deadline exceeded", zap.Error(err))
		jsonError(w, err.Error(), http.StatusGatewayTimeout)
	default:
		h.log.Error("matching request failed", zap.Error(err))
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// rootMessage hides infrastructure details behind the sentinel text.
func rootMessage(err error) string {
	if errors.Is(err, ErrAggregationUnavailable) {
		return ErrAggregationUnavailable.Error()
	}
	return ErrPersistenceUnavailable.Error()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
