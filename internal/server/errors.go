package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/goccy/go-json"
)

// statusClientClosedRequest is the de-facto status for requests abandoned by the client.
const statusClientClosedRequest = 499

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status. Upstream-derived kinds reuse the upstream status when it is an
// error status, otherwise 502.
func statusFor(err error) int {
	switch shared.Kind(err) {
	case shared.KindCancelled:
		return statusClientClosedRequest
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindUpstream, shared.KindCandidateFetchFailed, shared.KindRecommendationFailed:
		if upErr, ok := shared.Upstream(err); ok && upErr.Status >= 400 {
			return upErr.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as the JSON error envelope. Internal errors are logged and their message hidden.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	kind := shared.Kind(err)
	status := statusFor(err)

	resp := errorResponse{Error: err.Error(), Kind: string(kind)}
	if upErr, ok := shared.Upstream(err); ok {
		resp.Status = upErr.Status
		resp.Details = upErr.Body
	}

	switch {
	case kind == shared.KindInternal:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		resp.Error = "Internal server error"
	case status >= 500:
		logger.Warn("request failed", "path", r.URL.Path, "kind", kind, "error", err)
	default:
		logger.Debug("request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}

	writeJSON(w, status, resp)
}
