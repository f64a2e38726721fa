package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coregx/submanager"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch submanager.ErrorCode(err) {
	case submanager.ErrCodeValidation:
		return http.StatusBadRequest
	case submanager.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case submanager.ErrCodeAccessDenied:
		return http.StatusForbidden
	case submanager.ErrCodeNotFound:
		return http.StatusNotFound
	case submanager.ErrCodeDuplicate:
		return http.StatusConflict
	case submanager.ErrCodeBroker:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError sends an error response. Internal errors are logged and their
// detail is not exposed. Broker failures carry their cause.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	var categorized *submanager.Error
	if errors.As(err, &categorized) {
		detail = categorized.Message
	}
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		detail = "The server has encountered an error during the request"
	} else if status == http.StatusBadGateway {
		h.logger.Warnf("%s %s broker failure: %v", r.Method, r.URL.Path, err)
		if categorized != nil && categorized.Err != nil {
			detail = categorized.Message + ": " + categorized.Err.Error()
		}
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="submanager"`)
	}
	h.respondStatus(w, status, detail)
}

// respondStatus sends an error body for a status decided by the handler.
func (h *Handler) respondStatus(w http.ResponseWriter, status int, detail string) {
	h.respondJSON(w, status, ErrorResponse{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
	})
}

// respondJSON sends data as JSON with the given status.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
