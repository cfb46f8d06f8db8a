package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err), or respondErrorStatus to force a status
//  3. Error is mapped via merge.MapError to get a user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered as an HTMX fragment, an HTML page or JSON

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/store"
	"github.com/JonMunkholm/csvmerge/internal/web/templates"
)

var (
	errNoFile          = errors.New("no file provided")
	errTooManyFiles    = errors.New("too many files in upload")
	errFileTooLarge    = errors.New("file too large")
	errStoreDisabled   = errors.New("storage is not configured")
	errInvalidMergeID  = errors.New("invalid merge id")
	errMalformedUpload = errors.New("malformed multipart upload")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch merge.KindOf(err) {
	case merge.KindInvalidOptions, merge.KindNoInputs:
		return http.StatusBadRequest
	case merge.KindHeaderConflict, merge.KindSourceUnreadable:
		return http.StatusUnprocessableEntity
	case merge.KindCancelled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusRequestTimeout
	case merge.KindOutputFailed:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, ErrTooManyMerges):
		return http.StatusServiceUnavailable
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errTooManyFiles),
		errors.Is(err, errInvalidMergeID), errors.Is(err, errMalformedUpload):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrRunNotFound), errors.Is(err, errStoreDisabled):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message with the status
// statusFor chooses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := merge.MapError(err)

	level := logging.FromContext(r.Context()).Warn
	if statusCode >= http.StatusInternalServerError {
		level = logging.FromContext(r.Context()).Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"source", merge.SourceOf(err),
		"request_id", middleware.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		renderError(w, r, templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code), statusCode)
	case wantsHTML(r):
		renderError(w, r, templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code), statusCode)
	default:
		respondErrorJSON(w, userMsg, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg merge.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderError writes an HTML error component.
func renderError(w http.ResponseWriter, r *http.Request, c templ.Component, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML reports whether the client is a browser expecting a page, such
// as a plain form submission.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/html")
}
