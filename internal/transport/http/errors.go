// Package http is the thin net/http + encoding/json REST transport for the
// analysis pipeline: one handler file per resource group, plain JSON
// request/response bodies with no protobuf or RPC code generation.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"slograph/pkg/apperror"
	"slograph/pkg/logger"
)

// errorKind is one of the six error kinds the external interface promises:
// every failure surfaced to a caller maps onto exactly one of these.
type errorKind string

const (
	kindNotFound    errorKind = "not_found"
	kindInvalid     errorKind = "invalid"
	kindConflict    errorKind = "conflict"
	kindRateLimited errorKind = "rate_limited"
	kindUnavailable errorKind = "unavailable"
	kindInternal    errorKind = "internal"
)

func kindOf(code apperror.ErrorCode) errorKind {
	switch code {
	case apperror.CodeNotFound, apperror.CodeServiceNotFound, apperror.CodeSLONotFound:
		return kindNotFound
	case apperror.CodeInvalidArgument, apperror.CodeInvalidGraph, apperror.CodeDanglingEdge,
		apperror.CodeSelfLoop, apperror.CodeInvalidPagination, apperror.CodeInvalidThreshold,
		apperror.CodeNilInput, apperror.CodeUnachievableTarget, apperror.CodeInfeasible:
		return kindInvalid
	case apperror.CodeConflict, apperror.CodeDuplicateEdge, apperror.CodeAlreadyAccepted, apperror.CodeCycleDetected:
		return kindConflict
	case apperror.CodeRateLimited:
		return kindRateLimited
	case apperror.CodeUnavailable, apperror.CodeTelemetryPort, apperror.CodeTimeout:
		return kindUnavailable
	default:
		return kindInternal
	}
}

// problemResponse is the JSON body written for every failed request: a
// stable type URI, a short human title, the offending field/details, and a
// correlation ID the caller can hand back for support.
type problemResponse struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Detail        string         `json:"detail,omitempty"`
	Field         string         `json:"field,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

const problemTypeBase = "https://slograph.dev/errors/"

// writeError maps any error onto its HTTP status and problem body. Errors
// that are not *apperror.Error are treated as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := correlationIDFor(r)

	status := apperror.HTTPStatus(err)
	code := apperror.Code(err)
	kind := kindOf(code)

	body := problemResponse{
		Type:          problemTypeBase + string(kind),
		Title:         err.Error(),
		CorrelationID: correlationID,
	}

	var appErr *apperror.Error
	if e, ok := err.(*apperror.Error); ok {
		appErr = e
		body.Title = appErr.Message
		body.Field = appErr.Field
		body.Details = appErr.Details
	}

	if status >= 500 {
		logger.Log.Error("request failed", "correlation_id", correlationID, "error", err, "path", r.URL.Path)
	} else {
		logger.Log.Warn("request rejected", "correlation_id", correlationID, "code", code, "path", r.URL.Path)
	}

	writeJSON(w, status, body)
}

// correlationIDFor returns the caller-supplied X-Request-ID, or mints a
// fresh one when absent.
func correlationIDFor(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warn("failed to encode response body", "error", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidArgument, "malformed request body")
	}
	return nil
}
