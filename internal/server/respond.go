package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/tablegate/internal/errs"
)

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail logs err and writes it as a JSON error. Only the message of an
// *errs.Error reaches the client; driver causes stay in the log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	code := statusFor(kind)

	detail := errorDetail{Kind: kind.String(), Message: "internal error"}
	var e *errs.Error
	if errors.As(err, &e) {
		detail.Message = e.Message
	}

	fields := map[string]any{"status": code, "kind": kind.String(), "path": r.URL.Path}
	if code >= http.StatusInternalServerError {
		s.requestLog(r).ErrorWith("request failed", err, fields)
	} else {
		fields["error"] = err.Error()
		s.requestLog(r).WarnWith("request rejected", fields)
	}

	writeJSON(w, code, errorBody{Error: detail})
}

func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidInput, errs.ErrKindInvalidIdentifier:
		return http.StatusBadRequest
	case errs.ErrKindForbiddenIdentifier, errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindConflict, errs.ErrKindAmbiguousRelationship:
		return http.StatusConflict
	case errs.ErrKindNoPrimaryKey, errs.ErrKindNoValidColumns, errs.ErrKindUnsafeDelete, errs.ErrKindNoRelationship:
		return http.StatusUnprocessableEntity
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
