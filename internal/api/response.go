package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/roach88/appframe/internal/apiparam"
	"github.com/roach88/appframe/internal/dbhelper"
	"github.com/roach88/appframe/internal/revisionable"
)

// Response states.
const (
	StateSuccess = "success"
	StateError   = "error"
)

// Error codes of the envelope.
const (
	CodeValidationFailed = "validation_failed"
	CodeMalformedInput   = "malformed_input"
	CodeUnknownMethod    = "unknown_method"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeUnauthorized     = "unauthorized"
	CodeInternal         = "internal_error"
)

// Response is the JSON envelope of every API response.
type Response struct {
	State   string `json:"state"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(data any) Response {
	return Response{State: StateSuccess, Data: data}
}

func failure(code, message string, data any) Response {
	return Response{State: StateError, Code: code, Message: message, Data: data}
}

// Classify maps a Process error to an HTTP status and envelope.
// Unexpected errors are reported without their message.
func Classify(err error) (int, Response) {
	if errs, ok := apiparam.AsValidationErrors(err); ok {
		return http.StatusBadRequest, failure(CodeValidationFailed, errs.Error(), errs)
	}
	if errors.Is(err, ErrUnknownMethod) {
		return http.StatusNotFound, failure(CodeUnknownMethod, err.Error(), nil)
	}
	if errors.Is(err, dbhelper.ErrRecordNotFound) || revisionable.IsNotFound(err) {
		return http.StatusNotFound, failure(CodeNotFound, err.Error(), nil)
	}
	if revisionable.IsConflict(err) {
		return http.StatusConflict, failure(CodeConflict, err.Error(), nil)
	}
	switch code := revisionable.CodeOf(err); code {
	case revisionable.ErrCodeNoCurrentUser:
		return http.StatusUnauthorized, failure(CodeUnauthorized, "the "+UserHeader+" header is required", nil)
	case revisionable.ErrCodeUnknownType,
		revisionable.ErrCodeUnknownDataKey,
		revisionable.ErrCodeUnknownPart,
		revisionable.ErrCodeInvalidState,
		revisionable.ErrCodeInvalidValue,
		revisionable.ErrCodeTypeMismatch,
		revisionable.ErrCodeMissingPartCopier,
		revisionable.ErrCodeSaveVetoed:
		return http.StatusBadRequest, failure(strings.ToLower(string(code)), err.Error(), nil)
	}
	return http.StatusInternalServerError, failure(CodeInternal, "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
