package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"studyfocus/internal/auth"
	"studyfocus/internal/core"
	"studyfocus/internal/log"
)

// maxBodyBytes caps request bodies; records are small documents.
const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid JSON body")

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// decodeJSON reads one JSON value from the body into dst. Any failure is
// reported as errBadBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func queryEmail(r *http.Request) string {
	return core.TrimmedEmail(r.URL.Query().Get("email"))
}

// owner returns the email that scopes a request. By default the caller's
// email parameter is trusted as sent, even when it differs from the verified
// token. With owner enforcement a mismatch is rejected and an absent
// parameter falls back to the token's email.
func (s *Server) owner(r *http.Request, email string) (string, error) {
	email = core.TrimmedEmail(email)
	if !s.enforceOwner {
		return email, nil
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.Email == "" {
		return "", core.ErrOwnerMismatch
	}
	if email == "" {
		return claims.Email, nil
	}
	if !strings.EqualFold(email, claims.Email) {
		return "", core.ErrOwnerMismatch
	}
	return email, nil
}

// statusFor maps handler and store errors to response codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadBody),
		errors.Is(err, core.ErrEmailRequired),
		errors.Is(err, core.ErrStatusRequired),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrInvalidDays),
		errors.Is(err, core.ErrInvalidStart):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOwnerMismatch):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorType classifies err for the error_type log field.
func errorType(status int, err error) string {
	switch {
	case status == http.StatusForbidden:
		return log.ErrorTypeAuth
	case status == http.StatusNotFound:
		return log.ErrorTypeNotFound
	case status < http.StatusInternalServerError:
		return log.ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeDatabase
	}
}

// fail answers err with its mapped status. Server errors are logged with the
// operation and collection and answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, collection, op string, err error) {
	status := statusFor(err)
	kind := errorType(status, err)
	logger := log.FromContext(r.Context())
	if status < http.StatusInternalServerError {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorType, kind,
			log.FieldError, err.Error())
		writeError(w, status, err.Error())
		return
	}

	fields := log.NewFields().WithRecord(collection, "")
	fields[log.FieldPath] = r.URL.Path
	log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op, kind, fields)
	writeError(w, http.StatusInternalServerError, "Server error")
}
