package kit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"DecorStore/internal/apperr"
)

const retryAfterSeconds = "1"

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string, details any) {
	reqID := chimw.GetReqID(r.Context())
	WriteJSON(w, status, ErrorResponse{
		Error:     msg,
		Details:   details,
		RequestID: reqID,
	})
}

// WriteAppError maps err through apperr.Status. Client errors carry the
// error text; server errors are logged and answered with a generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperr.Status(err)

	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		msg := "server error"
		switch {
		case errors.Is(err, apperr.ErrBusy):
			msg = "store busy, retry later"
		case status == http.StatusGatewayTimeout:
			msg = "timeout"
		}
		WriteError(w, r, status, msg, nil)
		return
	}

	WriteError(w, r, status, publicMessage(err), nil)
}

// publicMessage drops the internal "filedb: " prefix from wrapped errors.
func publicMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "filedb: ")
}

// DecodeJSON reads one JSON object from the body into dst, rejecting
// unknown fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("extra data after json object")
	}
	return nil
}
