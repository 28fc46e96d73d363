package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

type ctxKey struct{}

func NewRequestID() string { return "req_" + uuid.NewString() }

// RequestID assigns every request an id, echoes it in the response header
// and makes it available through RequestIDFrom.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestIDFrom returns the id set by RequestID, or a fresh one.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return NewRequestID()
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes the request body into dst. An empty body leaves dst at
// its zero value so field validation reports what is missing.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ErrorBody is the error part of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type ErrorEnvelope struct {
	RequestID string    `json:"request_id"`
	Error     ErrorBody `json:"error"`
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	writeError(w, status, NewRequestID(), code, message, details)
}

// WriteRequestError is WriteError carrying the request's own id.
func WriteRequestError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeError(w, status, RequestIDFrom(r.Context()), code, message, details)
}

func writeError(w http.ResponseWriter, status int, requestID, code, message string, details any) {
	WriteJSON(w, status, ErrorEnvelope{
		RequestID: requestID,
		Error:     ErrorBody{Code: code, Message: message, Details: details},
	})
}
