package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/observe"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned to the request in ctx.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a well-formed inbound ID and otherwise assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(r.Context(), r.Header)
		if err != nil {
			s.logger.Warn(r.Context(), "authentication failed",
				observe.F("request_id", RequestIDFromContext(r.Context())),
				observe.F("path", r.URL.Path),
				observe.F("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "unauthorized", authMessage(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return "Credentials are required."
	case errors.Is(err, auth.ErrTokenExpired):
		return "The token has expired."
	case errors.Is(err, auth.ErrTokenMalformed):
		return "The token is malformed."
	default:
		return "The credentials were rejected."
	}
}
