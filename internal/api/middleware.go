package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorIDKey   contextKey = "actor_id"
)

// RequestID tags each request with a generated id for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs each request with method, path, status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			requestID, _ := r.Context().Value(requestIDKey).(string)
			logger.Info("request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration", time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Actor resolves the authenticated user id from the verified JWT and stores
// it on the request context. Tokens without a numeric user_id claim are
// rejected.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			respondError(w, r, simplepublish.NewError(simplepublish.CodeUnauthenticated, "invalid token"))
			return
		}
		raw, ok := claims["user_id"]
		if !ok {
			respondError(w, r, simplepublish.NewError(simplepublish.CodeUnauthenticated, "token missing user_id claim"))
			return
		}
		var actorID int64
		switch v := raw.(type) {
		case float64:
			actorID = int64(v)
		case int64:
			actorID = v
		default:
			respondError(w, r, simplepublish.NewError(simplepublish.CodeUnauthenticated, "invalid user_id claim"))
			return
		}
		if actorID <= 0 {
			respondError(w, r, simplepublish.NewError(simplepublish.CodeUnauthenticated, "invalid user_id claim"))
			return
		}
		ctx := context.WithValue(r.Context(), actorIDKey, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorID returns the authenticated user id stored by the Actor middleware.
func ActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorIDKey).(int64)
	return id
}
