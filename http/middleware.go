package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sagarc03/stashbox"
)

// Authorizer resolves a raw token value to an AccessToken.
type Authorizer interface {
	Authorize(ctx context.Context, value string) (stashbox.AccessToken, error)
}

type tokenKey struct{}

// TokenFromContext returns the token TokenAuth stored in ctx.
func TokenFromContext(ctx context.Context) (stashbox.AccessToken, bool) {
	tok, ok := ctx.Value(tokenKey{}).(stashbox.AccessToken)
	return tok, ok
}

// tokenFromHeader extracts the token from an Authorization header. Both a
// bare value and a Bearer value are accepted.
func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}

// TokenAuth rejects requests without a usable access token. Missing
// tokens get 401 "token required"; malformed, unknown and revoked tokens
// get 401 "invalid token".
func TokenAuth(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := tokenFromHeader(r.Header.Get("Authorization"))
			if value == "" {
				WriteError(w, http.StatusUnauthorized, "token required")
				return
			}

			tok, err := auth.Authorize(r.Context(), value)
			if err != nil {
				HandleError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, tok)))
		})
	}
}

// RequestLogger logs one line per request at debug level, or warn for 5xx.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
