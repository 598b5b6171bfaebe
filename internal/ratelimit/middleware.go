package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"calculator-api/internal/observability"
)

// TooManyRequestsMessage is the error body of a throttled request.
const TooManyRequestsMessage = "Too many requests"

// Middleware rejects requests over the per-IP limit with 429 and a
// Retry-After header. A nil limiter passes everything through.
func Middleware(l *MapLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, wait := l.Allow(key, time.Now())
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			observability.LoggerWithTrace(r.Context()).Warn("rate limited",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
				zap.Duration("retry_after", wait),
				zap.String("request_id", observability.RequestIDFromContext(r.Context())),
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(observability.ErrorResponse{Error: TooManyRequestsMessage})
		})
	}
}

// clientIP keys on the connection address. RemoteAddr already reflects
// X-Forwarded-For when chi's RealIP middleware runs first.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
