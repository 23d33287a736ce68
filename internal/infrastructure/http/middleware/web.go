package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/monitoring"
)

// Chi-compatible middleware for the web frontend.

// WebRequestID assigns a request ID, echoing an inbound X-Request-ID
// when present.
func WebRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(monitoring.WithRequestID(r.Context(), requestID))

		next.ServeHTTP(w, r)
	})
}

// WebLogger logs requests with zap.
func WebLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.WrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("request_id", monitoring.RequestIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("user_agent", r.UserAgent()),
			}

			switch {
			case ww.Status() >= 500:
				logger.Error("Web request failed", fields...)
			case ww.Status() >= 400:
				logger.Warn("Web request rejected", fields...)
			default:
				logger.Info("Web request completed", fields...)
			}
		})
	}
}

// WebSecurity adds security headers for the HTML frontend. Image
// sources stay open because meal photos load from external hosts.
func WebSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"script-src 'self' https://unpkg.com; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// WebRecoverer recovers panics in the page handlers.
func WebRecoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered in web handler",
						zap.String("request_id", monitoring.RequestIDFromContext(r.Context())),
						zap.String("path", r.URL.Path),
						zap.Any("error", err),
					)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
