package webserver

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/cache"
)

type contextKey string

const sessionContextKey contextKey = "plan-session"

// withSession resolves the session cookie into a PlanSession and
// attaches it to the request context. Requests without a valid
// cookie pass through untouched; a cookie pointing at an expired
// session is cleared so the browser stops sending it.
func (s *WebServer) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.config.Session.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.sessions.Get(r.Context(), cookie.Value)
		switch {
		case err == nil:
			s.recordSessionOp("get", "hit")
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		case errors.Is(err, cache.ErrSessionNotFound):
			s.recordSessionOp("get", "miss")
			s.clearSessionCookie(w)
		default:
			s.recordSessionOp("get", "error")
			s.logger.Warn("Failed to load session",
				zap.String("session_id", cookie.Value),
				zap.Error(err))
		}

		next.ServeHTTP(w, r)
	})
}

// sessionFrom returns the session attached by withSession, if any.
func sessionFrom(ctx context.Context) *cache.PlanSession {
	session, _ := ctx.Value(sessionContextKey).(*cache.PlanSession)
	return session
}

// ensureSession returns the request's session, creating one and
// setting the cookie when the visitor does not have one yet.
func (s *WebServer) ensureSession(w http.ResponseWriter, r *http.Request) (*cache.PlanSession, error) {
	if session := sessionFrom(r.Context()); session != nil {
		return session, nil
	}

	session, err := s.sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionStarted()
	}
	s.setSessionCookie(w, session.ID)

	return session, nil
}

// endSession deletes the stored session along with its cached images
// and expires the cookie.
func (s *WebServer) endSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		s.logger.Warn("Failed to delete session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.SessionEnded()
	}
	s.clearSessionCookie(w)
}

func (s *WebServer) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.config.Session.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *WebServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *WebServer) recordSessionOp(operation, status string) {
	if s.metrics != nil {
		s.metrics.CacheOperation(operation, "session", status)
	}
}
