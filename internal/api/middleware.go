package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
	"stealthcompany.com/clinicportal/internal/identity"
)

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg(LogRequestHandled)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(AuthorizationHeader)
	if header == "" {
		return "", apperr.Unauthorized(ErrAuthHeaderRequired)
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", apperr.Unauthorized(ErrInvalidAuthHeader)
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", apperr.Unauthorized(ErrInvalidAuthHeader)
	}
	return token, nil
}

// RequireUser verifies the bearer token and stores the caller in the
// request context.
func (s *Server) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, r, err, identity.ErrInvalidToken)
			return
		}

		claims, err := s.auth.Verify(token)
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg(LogTokenValidationFailed)
			writeError(w, r, err, identity.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAnon admits callers presenting the anon key or any valid user
// token. Open when no anon key is configured.
func (s *Server) RequireAnon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.anonKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get(APIKeyHeader); key != "" && s.isAnonKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			writeError(w, r, err, ErrInvalidAPIKey)
			return
		}
		if s.isAnonKey(token) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.auth.Verify(token); err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindUnauthorized, err, ErrInvalidAPIKey), ErrInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAnonKey(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.anonKey)) == 1
}

// GetUserID returns the authenticated user id from the request context.
func GetUserID(r *http.Request) (string, error) {
	id, ok := r.Context().Value(UserIDKey).(string)
	if !ok || id == "" {
		return "", errors.New(ErrUserIDNotFound)
	}
	return id, nil
}
