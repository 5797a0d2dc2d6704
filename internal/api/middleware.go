package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// withAuth rejects requests that lack the configured bearer token. With no
// token configured every request passes.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthDisabled() {
			next(w, r)
			return
		}
		if problem := s.checkBearer(r.Header.Get("Authorization")); problem != "" {
			s.logger.Warn("unauthorized request", "problem", problem, "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, problem)
			return
		}
		next(w, r)
	}
}

// checkBearer returns what is wrong with an Authorization header, or "".
func (s *Server) checkBearer(header string) string {
	if header == "" {
		return "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "invalid authorization format"
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) != 1 {
		return "invalid token"
	}
	return ""
}
