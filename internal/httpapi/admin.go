package httpapi

import (
	"crypto/subtle"
	"net/http"

	"novarelay.dev/internal/log"
	"novarelay.dev/internal/relayerr"
)

// requireToken wraps next so it only runs if the request carries a
// matching X-Settlement-Token header. When no token is configured the
// check is skipped entirely (already warned about at Server
// construction).
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if s.deps.SettlementToken == "" {
		return next
	}
	want := []byte(s.deps.SettlementToken)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-Settlement-Token"))
		if len(got) != len(want) || subtle.ConstantTimeCompare(got, want) != 1 {
			log.W.F("%s %s: %v", r.Method, r.URL.Path, relayerr.AuthRequired)
			http.Error(w, "missing or invalid X-Settlement-Token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
