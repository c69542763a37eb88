package auth

import (
	"encoding/json"
	"net/http"

	"studyfocus/internal/log"
)

// Gate rejects requests without a verifiable bearer token. It keeps no state
// besides its verifier.
type Gate struct {
	verifier Verifier
	logger   *log.Logger
}

func NewGate(verifier Verifier, logger *log.Logger) *Gate {
	return &Gate{verifier: verifier, logger: logger.WithComponent(log.ComponentAuth)}
}

// Middleware answers 401 when the header is missing or malformed and 403 when
// the verifier refuses the token. Verified claims go into the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			g.logger.DebugContext(r.Context(), "Rejected request without bearer token",
				log.FieldPath, r.URL.Path, log.FieldError, err.Error())
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			g.logger.WarnContext(r.Context(), "Token verification failed",
				log.FieldPath, r.URL.Path, log.FieldError, err.Error())
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
