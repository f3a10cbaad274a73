package middleware

import (
	"movez/pkg/auth"
	apperrors "movez/pkg/errors"
	"movez/pkg/logger"
	"net/http"
	"strings"
)

type TokenVerifier interface {
	Verify(token string) (auth.Caller, error)
}

// Identity resolves the bearer token into an auth.Caller on the request context.
// Paths listed in public pass through without a token.
func Identity(verifier TokenVerifier, log *logger.Logger, public ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(public))
	for _, p := range public {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				logAndReject(w, log, r, "missing bearer token")
				return
			}

			caller, err := verifier.Verify(token)
			if err != nil {
				logAndReject(w, log, r, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Authentication failed",
		"request_id", RequestID(r),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	reject(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Authentication required")
}
