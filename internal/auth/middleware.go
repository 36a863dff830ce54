package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const subjectIDKey contextKey = "auth.subject_id"

// SessionMiddleware guards a route with a bearer session token. Tokens
// issued for password reset are rejected here regardless of validity.
func SessionMiddleware(tokens *TokenService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing_authorization")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid_authorization_format")
			return
		}

		subjectID, err := tokens.Verify(strings.TrimSpace(parts[1]), PurposeSession)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_or_expired_token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectIDKey, subjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectID returns the authenticated account id set by SessionMiddleware,
// or an empty string outside a guarded route.
func SubjectID(ctx context.Context) string {
	subjectID, _ := ctx.Value(subjectIDKey).(string)
	return subjectID
}
