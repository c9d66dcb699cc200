package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/requestcontext"
)

// ActorClaims is the token shape minted by the identity collaborator.
// Authentication itself is external; this middleware only verifies the
// signature and extracts the actor.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor verifies the Bearer token and stores (role, actorID) in context.
// Requests without a token pass through unauthenticated; handlers that need
// an actor reject them with 401. A present-but-invalid token is rejected
// here so a stale dashboard session fails loudly instead of acting as
// nobody.
func Actor(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed authorization header"))
				return
			}

			claims := &ActorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "rejected actor token",
					"request_id", requestcontext.RequestID(r.Context()), "error", err)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid actor token"))
				return
			}

			role := id.Role(claims.Role)
			if !role.IsValid() || claims.Subject == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries no usable actor"))
				return
			}
			ctx := requestcontext.WithActor(r.Context(), role, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
