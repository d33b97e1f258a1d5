package middlewares

import (
	"context"
	"net/http"
	"strings"

	"kpiengine/utils"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the already-authenticated actor identity. The engine only
// consumes it for attribution; authentication itself is an external
// collaborator.
type Claims struct {
	ActorID string `json:"actor_id"`
	jwt.RegisteredClaims
}

type contextKey string

const ActorContextKey contextKey = "actor"

func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.HandleMessageResponse(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.HandleMessageResponse(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			})
			if err != nil {
				utils.HandleMessageResponse(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				utils.HandleMessageResponse(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			actor := claims.ActorID
			if actor == "" {
				actor = claims.Subject
			}
			if actor == "" {
				utils.HandleMessageResponse(w, "Token carries no actor identity", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ActorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorFromContext returns the authenticated actor id, or "" outside a
// request that passed the middleware.
func GetActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorContextKey).(string); ok {
		return actor
	}
	return ""
}
