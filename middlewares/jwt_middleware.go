package middlewares

import (
	"context"
	"net/http"
	"strings"

	"kpitracker/models"
	"kpitracker/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Claims identify the caller. UserID is the hex ObjectID of the user.
type Claims struct {
	UserID       string      `json:"user_id"`
	Role         models.Role `json:"role"`
	Organization string      `json:"organization"`
	Active       bool        `json:"active"`
	jwt.RegisteredClaims
}

type contextKey string

const PrincipalContextKey contextKey = "principal"

func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.HandleMessageResponse(w, r, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.HandleMessageResponse(w, r, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				utils.HandleMessageResponse(w, r, "Invalid token", http.StatusUnauthorized)
				return
			}

			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil || claims.Organization == "" {
				utils.HandleMessageResponse(w, r, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			if !claims.Active {
				utils.HandleMessageResponse(w, r, "Account is deactivated", http.StatusUnauthorized)
				return
			}

			principal := models.Principal{
				ID:           userID,
				Role:         claims.Role,
				Organization: claims.Organization,
				Active:       claims.Active,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

func GetPrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(models.Principal)
	return p, ok
}
