package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/utils"
)

// Claims are the JWT claims the gateway consumes. Authentication itself
// happens upstream; the gateway only trusts and unpacks the signed identity.
type Claims struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and stashes the caller identity in
// the request context
type AuthMiddleware struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

// RequireIdentity rejects requests without a valid bearer token carrying
// team and user ids
func (m *AuthMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.identityFromRequest(r)
		if err != nil {
			m.logger.Warn("rejected unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (m *AuthMiddleware) identityFromRequest(r *http.Request) (models.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return models.Identity{}, fmt.Errorf("missing authorization header")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return models.Identity{}, fmt.Errorf("authorization header is not a bearer token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	teamID, err := uuid.Parse(claims.TeamID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("token carries no valid team_id")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("token carries no valid user_id")
	}

	return models.Identity{TeamID: teamID, UserID: userID}, nil
}
