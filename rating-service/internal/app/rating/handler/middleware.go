package handler

import (
	"net/http"
	"strings"

	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorContextKey = "actor"

// JWTClaims структура claims токена Core API
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	UserRole string `json:"user_role"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет JWT токен в запросах для Gin
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware создает новый middleware для аутентификации
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate проверяет JWT токен и кладет entity.Actor в контекст Gin.
// Исходный токен сохраняется, он пробрасывается в Core API
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		tokenString := parts[1]

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(m.jwtSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || claims.UserID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		// Роль может отсутствовать, тогда контекст оценки берется из запроса
		role := entity.UserRole(strings.ToLower(strings.TrimSpace(claims.UserRole)))
		if role != "" && !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user role"})
			return
		}

		c.Set(actorContextKey, entity.Actor{
			UserID: claims.UserID,
			Role:   role,
			Token:  tokenString,
		})
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

// actorFromContext достает пользователя, сохраненного Authenticate
func actorFromContext(c *gin.Context) (entity.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return entity.Actor{}, false
	}
	actor, ok := value.(entity.Actor)
	return actor, ok
}
