package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	bearerPrefix = "Bearer "
	sessionKey   = "session"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoTenant          = errors.New("no tenant selected")
)

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID   int64
	TenantID int64 // 0 when the credential is not tenant scoped
}

func setSession(c *gin.Context, sessionData *SessionData) {
	c.Set(sessionKey, sessionData)
}

// GetSessionData returns the session set by the JWT middleware
func GetSessionData(c *gin.Context) (*SessionData, bool) {
	session, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// JWTAuthMiddleware validates the bearer credential and loads the session
func JWTAuthMiddleware(tokens *tokenIssuer, db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Token is missing"
			case ErrInvalidAuthFormat:
				message = "Invalid token format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondWithError(c, log, http.StatusUnauthorized, err, message)
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to validate JWT token")
			respondWithError(c, log, http.StatusUnauthorized, ErrInvalidToken, "Token is invalid or expired")
			return
		}

		// Verify user exists and is active
		var user userRecord
		if err := db.Where("id = ? AND is_active = ?", claims.UserID, true).First(&user).Error; err != nil {
			respondWithError(c, log, http.StatusUnauthorized, ErrUserNotFound, "User not found or inactive")
			return
		}

		setSession(c, &SessionData{
			UserID:   claims.UserID,
			TenantID: claims.TenantID,
		})

		c.Next()
	}
}

// TenantRequiredMiddleware rejects credentials that are not scoped to a
// tenant the user still belongs to
func TenantRequiredMiddleware(db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)
		if !exists {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}

		if sessionData.TenantID == 0 {
			respondWithError(c, log, http.StatusBadRequest, ErrNoTenant, "User not associated with any organization")
			return
		}

		var count int64
		if err := db.Model(&membershipRecord{}).
			Where("user_id = ? AND tenant_id = ?", sessionData.UserID, sessionData.TenantID).
			Count(&count).Error; err != nil || count == 0 {
			respondWithError(c, log, http.StatusForbidden, errors.New("membership revoked"), "You are not a member of this organization")
			return
		}

		c.Next()
	}
}
