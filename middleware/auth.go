package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"repbbs/models"
	"repbbs/utils"
)

const (
	// ContextUserKey stores the authenticated *models.User in Gin context.
	ContextUserKey = "current_user"
)

// AuthRequired ensures the request carries a valid JWT and resolves it to a
// live user row. The row is re-read on every request so bans and role
// changes apply immediately instead of waiting for token expiry.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, errCode, errMsg, status := resolveUser(ctx, db)
		if user == nil {
			utils.Error(ctx, status, errCode, errMsg)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// AuthOptional resolves the viewer identity when a bearer token is present
// so listing endpoints can annotate "has this viewer voted"; anonymous and
// invalid-token requests proceed without an identity.
func AuthOptional(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") != "" {
			if user, _, _, _ := resolveUser(ctx, db); user != nil {
				ctx.Set(ContextUserKey, user)
			}
		}
		ctx.Next()
	}
}

func resolveUser(ctx *gin.Context, db *gorm.DB) (*models.User, int, string, int) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, 40101, "authorization header missing", http.StatusUnauthorized
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format", http.StatusUnauthorized
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token", http.StatusUnauthorized
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, 40104, "token revoked", http.StatusUnauthorized
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, 40105, "invalid token", http.StatusUnauthorized
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return nil, 40106, "user not found", http.StatusUnauthorized
	}
	if user.IsBanned {
		return nil, 40301, "account is banned", http.StatusForbidden
	}
	return &user, 0, "", 0
}

// CurrentUser retrieves the authenticated user placed by AuthRequired or AuthOptional.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	value, exists := ctx.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
