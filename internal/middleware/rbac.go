package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

// Role groups used by the router.
var (
	AdminRoles    = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
	SchedulerRole = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher}
)

// RequireRoles lets a request through only when the caller holds one of the roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[claims.Role]; !permitted {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
