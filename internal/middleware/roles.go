package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/model"
)

// RequireRole lets the request through when the actor has one of roles.
// Admins always pass.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor.IsAdmin() {
			c.Next()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("insufficient privileges"))
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(model.RoleAdmin)
}
