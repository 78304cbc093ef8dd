package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/dto"
	"storefront-orders/internal/model"
)

const actorKey = "actor"

// TokenValidator resolves a bearer token to the calling actor.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (model.Actor, error)
}

// Auth validates the bearer token and stores the actor in the context.
func Auth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Unauthorized("missing authorization header"))
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		actor, err := v.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by Auth.
func ActorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(model.Actor); ok {
			return a
		}
	}
	return model.Actor{}
}

func abort(c *gin.Context, err error) {
	code := apperr.StatusCode(err)
	if code == http.StatusInternalServerError {
		// the auth service itself failed; the caller is still unauthenticated
		code = http.StatusUnauthorized
		err = apperr.Unauthorized("unable to validate token")
	}
	c.AbortWithStatusJSON(code, dto.Response{Success: false, Message: apperr.Message(err)})
}
