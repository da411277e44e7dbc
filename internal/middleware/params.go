package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/response"
)

// UUIDParams answers 404 when a named path parameter is present but is not a canonical UUID.
func UUIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value := c.Param(name)
			if value == "" {
				continue
			}
			if _, err := uuid.Parse(value); err != nil || len(value) != 36 {
				response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Resource not found"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
