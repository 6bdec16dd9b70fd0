package server

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/kosaiyno/iryspredict/internal/domain"
)

const adminTokenHeader = "x-admin-token"

// requireAdminToken gates a route group behind the shared operator secret.
// An empty configured token disables the whole group rather than leaving it
// open.
func requireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader(adminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			respondError(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
