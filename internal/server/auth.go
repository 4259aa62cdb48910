package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"tasksync/internal/service"
)

// requireToken rejects requests without the shared bearer token before any
// handler runs. An empty token disables the check.
func requireToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if header == "" || !ok || strings.TrimSpace(got) == "" {
			respondError(c, service.ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			respondError(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}
