package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenAuth guards routes with a static bearer token.
func TokenAuth(token string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			ctx.PureJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing bearer token",
			})
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
