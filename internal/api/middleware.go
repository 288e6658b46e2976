package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const credentialContextKey = "gateway_credential"

// CredentialMiddleware captures the caller's API key and stores it in the
// context. The key is forwarded to the remote gateway and never persisted.
func CredentialMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractCredential(c)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key required"})
			return
		}
		c.Set(credentialContextKey, credential)
		c.Next()
	}
}

// CredentialFromContext retrieves the API key captured by the middleware.
func CredentialFromContext(c *gin.Context) string {
	val, ok := c.Get(credentialContextKey)
	if !ok {
		return ""
	}
	credential, _ := val.(string)
	return credential
}

func extractCredential(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.GetHeader("X-Api-Key"))
}
