package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	userIDKey      = "userId"
	accessTokenKey = "accessToken"

	// browsers cannot set headers on a websocket handshake
	tokenQueryParam = "access_token"
)

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" && websocket.IsWebSocketUpgrade(c.Request) {
		if tok := c.Query(tokenQueryParam); tok != "" {
			header = "Bearer " + tok
		}
	}
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
			"kind":  kindUnauthorized,
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
			"kind":  kindUnauthorized,
		})
		return
	}

	userId, err := h.services.ParseToken(c.Request.Context(), parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
			"kind":  kindUnauthorized,
		})
		return
	}

	// store in Gin context
	c.Set(userIDKey, userId)
	c.Set(accessTokenKey, parts[1])
	c.Next()
}

func userID(c *gin.Context) int {
	return c.GetInt(userIDKey)
}
