package auth

import (
	"net/http"
	"strings"

	"IntentCode/backend/go/internal/models"

	"github.com/gin-gonic/gin"
)

// IdentityKey 是身份在 gin 上下文中的键。
const IdentityKey = "identity"

// Middleware 创建一个 Gin 中间件，用于验证 JWT 并把身份写入上下文。
// 浏览器无法为 WebSocket 握手设置请求头，因此同时接受 access_token 查询参数。
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含有效的授权标头"})
			return
		}

		ident, err := Parse(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(IdentityKey, ident)
		c.Next()
	}
}

// FromContext 取出中间件写入的身份。
func FromContext(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	ident, ok := v.(models.Identity)
	return ident, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("access_token")
		return token, token != ""
	}
	// 我们期望的格式是 "Bearer <token>"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
