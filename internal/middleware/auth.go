package middleware

import (
	"strings"

	"assessment_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// IdentityMiddleware 读取网关注入的用户标识，认证由上游完成
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := util.MustParseUint(c.GetHeader(HeaderUserID)); id > 0 {
			c.Set(util.ContextUserID, id)
		}
		if role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))); role != "" {
			c.Set(util.ContextUserRole, role)
		}
		c.Next()
	}
}

// RoleMiddleware 要求请求带有指定角色之一，管理员始终放行
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if util.GetUserID(c) == 0 {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		role := c.GetString(util.ContextUserRole)
		hasRole := role == RoleAdmin
		for _, r := range roles {
			if role == r {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
