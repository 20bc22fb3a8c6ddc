package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 64)
	return uint(id)
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// GetUserID 返回中间件写入上下文的用户 ID，未设置时为 0
func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
