package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKey 识别唯一索引冲突（TranslateError 未生效时按驱动错误文本兜底）
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint failed")
}
