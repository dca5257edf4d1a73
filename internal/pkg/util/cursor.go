package util

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// ParseCursor 游标即消息 ID (UUIDv7)，返回规范化的小写形式；空串表示第一页
func ParseCursor(cursor string) (string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return "", nil
	}
	id, err := uuid.Parse(cursor)
	if err != nil || id.Version() != 7 {
		return "", ErrInvalidCursor
	}
	return id.String(), nil
}
