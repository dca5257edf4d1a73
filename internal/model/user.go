package model

import (
	"time"

	"gorm.io/gorm"
)

// User 账号表，只读；资料与头像在 UserDetail，变更经 canal 推送后使资料缓存失效
type User struct {
	ID        uint64  `gorm:"primaryKey"`
	Username  *string `gorm:"type:varchar(50);uniqueIndex:idx_username"`
	IsBan     bool    `gorm:"type:tinyint(1);default:0"`                 // 封禁用户仍可被检索，会话保留
	IsDelete  bool    `gorm:"type:tinyint(1);default:0;index:idx_alive"` // 注销视为不存在
	CreatedAt time.Time
	UpdatedAt time.Time

	UserDetail UserDetail `gorm:"foreignKey:UserID;references:ID"`
}

func (User) TableName() string {
	return "users"
}

// NotDeleted 过滤已注销账号
func NotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("is_delete = ?", false)
}
