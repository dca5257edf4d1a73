package model

type UserDetail struct {
	UserID            uint64  `gorm:"primaryKey"`
	Nickname          string  `gorm:"type:varchar(50);not null"`
	SocialAvatarURL   *string `gorm:"type:varchar(512);column:social_avatar_url"`   // 第三方社交账号头像
	ProfilePictureURL *string `gorm:"type:varchar(512);column:profile_picture_url"` // 资料页头像
	AvatarURL         *string `gorm:"type:varchar(512);column:avatar_url"`          // 用户自行上传
}

func (UserDetail) TableName() string {
	return "user_detail"
}
