package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"strconv"
	"strings"
)

// ResolveAvatar 头像优先级：社交账号头像 > 资料页头像 > 自行上传头像 > 默认头像
func ResolveAvatar(p *dto.UserProfileDTO) string {
	if p == nil {
		return consts.DefaultAvatarURL
	}
	for _, candidate := range []*string{p.SocialAvatarURL, p.ProfilePictureURL, p.AvatarURL} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return *candidate
		}
	}
	return consts.DefaultAvatarURL
}

// DisplayName 昵称 > 用户名 > 用户{id}
func DisplayName(p *dto.UserProfileDTO, userID uint64) string {
	if p != nil {
		if strings.TrimSpace(p.Nickname) != "" {
			return p.Nickname
		}
		if p.Username != nil && strings.TrimSpace(*p.Username) != "" {
			return *p.Username
		}
	}
	return "用户" + strconv.FormatUint(userID, 10)
}
