package consts

const (
	DefaultAvatarURL = "default_avatar.png"
)
