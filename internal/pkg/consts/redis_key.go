package consts

const (
	UserProfileKey    = "user:profile:"
	IMConversationKey = "im:conversation:"
)

const (
	OrphanSweepLock = "lock:im:orphan:sweep"
)
