package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("COURIER_IM_STRICT_SENDER", "false")
	t.Setenv("COURIER_IM_MAX_PAGE_SIZE", "50")

	require.NoError(t, LoadConfig())
	require.NotNil(t, Cfg)

	assert.Equal(t, 8080, Cfg.Server.Port)
	assert.False(t, Cfg.IM.StrictSender)
	assert.Equal(t, 50, Cfg.IM.MaxPageSize)
	assert.Equal(t, 20, Cfg.IM.DefaultPageSize)
	assert.Equal(t, []string{"redis"}, Cfg.IM.EventSinks)
	assert.Equal(t, 3*time.Second, Cfg.IM.ReadTimeout())
	assert.Equal(t, time.Second, Cfg.IM.SideEffectTimeout())
	assert.Equal(t, time.Hour, Cfg.IM.ProfileCacheTTL())
}
