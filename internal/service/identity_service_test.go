package service

import (
	"Courier/internal/model"
	"Courier/internal/pkg/redis"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint64]*model.User
	calls int
}

func (r *fakeUserRepo) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.users[id], nil
}

func (r *fakeUserRepo) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	res := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := redis.Rdb
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = redis.Rdb.Close()
		redis.Rdb = prev
	})
	return mr
}

func TestIdentityProvider_ReadThroughCache(t *testing.T) {
	mr := setupMiniRedis(t)
	avatar := "https://cdn/a.png"
	repo := &fakeUserRepo{users: map[uint64]*model.User{
		1: {ID: 1, UserDetail: model.UserDetail{UserID: 1, Nickname: "Alice", AvatarURL: &avatar}},
	}}
	provider := NewIdentityProvider(repo, time.Minute)
	ctx := context.Background()

	profiles, err := provider.GetProfiles(ctx, []uint64{1, 2})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Alice", profiles[1].Nickname)
	assert.Equal(t, avatar, ResolveAvatar(profiles[1]))
	assert.Equal(t, 1, repo.calls)
	assert.True(t, mr.Exists("user:profile:1"))
	assert.False(t, mr.Exists("user:profile:2"))

	profiles, err = provider.GetProfiles(ctx, []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, "Alice", profiles[1].Nickname)
	assert.Equal(t, 1, repo.calls)

	ok, err := provider.Exists(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityProvider_Invalidate(t *testing.T) {
	mr := setupMiniRedis(t)
	repo := &fakeUserRepo{users: map[uint64]*model.User{
		5: {ID: 5, UserDetail: model.UserDetail{UserID: 5, Nickname: "old"}},
	}}
	provider := NewIdentityProvider(repo, time.Minute)
	ctx := context.Background()

	_, err := provider.GetProfiles(ctx, []uint64{5})
	require.NoError(t, err)
	require.True(t, mr.Exists("user:profile:"+strconv.Itoa(5)))

	repo.users[5].UserDetail.Nickname = "new"
	require.NoError(t, provider.Invalidate(ctx, 5))
	assert.False(t, mr.Exists("user:profile:5"))

	profiles, err := provider.GetProfiles(ctx, []uint64{5})
	require.NoError(t, err)
	assert.Equal(t, "new", profiles[5].Nickname)
}

func TestIdentityProvider_CacheFailureFallsBackToRepo(t *testing.T) {
	mr := setupMiniRedis(t)
	repo := &fakeUserRepo{users: map[uint64]*model.User{
		9: {ID: 9, UserDetail: model.UserDetail{UserID: 9, Nickname: "nine"}},
	}}
	provider := NewIdentityProvider(repo, time.Minute)

	mr.SetError("LOADING")
	ok, err := provider.Exists(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)
}
