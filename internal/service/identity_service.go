package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/consts"
	"Courier/internal/pkg/redis"
	"Courier/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

// IdentityProvider 用户身份：存在性校验与显示信息
type IdentityProvider interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
	GetProfiles(ctx context.Context, ids []uint64) (map[uint64]*dto.UserProfileDTO, error)
	Invalidate(ctx context.Context, ids ...uint64) error
}

type identityProviderImpl struct {
	userRepo repository.UserRepo
	ttl      time.Duration
}

// NewIdentityProvider Redis 读穿缓存，缓存不可用时直接回源
func NewIdentityProvider(userRepo repository.UserRepo, ttl time.Duration) IdentityProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &identityProviderImpl{userRepo: userRepo, ttl: ttl}
}

func (s *identityProviderImpl) Exists(ctx context.Context, userID uint64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	profiles, err := s.GetProfiles(ctx, []uint64{userID})
	if err != nil {
		return false, err
	}
	_, ok := profiles[userID]
	return ok, nil
}

// GetProfiles 不存在或已注销的用户不会出现在结果中
func (s *identityProviderImpl) GetProfiles(ctx context.Context, ids []uint64) (map[uint64]*dto.UserProfileDTO, error) {
	mp := make(map[uint64]*dto.UserProfileDTO, len(ids))
	if len(ids) == 0 {
		return mp, nil
	}

	missIds := s.loadFromCache(ctx, ids, mp)
	if len(missIds) == 0 {
		return mp, nil
	}

	users, err := s.userRepo.GetUserByIds(ctx, missIds)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		profile := &dto.UserProfileDTO{}
		if err = copier.Copy(profile, &user.UserDetail); err != nil {
			return nil, err
		}
		profile.UserID = user.ID
		profile.Username = user.Username
		mp[user.ID] = profile
		s.saveToCache(ctx, profile)
	}
	return mp, nil
}

func (s *identityProviderImpl) Invalidate(ctx context.Context, ids ...uint64) error {
	if redis.Rdb == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, profileKey(id))
	}
	return redis.DeleteKey(ctx, keys...)
}

func (s *identityProviderImpl) loadFromCache(ctx context.Context, ids []uint64, mp map[uint64]*dto.UserProfileDTO) []uint64 {
	if redis.Rdb == nil {
		return ids
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, profileKey(id))
	}
	values, err := redis.MGetValues(ctx, keys)
	if err != nil {
		log.WarnContext(ctx, "profile cache read failed", "err", err)
		return ids
	}

	missIds := make([]uint64, 0)
	for i, id := range ids {
		if values[i] == "" {
			missIds = append(missIds, id)
			continue
		}
		var profile dto.UserProfileDTO
		if err = json.Unmarshal([]byte(values[i]), &profile); err != nil {
			missIds = append(missIds, id)
			continue
		}
		mp[id] = &profile
	}
	return missIds
}

func (s *identityProviderImpl) saveToCache(ctx context.Context, profile *dto.UserProfileDTO) {
	if redis.Rdb == nil {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err = redis.SetWithExpiration(ctx, profileKey(profile.UserID), string(data), s.ttl); err != nil {
		log.WarnContext(ctx, "profile cache write failed", "user_id", profile.UserID, "err", err)
	}
}

func profileKey(userID uint64) string {
	return consts.UserProfileKey + strconv.FormatUint(userID, 10)
}
