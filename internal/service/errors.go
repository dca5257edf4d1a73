package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	log "log/slog"
	"net"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	BadRequest          = 400
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrMessageEmpty         = errors.New("消息内容不能为空")
	ErrSameParticipant      = errors.New("不能与自己创建会话")
	ErrPageSizeInvalid      = errors.New("分页大小必须为正数")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrNotParticipant       = errors.New("发送者不是会话成员")
	ErrConversationConflict = errors.New("会话并发创建冲突，请重试")
	ErrStorageTransient     = errors.New("存储暂不可用，请稍后重试")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrMessageEmpty:         BadRequest,
	ErrSameParticipant:      BadRequest,
	ErrPageSizeInvalid:      BadRequest,
	ErrUserNotFound:         NotFound,
	ErrConversationNotFound: NotFound,
	ErrNotParticipant:       Forbidden,
	ErrConversationConflict: Conflict,
	ErrStorageTransient:     ServiceUnavailable,
	UnExpectedError:         InternalServerError,
}

// Classify 沿错误链查找对应的业务错误及业务码
func Classify(err error) (error, int, bool) {
	for target, code := range ErrorMap {
		if errors.Is(err, target) {
			return target, code, true
		}
	}
	return nil, 0, false
}

// storageError 将驱动错误归类为 Transient 或 Internal，已归类的错误原样返回
func storageError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, _, ok := Classify(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || isNetError(err) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		log.WarnContext(ctx, "storage transient failure", "op", op, "err", err)
		return fmt.Errorf("%s: %w", op, ErrStorageTransient)
	}
	log.ErrorContext(ctx, "storage failure", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, UnExpectedError)
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
