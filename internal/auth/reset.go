package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	resetPrefix = "reset:"
	resetTTL    = time.Hour
)

var ErrTokenNotFound = errors.New("reset token not found or expired")

// ResetTokens - одноразовые токены сброса пароля в Redis с TTL.
type ResetTokens struct {
	rdb redis.Cmdable
}

func NewResetTokens(rdb redis.Cmdable) *ResetTokens {
	return &ResetTokens{rdb: rdb}
}

func (r *ResetTokens) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.New().String()
	if err := r.rdb.Set(ctx, resetPrefix+token, userID, resetTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume атомарно читает и удаляет токен: повторное использование невозможно.
func (r *ResetTokens) Consume(ctx context.Context, token string) (int64, error) {
	val, err := r.rdb.GetDel(ctx, resetPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
