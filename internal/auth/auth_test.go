package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	manager := NewTokenManager("test-secret")

	token, err := manager.Token(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := manager.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenInvalid(t *testing.T) {
	manager := NewTokenManager("test-secret")

	_, err := manager.Parse("")
	assert.Error(t, err)

	_, err = manager.Parse("not.a.token")
	assert.Error(t, err)

	// токен, подписанный другим ключом
	other := NewTokenManager("another-secret")
	token, err := other.Token(42)
	require.NoError(t, err)
	_, err = manager.Parse(token)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("love")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "love"))
	assert.False(t, CheckPassword(hash, "hate"))
	assert.False(t, CheckPassword(nil, "love"))

	// соль случайная, хеши одного пароля не совпадают
	hash2, err := HashPassword("love")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	assert.True(t, CheckPassword(hash2, "love"))
}

func TestResetTokens(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	reset := NewResetTokens(rdb)
	ctx := context.Background()

	token, err := reset.Create(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := reset.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	// токен одноразовый
	_, err = reset.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResetTokenExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reset := NewResetTokens(rdb)
	ctx := context.Background()

	token, err := reset.Create(ctx, 42)
	require.NoError(t, err)

	mr.FastForward(resetTTL + time.Minute)

	_, err = reset.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResetTokenUnknown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	reset := NewResetTokens(rdb)

	_, err := reset.Consume(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
