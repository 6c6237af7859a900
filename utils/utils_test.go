package utils

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Regexp(t, "^[0-9A-F]+$", code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestRedisLock_TryAcquire(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "sweep:lock", 5*time.Minute)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("sweep:lock", `^[0-9A-F]+$`, 5*time.Minute).SetVal(true)

	held, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_TryAcquire_HeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "sweep:lock", 5*time.Minute)
	ctx := context.Background()

	mock.Regexp().ExpectSetNX("sweep:lock", `^[0-9A-F]+$`, 5*time.Minute).SetVal(false)

	held, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_Release_OnlyOwnToken(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "sweep:lock", 5*time.Minute)
	ctx := context.Background()

	// Another instance took over after our TTL expired; Release must not
	// delete its lock.
	mock.ExpectGet("sweep:lock").SetVal("someone-elses-token")

	lock.Release(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}
