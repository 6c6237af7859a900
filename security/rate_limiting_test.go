package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow_FirstHitStartsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)
	ctx := context.Background()
	key := "ratelimit:/api/v1/parties/p1/requests:user:u1"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)

	assert.True(t, limiter.allow(ctx, key, 10, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_AtLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)
	ctx := context.Background()
	key := "ratelimit:/api/v1/parties/p1/requests:user:u1"

	// The window is only armed on the first hit.
	mock.ExpectIncr(key).SetVal(10)

	assert.True(t, limiter.allow(ctx, key, 10, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)
	ctx := context.Background()
	key := "antibot:10.0.0.1"

	mock.ExpectIncr(key).SetVal(121)

	assert.False(t, limiter.allow(ctx, key, 120, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_RedisDownFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)
	ctx := context.Background()
	key := "ratelimit:/api/v1/parties/p1/requests:user:u1"

	mock.ExpectIncr(key).SetErr(errors.New("connection refused"))

	assert.True(t, limiter.allow(ctx, key, 10, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_IsSuspiciousUserAgent(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"browser", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", false},
		{"mobile app", "PartyApp/2.1 (iPhone; iOS 17.4)", false},
		{"generic bot", "SomeBot/1.0", true},
		{"crawler", "fancy-crawler 3.2", true},
		{"spider uppercase", "MEGA-SPIDER", true},
		{"scraper", "data scraper v9", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limiter.isSuspiciousUserAgent(tt.ua))
		})
	}
}
