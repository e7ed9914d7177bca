package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSavingsKeyUsesExactEmailAndDay(t *testing.T) {
	asOf := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "ratebench:savings:buyer@example.com:2024-06-15", SavingsKey("ratebench", "buyer@example.com", asOf))
	assert.NotEqual(t,
		SavingsKey("ratebench", "Buyer@example.com", asOf),
		SavingsKey("ratebench", "buyer@example.com", asOf),
	)
	assert.Equal(t,
		SavingsKey("ratebench", "buyer@example.com", asOf),
		SavingsKey("ratebench", "buyer@example.com", asOf.Add(-18*time.Hour)),
	)
}

func TestDefaultPrefix(t *testing.T) {
	c := NewRedisCacheWithClient(nil, "", time.Minute)
	assert.Equal(t, "ratebench:savings:a@b.c:2024-01-02", c.savingsKey("a@b.c", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, Options{Addr: "127.0.0.1:1", TTL: time.Minute})
	assert.Error(t, err)
}
