package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medlit-tools/semsearch/internal/dedupe"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("10.1056/alpha"))
	cache.MarkSeen("10.1056/alpha")
	require.True(t, cache.IsSeen("10.1056/alpha"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := dedupe.NewCache(10, 20*time.Millisecond)
	cache.MarkSeen("10.1056/beta")
	time.Sleep(25 * time.Millisecond)
	require.False(t, cache.IsSeen("10.1056/beta"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestCacheLen(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.Equal(t, 0, cache.Len())
	cache.MarkSeen("a")
	cache.MarkSeen("b")
	cache.MarkSeen("a")
	require.Equal(t, 2, cache.Len())
}
