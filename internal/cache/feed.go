package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedTTL is how long a cached feed page stays valid. Writes invalidate
// eagerly, so the TTL only bounds staleness across instances.
const FeedTTL = 60 * time.Second

const feedKeyPrefix = "feed:tracks"

func feedKey(limit, offset int) string {
	return fmt.Sprintf("%s:%d:%d", feedKeyPrefix, limit, offset)
}

// GetFeedPage reads a cached feed page into dest. Returns false on a miss or
// when caching is unavailable.
func GetFeedPage(ctx context.Context, rdb *redis.Client, limit, offset int, dest interface{}) bool {
	if rdb == nil {
		return false
	}
	raw, err := rdb.Get(ctx, feedKey(limit, offset)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

// SetFeedPage caches one feed page. Errors are ignored; the feed is served
// from the database either way.
func SetFeedPage(ctx context.Context, rdb *redis.Client, limit, offset int, page interface{}) {
	if rdb == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	_ = rdb.Set(ctx, feedKey(limit, offset), raw, FeedTTL).Err()
}

// InvalidateFeed drops all cached feed pages. Called after any track write.
func InvalidateFeed(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		return
	}
	iter := rdb.Scan(ctx, 0, feedKeyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return
	}
	if len(keys) > 0 {
		_ = rdb.Del(ctx, keys...).Err()
	}
}
