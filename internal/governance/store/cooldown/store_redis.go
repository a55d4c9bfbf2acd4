package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

const keyPrefix = "poolshare:cooldown:"

// Timestamps are stored as fixed-width decimal so the scripts can compare
// them as strings; Lua numbers cannot hold unix nanoseconds exactly.
const stampWidth = 20

// acquireScript returns the stored stamp when it is at or after the cutoff
// (now minus the window), otherwise stores now and returns nil.
//
// KEYS[1] proposer key; ARGV[1] now; ARGV[2] cutoff; ARGV[3] ttl in ms.
var acquireScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and string.len(last) == string.len(ARGV[2]) and last >= ARGV[2] then
	return last
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return false
`)

// releaseScript deletes the key only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore shares proposal cooldowns between replicas. The value is the
// proposal time in unix nanoseconds, compared against the caller's clock;
// the key TTL only garbage-collects entries whose window has passed. Both
// the check and the write run in one script, so replicas racing on the same
// proposer admit exactly one proposal.
type RedisStore struct {
	client redis.Cmdable
	window time.Duration
}

func NewRedisStore(client redis.Cmdable, window time.Duration) *RedisStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{client: client, window: window}
}

func (s *RedisStore) Acquire(ctx context.Context, proposer id.PrincipalID, now time.Time) error {
	key := keyPrefix + proposer.String()
	ttl := s.window + time.Second
	cutoff := max(now.Add(-s.window).UnixNano(), 0)

	raw, err := acquireScript.Run(ctx, s.client, []string{key},
		stamp(now.UnixNano()), stamp(cutoff), ttl.Milliseconds(),
	).Text()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "cooldown store unavailable")
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "corrupt cooldown entry")
	}
	if err := check(time.Unix(0, nanos), now, s.window); err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeInternal, "cooldown script and window disagree")
}

func (s *RedisStore) Release(ctx context.Context, proposer id.PrincipalID, now time.Time) error {
	key := keyPrefix + proposer.String()
	if err := releaseScript.Run(ctx, s.client, []string{key}, stamp(now.UnixNano())).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "cooldown store unavailable")
	}
	return nil
}

func stamp(nanos int64) string {
	return fmt.Sprintf("%0*d", stampWidth, nanos)
}
