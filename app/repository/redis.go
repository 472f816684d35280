package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

const (
	redisSessionKeyPrefix = "payments:session:"
	redisOrderKeyPrefix   = "payments:order:"
	redisPendingByExpiry  = "payments:pending:by_expiry"
	redisPendingByUpdated = "payments:pending:by_updated"

	// Sessions stay readable for a day after creation, then become inert.
	redisSessionRetention = 24 * time.Hour
)

// luaTransitionIfPending swaps the stored session for the updated document
// only while the current status is still Pending, and drops the session from
// the pending indexes when the swap happens. ARGV: pending status code, new
// session JSON, payment id.
var luaTransitionIfPending = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return -1
end
local current = cjson.decode(raw)
if current["Status"] ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
redis.call("ZREM", KEYS[2], ARGV[3])
redis.call("ZREM", KEYS[3], ARGV[3])
return 1`)

// RedisSessionStore keeps sessions as JSON documents with the pending set
// indexed by expiry and last-update time. The CAS on status runs server-side
// in a Lua script, so the poll and webhook paths cannot both win.
type RedisSessionStore struct {
	cli *redis.Client
}

func NewRedisSessionStore(cli *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{cli: cli}
}

func (r *RedisSessionStore) Create(ctx context.Context, session *entity.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ok, err := r.cli.SetNX(ctx, redisOrderKeyPrefix+session.Order.OrderID, session.PaymentID, redisSessionRetention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionAlreadyExists
	}

	ok, err = r.cli.SetNX(ctx, redisSessionKeyPrefix+session.PaymentID, data, redisSessionRetention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionAlreadyExists
	}

	if session.Status == entity.StatusPending {
		pipe := r.cli.TxPipeline()
		pipe.ZAdd(ctx, redisPendingByExpiry, &redis.Z{Score: float64(session.ExpiresAt.Unix()), Member: session.PaymentID})
		pipe.ZAdd(ctx, redisPendingByUpdated, &redis.Z{Score: float64(session.UpdatedAt.Unix()), Member: session.PaymentID})
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (r *RedisSessionStore) FindByID(ctx context.Context, paymentID string) (*entity.PaymentSession, error) {
	return r.getSession(ctx, redisSessionKeyPrefix+paymentID)
}

func (r *RedisSessionStore) FindByOrderID(ctx context.Context, orderID string) (*entity.PaymentSession, error) {
	paymentID, err := r.cli.Get(ctx, redisOrderKeyPrefix+orderID).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, paymentID)
}

func (r *RedisSessionStore) TransitionIfPending(ctx context.Context, paymentID string, transition Transition) (*entity.PaymentSession, bool, error) {
	session, err := r.FindByID(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if session == nil {
		return nil, false, ErrSessionNotFound
	}
	if session.Status != entity.StatusPending {
		return session, false, nil
	}

	updated := *session
	updated.Status = transition.To
	if transition.ProviderTransactionID != nil {
		updated.ProviderTransactionID = transition.ProviderTransactionID
	}
	updated.CompletedAt = transition.CompletedAt
	if transition.FailureReason != nil {
		updated.FailureReason = transition.FailureReason
	}
	updated.UpdatedAt = transition.At

	data, err := json.Marshal(&updated)
	if err != nil {
		return nil, false, err
	}

	keys := []string{redisSessionKeyPrefix + paymentID, redisPendingByExpiry, redisPendingByUpdated}
	won, err := luaTransitionIfPending.Run(ctx, r.cli, keys,
		int32(entity.StatusPending), string(data), paymentID,
	).Int()
	if err != nil {
		return nil, false, err
	}

	switch won {
	case 1:
		return &updated, true, nil
	case -1:
		return nil, false, ErrSessionNotFound
	default:
		// Lost the race; return whatever transition landed first.
		current, err := r.FindByID(ctx, paymentID)
		if err != nil {
			return nil, false, err
		}
		if current == nil {
			return nil, false, ErrSessionNotFound
		}
		return current, false, nil
	}
}

func (r *RedisSessionStore) ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentSession, error) {
	return r.listPending(ctx, redisPendingByExpiry, now, limit)
}

func (r *RedisSessionStore) ListPendingForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentSession, error) {
	return r.listPending(ctx, redisPendingByUpdated, before, limit)
}

func (r *RedisSessionStore) listPending(ctx context.Context, index string, max time.Time, limit int32) ([]*entity.PaymentSession, error) {
	ids, err := r.cli.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(max.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.PaymentSession, 0, len(ids))
	for _, id := range ids {
		session, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if session == nil || session.Status != entity.StatusPending {
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (r *RedisSessionStore) getSession(ctx context.Context, key string) (*entity.PaymentSession, error) {
	raw, err := r.cli.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	session := &entity.PaymentSession{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		return nil, err
	}
	return session, nil
}
