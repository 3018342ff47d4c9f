package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "dispatch:distance_samples"

// redisSample is the JSON member stored in the sorted set.
type redisSample struct {
	OriginLat float64 `json:"olat"`
	OriginLng float64 `json:"olng"`
	DestLat   float64 `json:"dlat"`
	DestLng   float64 `json:"dlng"`
	SampledAt int64   `json:"at"`
	Seconds   int64   `json:"s"`
}

// RedisDistanceCache keeps samples in one sorted set scored by sample time,
// so loading and pruning are range operations.
type RedisDistanceCache struct {
	client redis.Cmdable
	key    string
}

func NewRedisDistanceCache(client redis.Cmdable, key string) *RedisDistanceCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisDistanceCache{client: client, key: key}
}

func (c *RedisDistanceCache) LoadSamples(ctx context.Context, since int64) ([]domain.DistanceSample, error) {
	if c.client == nil {
		return nil, errors.New("distance store: redis client is nil")
	}

	members, err := c.client.ZRangeByScore(ctx, c.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("load distance samples: redis zrange: %w", err)
	}

	out := make([]domain.DistanceSample, 0, len(members))
	for _, m := range members {
		var rs redisSample
		if err := json.Unmarshal([]byte(m), &rs); err != nil {
			return nil, fmt.Errorf("load distance samples: decode member: %w", err)
		}
		out = append(out, domain.DistanceSample{
			Origin:      domain.Coordinates{Lat: rs.OriginLat, Lng: rs.OriginLng},
			Destination: domain.Coordinates{Lat: rs.DestLat, Lng: rs.DestLng},
			SampledAt:   rs.SampledAt,
			Seconds:     rs.Seconds,
		})
	}
	return out, nil
}

func (c *RedisDistanceCache) SaveSamples(ctx context.Context, samples []domain.DistanceSample) error {
	if c.client == nil {
		return errors.New("distance store: redis client is nil")
	}

	if len(samples) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(samples))
	for _, smp := range samples {
		data, err := json.Marshal(redisSample{
			OriginLat: smp.Origin.Lat,
			OriginLng: smp.Origin.Lng,
			DestLat:   smp.Destination.Lat,
			DestLng:   smp.Destination.Lng,
			SampledAt: smp.SampledAt,
			Seconds:   smp.Seconds,
		})
		if err != nil {
			return fmt.Errorf("save distance samples: encode member: %w", err)
		}
		members = append(members, redis.Z{Score: float64(smp.SampledAt), Member: string(data)})
	}

	if err := c.client.ZAdd(ctx, c.key, members...).Err(); err != nil {
		return fmt.Errorf("save distance samples: redis zadd: %w", err)
	}
	return nil
}

func (c *RedisDistanceCache) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	if c.client == nil {
		return 0, errors.New("distance store: redis client is nil")
	}

	n, err := c.client.ZRemRangeByScore(ctx, c.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("prune distance samples: redis zremrangebyscore: %w", err)
	}
	return n, nil
}
