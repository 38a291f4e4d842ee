package queuestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func boardKey(stationID int64) string {
	return fmt.Sprintf("gasflow:station:%d:queue", stationID)
}

const allStationsKey = "gasflow:stations"

func (r *RedisStore) SetBoard(ctx context.Context, q *StationQueue) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, boardKey(q.StationID), data, 0)
	pipe.SAdd(ctx, allStationsKey, q.StationID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetBoard(ctx context.Context, stationID int64) (*StationQueue, error) {
	data, err := r.client.Get(ctx, boardKey(stationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q StationQueue
	return &q, json.Unmarshal(data, &q)
}

func (r *RedisStore) AllStationIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, allStationsKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisStore) RemoveBoard(ctx context.Context, stationID int64) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, boardKey(stationID))
	pipe.SRem(ctx, allStationsKey, stationID)
	_, err := pipe.Exec(ctx)
	return err
}
