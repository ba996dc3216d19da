package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ctx = context.Background()

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

var _ KeyValueDB = &RedisClient{}
var _ DocumentDB = &RedisClient{}

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
	})
	return &RedisClient{
		conn: conn,
	}
}

// SetEX implement KeyValueDB
func (rdb *RedisClient) SetEX(key string, value string, expiration time.Duration) error {
	return rdb.conn.Set(ctx, key, value, expiration).Err()
}

// Get implement KeyValueDB
func (rdb *RedisClient) Get(key string) (string, error) {
	cmd := rdb.conn.Get(ctx, key)
	return cmd.Result()
}

// Exists implement KeyValueDB
func (rdb *RedisClient) Exists(key string) (bool, error) {
	cmd := rdb.conn.Exists(ctx, key)
	if ok, err := cmd.Result(); err == nil {
		return ok == 1, nil
	} else {
		return false, err
	}
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping() error {
	return rdb.conn.Ping(ctx).Err()
}

// GetDoc implement DocumentDB
func (rdb *RedisClient) GetDoc(reqCtx context.Context, key string, out interface{}) (bool, error) {
	raw, err := rdb.conn.Get(reqCtx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// PutDoc implement DocumentDB
func (rdb *RedisClient) PutDoc(reqCtx context.Context, key string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return rdb.conn.Set(reqCtx, key, raw, 0).Err()
}

// PutDocNX implement DocumentDB
func (rdb *RedisClient) PutDocNX(reqCtx context.Context, key string, doc interface{}) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	return rdb.conn.SetNX(reqCtx, key, raw, 0).Result()
}

// ScanKeys implement DocumentDB
func (rdb *RedisClient) ScanKeys(reqCtx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := rdb.conn.Scan(reqCtx, 0, pattern, 0).Iterator()
	for iter.Next(reqCtx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
