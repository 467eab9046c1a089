// 文件: pkg/cache/redis_cache.go
// 估值缓存 (Redis)
//
// Key 设计:
//   val:latest:{symbol}            最新估值 JSON (带 TTL)
//   val:smile:{underlying}:{kind}  ZSET，score=strike，member=symbol
//
// 同一标的、同一类型的合约按执行价排序即得到隐含波动率微笑

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"optlab.com/pkg/options"
	"optlab.com/pkg/quote"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("valuation not cached")

const defaultTTL = 10 * time.Minute

type RedisValuationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisValuationCache(addr string) *RedisValuationCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisValuationCacheWithClient(rdb, defaultTTL)
}

func NewRedisValuationCacheWithClient(client *redis.Client, ttl time.Duration) *RedisValuationCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisValuationCache{client: client, ttl: ttl}
}

// Ping 检查连接
func (c *RedisValuationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *RedisValuationCache) Close() error {
	return c.client.Close()
}

func latestKey(symbol string) string {
	return "val:latest:" + symbol
}

func smileKey(underlying string, kind options.Kind) string {
	return "val:smile:" + underlying + ":" + kind.String()
}

// luaPut 写入脚本
// KEYS[1]: latestKey
// KEYS[2]: smileKey
// ARGV[1]: valuationJSON
// ARGV[2]: ttl (秒)
// ARGV[3]: strike (score)
// ARGV[4]: symbol (member)
const luaPut = `
	redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
	redis.call('EXPIRE', KEYS[2], ARGV[2])
	return 1
`

// Put 写入最新估值并更新微笑索引 (Lua 保证原子)
func (c *RedisValuationCache) Put(ctx context.Context, v *quote.Valuation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ttl := strconv.FormatInt(int64(c.ttl/time.Second), 10)
	strike := strconv.FormatFloat(v.Strike, 'f', -1, 64)
	return c.client.Eval(ctx, luaPut,
		[]string{latestKey(v.Symbol), smileKey(v.Underlying, v.Kind)},
		data, ttl, strike, v.Symbol).Err()
}

// Latest 获取合约最新估值
func (c *RedisValuationCache) Latest(ctx context.Context, symbol string) (*quote.Valuation, error) {
	data, err := c.client.Get(ctx, latestKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var v quote.Valuation
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Smile 按执行价升序返回同一标的、同一类型的最新估值
// 详情已过期的成员顺手从索引里清理掉
func (c *RedisValuationCache) Smile(ctx context.Context, underlying string, kind options.Kind) ([]*quote.Valuation, error) {
	indexKey := smileKey(underlying, kind)
	symbols, err := c.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = latestKey(s)
	}
	raws, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*quote.Valuation, 0, len(raws))
	stale := make([]interface{}, 0)
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			stale = append(stale, symbols[i])
			continue
		}
		var v quote.Valuation
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}

	if len(stale) > 0 {
		if err := c.client.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			log.Printf("[Cache] clean smile index %s failed: %v", indexKey, err)
		}
	}
	return out, nil
}

// luaRemove 删除脚本
// KEYS[1]: latestKey
// ARGV[1]: symbol
const luaRemove = `
	local data = redis.call('GET', KEYS[1])
	if not data then return 0 end

	local v = cjson.decode(data)
	local indexKey = string.format("val:smile:%s:%s", v["underlying"], v["kind"])

	redis.call('ZREM', indexKey, ARGV[1])
	redis.call('DEL', KEYS[1])
	return 1
`

// Remove 删除合约估值 (合约下市)
func (c *RedisValuationCache) Remove(ctx context.Context, symbol string) error {
	return c.client.Eval(ctx, luaRemove, []string{latestKey(symbol)}, symbol).Err()
}
