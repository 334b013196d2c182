// Package redisinspect reads and clears a Redis keyspace directly, for
// operators who can reach the cache without going through the admin API.
package redisinspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

var ErrKeyNotFound = errors.New("key not found")

const (
	defaultScanCount = 200
	defaultMaxKeys   = 1000
	// collectionLimit bounds how many members are read from lists, sets,
	// sorted sets and streams.
	collectionLimit = 100
)

// Inspector lists and deletes keys with SCAN, TYPE, TTL, DEL and FLUSHDB.
// It satisfies the cache page's Service interface.
type Inspector struct {
	client    redis.Cmdable
	closer    io.Closer
	logger    *slog.Logger
	scanCount int64
	maxKeys   int
}

type Option func(*Inspector)

// WithScanCount sets the COUNT hint passed to SCAN.
func WithScanCount(n int64) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.scanCount = n
		}
	}
}

// WithMaxKeys caps how many entries List returns. The reported total still
// counts every matching key.
func WithMaxKeys(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.maxKeys = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Inspector) {
		if l != nil {
			i.logger = l
		}
	}
}

func New(client redis.Cmdable, opts ...Option) *Inspector {
	i := &Inspector{
		client:    client,
		logger:    slog.Default(),
		scanCount: defaultScanCount,
		maxKeys:   defaultMaxKeys,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Open connects to the Redis server at rawURL, e.g. redis://localhost:6379/0.
func Open(rawURL string, opts ...Option) (*Inspector, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(options)

	i := New(client, opts...)
	i.closer = client
	return i, nil
}

func (i *Inspector) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *Inspector) Close() error {
	if i.closer == nil {
		return nil
	}
	return i.closer.Close()
}

// List scans keys matching pattern (all keys when empty) and reads their
// type, TTL and value.
func (i *Inspector) List(ctx context.Context, pattern string) (*adminsdk.CacheList, error) {
	if pattern == "" {
		pattern = "*"
	}

	keys, err := i.scan(ctx, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	total := len(keys)
	if len(keys) > i.maxKeys {
		keys = keys[:i.maxKeys]
	}

	entries, err := i.describe(ctx, keys)
	if err != nil {
		return nil, err
	}

	i.logger.Debug("redis list", "pattern", pattern, "total", total, "returned", len(entries))
	return &adminsdk.CacheList{TotalKeys: total, Entries: entries}, nil
}

// DeleteOne removes key. ErrKeyNotFound is returned when nothing was deleted.
func (i *Inspector) DeleteOne(ctx context.Context, key string) error {
	n, err := i.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// DeleteAll flushes the selected database.
func (i *Inspector) DeleteAll(ctx context.Context) error {
	if err := i.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flushdb: %w", err)
	}
	return nil
}

func (i *Inspector) scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	var cursor uint64
	for {
		batch, next, err := i.client.Scan(ctx, cursor, pattern, i.scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", pattern, err)
		}
		// SCAN may return a key more than once.
		for _, k := range batch {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (i *Inspector) describe(ctx context.Context, keys []string) ([]adminsdk.CacheEntry, error) {
	if len(keys) == 0 {
		return []adminsdk.CacheEntry{}, nil
	}

	types := make([]*redis.StatusCmd, len(keys))
	ttls := make([]*redis.DurationCmd, len(keys))
	_, err := i.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for n, k := range keys {
			types[n] = pipe.Type(ctx, k)
			ttls[n] = pipe.TTL(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read key metadata: %w", err)
	}

	reads := make([]redis.Cmder, len(keys))
	_, err = i.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for n, k := range keys {
			reads[n] = queueRead(ctx, pipe, k, types[n].Val())
		}
		return nil
	})
	// A key can expire between the two round trips.
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read values: %w", err)
	}

	entries := make([]adminsdk.CacheEntry, 0, len(keys))
	for n, k := range keys {
		entries = append(entries, adminsdk.CacheEntry{
			Key:   k,
			TTL:   ttlSeconds(ttls[n].Val()),
			Value: readValue(reads[n]),
		})
	}
	return entries, nil
}

func queueRead(ctx context.Context, pipe redis.Pipeliner, key, typ string) redis.Cmder {
	switch typ {
	case "string":
		return pipe.Get(ctx, key)
	case "hash":
		return pipe.HGetAll(ctx, key)
	case "list":
		return pipe.LRange(ctx, key, 0, collectionLimit-1)
	case "set":
		return pipe.SRandMemberN(ctx, key, collectionLimit)
	case "zset":
		return pipe.ZRangeWithScores(ctx, key, 0, collectionLimit-1)
	case "stream":
		return pipe.XRangeN(ctx, key, "-", "+", collectionLimit)
	default:
		return nil
	}
}

// readValue turns a queued read into a JSON-friendly value.
func readValue(cmd redis.Cmder) any {
	if cmd == nil || cmd.Err() != nil {
		return nil
	}

	switch c := cmd.(type) {
	case *redis.StringCmd:
		return decodeString(c.Val())
	case *redis.MapStringStringCmd:
		return c.Val()
	case *redis.StringSliceCmd:
		return c.Val()
	case *redis.ZSliceCmd:
		out := make([]map[string]any, 0, len(c.Val()))
		for _, z := range c.Val() {
			out = append(out, map[string]any{"member": z.Member, "score": z.Score})
		}
		return out
	case *redis.XMessageSliceCmd:
		out := make([]map[string]any, 0, len(c.Val()))
		for _, m := range c.Val() {
			out = append(out, map[string]any{"id": m.ID, "values": m.Values})
		}
		return out
	default:
		return nil
	}
}

// decodeString returns JSON documents decoded so they render structured.
func decodeString(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case map[string]any, []any:
			return v
		}
	}
	return s
}

// ttlSeconds maps a TTL reply onto the listing convention: -1 no expiry,
// -2 missing or expired, otherwise whole seconds.
func ttlSeconds(d time.Duration) int64 {
	switch d {
	case -1:
		return adminsdk.TTLNoExpiry
	case -2:
		return adminsdk.TTLExpired
	}
	if d < 0 {
		return adminsdk.TTLExpired
	}
	return int64(d / time.Second)
}
