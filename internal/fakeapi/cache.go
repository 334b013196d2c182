package fakeapi

import (
	"errors"
	"math"
	"path"
	"sort"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

var ErrKeyNotFound = errors.New("key not found")

type cacheItem struct {
	Value     any
	ExpiresAt time.Time // zero means no expiry
}

// SetCache stores value under key. A ttl of zero or less never expires.
func (s *Service) SetCache(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := cacheItem{Value: value}
	if ttl > 0 {
		item.ExpiresAt = s.opts.Now().Add(ttl)
	}
	s.cache[key] = item
}

// ListCache returns the live keys matching a glob pattern, sorted by key.
// An empty pattern matches everything.
func (s *Service) ListCache(pattern string) (adminsdk.CacheList, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return adminsdk.CacheList{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	list := adminsdk.CacheList{Entries: []adminsdk.CacheEntry{}}
	for key, item := range s.cache {
		if !item.ExpiresAt.IsZero() && !now.Before(item.ExpiresAt) {
			delete(s.cache, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		list.Entries = append(list.Entries, adminsdk.CacheEntry{
			Key:   key,
			Value: item.Value,
			TTL:   ttlFor(item, now),
		})
	}
	sort.Slice(list.Entries, func(i, j int) bool {
		return list.Entries[i].Key < list.Entries[j].Key
	})
	list.TotalKeys = len(list.Entries)
	return list, nil
}

// DeleteCache removes one key.
func (s *Service) DeleteCache(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache[key]; !ok {
		return ErrKeyNotFound
	}
	delete(s.cache, key)
	return nil
}

// FlushCache removes every key and reports how many were dropped.
func (s *Service) FlushCache() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.cache)
	s.cache = make(map[string]cacheItem)
	return n
}

func ttlFor(item cacheItem, now time.Time) int64 {
	if item.ExpiresAt.IsZero() {
		return adminsdk.TTLNoExpiry
	}
	return int64(math.Ceil(item.ExpiresAt.Sub(now).Seconds()))
}
