// Package memory implements db.Store in process memory. It backs tests and
// single-instance deployments that run without Redis or Valkey.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/voxmap/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var errWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

type entry struct {
	str    []byte
	hash   map[string]string
	set    map[string]struct{}
	list   []string
	expiry time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

// Store is a thread-safe in-memory db.Store. All operations take a single lock,
// which makes SetNX and IncrBy atomic in the same way the server commands are.
type Store struct {
	mu    sync.Mutex
	items map[string]*entry
	now   func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]*entry),
		now:   time.Now,
	}
}

// NewStoreWithClock creates a store whose TTLs are evaluated against now.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close drops all data.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*entry)
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// lookup returns a live entry or nil. Caller holds s.mu.
func (s *Store) lookup(key string) *entry {
	e, ok := s.items[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.items, key)
		return nil
	}
	return e
}

// --- hash ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hset(key, fields)
}

func (s *Store) hset(key string, fields map[string]string) error {
	e := s.lookup(key)
	if e == nil {
		e = &entry{hash: make(map[string]string, len(fields))}
		s.items[key] = e
	}
	if e.hash == nil {
		return &db.Error{Op: db.OpHSet, Err: errWrongType}
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

// HSetMulti stores multiple hashes.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if err := s.hset(item.Key, item.Fields); err != nil {
			return err
		}
	}
	return nil
}

// HGetAll returns a copy of all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hgetall(key)
}

func (s *Store) hgetall(key string) (map[string]string, error) {
	e := s.lookup(key)
	if e == nil {
		return map[string]string{}, nil
	}
	if e.hash == nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: errWrongType}
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

// HGetAllMulti fetches multiple hashes.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m, err := s.hgetall(key)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Del deletes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key) != nil, nil
}

// --- kv ---

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return nil, db.ErrKeyNotFound
	}
	if e.str == nil {
		return nil, &db.Error{Op: db.OpGet, Err: errWrongType}
	}
	return append([]byte(nil), e.str...), nil
}

// Set stores a value, clearing any previous TTL.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &entry{str: append([]byte{}, value...)}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &entry{str: append([]byte{}, value...), expiry: s.now().Add(ttl)}
	return nil
}

// SetNX stores value only if the key is absent.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookup(key) != nil {
		return false, nil
	}
	e := &entry{str: append([]byte{}, value...)}
	if ttl > 0 {
		e.expiry = s.now().Add(ttl)
	}
	s.items[key] = e
	return true, nil
}

// IncrBy atomically increments a counter. A missing key starts at zero.
func (s *Store) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		e = &entry{str: []byte("0")}
		s.items[key] = e
	}
	if e.str == nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: errWrongType}
	}
	cur, err := strconv.ParseInt(string(e.str), 10, 64)
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value is not an integer: %w", err)}
	}
	cur += val
	e.str = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// Expire sets TTL on a key. With nx the TTL is only set when the key has none.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if nx && !e.expiry.IsZero() {
		return nil
	}
	e.expiry = s.now().Add(ttl)
	return nil
}

// --- set ---

// SAdd adds members to a set.
func (s *Store) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		e = &entry{set: make(map[string]struct{}, len(members))}
		s.items[key] = e
	}
	if e.set == nil {
		return &db.Error{Op: db.OpSAdd, Err: errWrongType}
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

// SMembers returns all members of a set in unspecified order.
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return []string{}, nil
	}
	if e.set == nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: errWrongType}
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	return out, nil
}

// SRem removes members from a set. An emptied set is deleted.
func (s *Store) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if e.set == nil {
		return &db.Error{Op: db.OpSRem, Err: errWrongType}
	}
	for _, m := range members {
		delete(e.set, m)
	}
	if len(e.set) == 0 {
		delete(s.items, key)
	}
	return nil
}

// --- list ---

func (s *Store) listEntry(key, op string) (*entry, error) {
	e := s.lookup(key)
	if e == nil {
		e = &entry{list: []string{}}
		s.items[key] = e
	}
	if e.list == nil {
		return nil, &db.Error{Op: op, Err: errWrongType}
	}
	return e, nil
}

// RPush appends values to the tail of a list.
func (s *Store) RPush(_ context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.listEntry(key, db.OpRPush)
	if err != nil {
		return err
	}
	e.list = append(e.list, values...)
	return nil
}

// LPush prepends values one by one, so the last value ends up at the head.
func (s *Store) LPush(_ context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.listEntry(key, db.OpLPush)
	if err != nil {
		return err
	}
	head := make([]string, 0, len(values)+len(e.list))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, values[i])
	}
	e.list = append(head, e.list...)
	return nil
}

// LTrim keeps only the elements in [start, stop].
func (s *Store) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if e.list == nil {
		return &db.Error{Op: db.OpLTrim, Err: errWrongType}
	}
	lo, hi, ok := normalizeRange(start, stop, len(e.list))
	if !ok {
		delete(s.items, key)
		return nil
	}
	e.list = append([]string(nil), e.list[lo:hi]...)
	return nil
}

// LRange returns the elements in [start, stop].
func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key)
	if e == nil {
		return []string{}, nil
	}
	if e.list == nil {
		return nil, &db.Error{Op: db.OpLRange, Err: errWrongType}
	}
	lo, hi, ok := normalizeRange(start, stop, len(e.list))
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), e.list[lo:hi]...), nil
}

// normalizeRange converts inclusive Redis indices into a half-open slice range.
func normalizeRange(start, stop int64, n int) (lo, hi int, ok bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop) + 1, true
}
