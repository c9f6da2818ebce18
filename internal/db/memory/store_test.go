package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/voxmap/internal/db"
)

func TestKV_GetMissing(t *testing.T) {
	s := NewStore()
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKV_TTLExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestSetNX_OnlyFirstWins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetNX(ctx, "label", []byte("x"), 0)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
}

func TestIncrBy_Sequential(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrBy(ctx, "seq", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestIncrBy_WrongType(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.HSet(ctx, "h", map[string]string{"a": "b"})
	_, err := s.IncrBy(ctx, "h", 1)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestExpire_NX(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "k", []byte("v"), time.Hour)
	_ = s.Expire(ctx, "k", time.Second, true)
	now = now.Add(2 * time.Second)
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Error("EXPIRE NX must not shorten an existing TTL")
	}
	_ = s.Expire(ctx, "k", time.Second, false)
	now = now.Add(2 * time.Second)
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("expected key to expire")
	}
}

func TestHash_RoundTripIsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.HSet(ctx, "h", map[string]string{"a": "1"})
	m, _ := s.HGetAll(ctx, "h")
	m["a"] = "mutated"
	again, _ := s.HGetAll(ctx, "h")
	if again["a"] != "1" {
		t.Errorf("store leaked internal map: %v", again)
	}
	multi, err := s.HGetAllMulti(ctx, []string{"h", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(multi) != 2 || len(multi[1]) != 0 {
		t.Errorf("unexpected multi result: %v", multi)
	}
}

func TestSet_AddRemove(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SAdd(ctx, "s", "b", "a", "b")
	got, _ := s.SMembers(ctx, "s")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected members: %v", got)
	}
	_ = s.SRem(ctx, "s", "a", "b")
	if ok, _ := s.Exists(ctx, "s"); ok {
		t.Error("empty set should be removed")
	}
}

func TestList_PushTrimRange(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.RPush(ctx, "l", "c")
	_ = s.LPush(ctx, "l", "b", "a")
	all, _ := s.LRange(ctx, "l", 0, -1)
	if len(all) != 3 || all[0] != "a" || all[1] != "b" || all[2] != "c" {
		t.Fatalf("unexpected list: %v", all)
	}
	_ = s.LTrim(ctx, "l", 0, 1)
	all, _ = s.LRange(ctx, "l", 0, -1)
	if len(all) != 2 || all[1] != "b" {
		t.Fatalf("unexpected trimmed list: %v", all)
	}
	empty, _ := s.LRange(ctx, "l", 5, 10)
	if len(empty) != 0 {
		t.Errorf("expected empty range, got %v", empty)
	}
}
