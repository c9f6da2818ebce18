package graph

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/voxmap/internal/db/memory"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
)

// faultyStore wraps the in-memory store and lets tests inject failures.
type faultyStore struct {
	*memory.Store
	hsetFn  func(ctx context.Context, key string, fields map[string]string) error
	setnxFn func(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

func (f *faultyStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if f.hsetFn != nil {
		return f.hsetFn(ctx, key, fields)
	}
	return f.Store.HSet(ctx, key, fields)
}

func (f *faultyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.setnxFn != nil {
		return f.setnxFn(ctx, key, value, ttl)
	}
	return f.Store.SetNX(ctx, key, value, ttl)
}

func newTestRepo(t *testing.T) (*Repo, *faultyStore) {
	t.Helper()
	fs := &faultyStore{Store: memory.NewStore()}
	return New(fs), fs
}

func seedMap(t *testing.T, r *Repo) (mindmap.Map, mindmap.Node) {
	t.Helper()
	ctx := context.Background()
	m, err := mindmap.NewMap("m1", "Machine Learning", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, err := mindmap.NewRoot("root", m.ID, m.Title, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RootID = root.ID()
	if err := r.CreateMap(ctx, m); err != nil {
		t.Fatalf("create map: %v", err)
	}
	if err := r.CreateNode(ctx, &root); err != nil {
		t.Fatalf("create root: %v", err)
	}
	return m, root
}
