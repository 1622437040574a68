package runstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/akatz-ai/stepgraph/internal/config"
	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// newRedisStore runs against an in-process server, or against a live one
// when STEPGRAPH_REDIS_ADDR is set (e.g. localhost:6379). The returned
// server is nil in live mode.
func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	var mr *miniredis.Miniredis
	addr := os.Getenv("STEPGRAPH_REDIS_ADDR")
	if addr == "" {
		mr = miniredis.RunT(t)
		addr = mr.Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prefix := "stepgraph-test-" + uuid.NewString()[:8]
	store, err := DialRedis(ctx, addr, "", 0, prefix)
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	t.Cleanup(func() {
		runs, _ := store.List(context.Background(), Filter{})
		for _, r := range runs {
			store.Delete(context.Background(), r.RunID)
		}
		store.Close()
	})
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	old := newRun("run-old", "review", types.RunStatusSucceeded, 0)
	recent := newRun("run-new", "deploy", types.RunStatusRunning, time.Minute)

	for _, r := range []*types.WorkflowResult{old, recent} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(%s): %v", r.RunID, err)
		}
	}
	if err := store.Create(ctx, old); err == nil {
		t.Error("duplicate Create should fail")
	}

	recent.Status = types.RunStatusFailed
	if err := store.Save(ctx, recent); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "run-new")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.RunStatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if out, _ := got.Output("a"); out != "hello" {
		t.Errorf("output a = %q", out)
	}

	list, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].RunID != "run-new" {
		t.Errorf("List order wrong: %v", list)
	}

	if err := store.Delete(ctx, "run-old"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "run-old"); !serrors.HasCode(err, serrors.CodeRunNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := store.Delete(ctx, "run-old"); !serrors.HasCode(err, serrors.CodeRunNotFound) {
		t.Errorf("second Delete: %v", err)
	}
}

func TestRedisStore_SaveIndexesNewRun(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	run := newRun("run-saved", "review", types.RunStatusRunning, 0)
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if mr != nil {
		members, err := mr.ZMembers(store.indexKey())
		if err != nil {
			t.Fatalf("ZMembers: %v", err)
		}
		if len(members) != 1 || members[0] != "run-saved" {
			t.Errorf("index = %v", members)
		}
	}

	list, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].RunID != "run-saved" {
		t.Errorf("List = %v", list)
	}
}

func TestRedisStore_ListFilters(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	runs := []*types.WorkflowResult{
		newRun("run-1", "review", types.RunStatusSucceeded, 0),
		newRun("run-2", "review", types.RunStatusFailed, time.Minute),
		newRun("run-3", "deploy", types.RunStatusFailed, 2*time.Minute),
		newRun("run-4", "review", types.RunStatusSucceeded, 3*time.Minute),
	}
	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(%s): %v", r.RunID, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"run-4", "run-3", "run-2", "run-1"}},
		{"by workflow", Filter{Workflow: "review"}, []string{"run-4", "run-2", "run-1"}},
		{"by status", Filter{Status: types.RunStatusFailed}, []string{"run-3", "run-2"}},
		{"both", Filter{Workflow: "review", Status: types.RunStatusSucceeded}, []string{"run-4", "run-1"}},
		{"limit", Filter{Limit: 2}, []string{"run-4", "run-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []string
			for _, r := range list {
				got = append(got, r.RunID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestRedisStore_ListSkipsDanglingIndexEntries(t *testing.T) {
	store, mr := newRedisStore(t)
	if mr == nil {
		t.Skip("needs the in-process server")
	}
	ctx := context.Background()

	for _, id := range []string{"run-kept", "run-gone"} {
		if err := store.Create(ctx, newRun(id, "review", types.RunStatusSucceeded, 0)); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	mr.Del(store.key("run-gone"))
	if err := mr.Set(store.key("run-bad"), "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := mr.ZAdd(store.indexKey(), 1, "run-bad"); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].RunID != "run-kept" {
		t.Errorf("List = %v", list)
	}
}

func TestOpen_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Backend = config.StoreBackendRedis
	cfg.Store.RedisAddr = mr.Addr()

	store, err := Open(context.Background(), cfg, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*RedisStore); !ok {
		t.Fatalf("Open returned %T", store)
	}

	run := newRun("run-opened", "review", types.RunStatusSucceeded, 0)
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !mr.Exists("stepgraph:run:run-opened") {
		t.Error("run not stored under the configured prefix")
	}
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Backend = config.StoreBackendRedis
	cfg.Store.RedisAddr = addr

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Open(ctx, cfg, t.TempDir()); err == nil {
		t.Error("expected connection error")
	}
}
