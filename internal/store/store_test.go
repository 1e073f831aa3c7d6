package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func newBadger(t *testing.T) *Badger {
	t.Helper()
	s, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("create badger store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return s
}

func implementations(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"badger": newBadger(t),
		"redis":  newRedis(t),
	}
}

func TestStore_SetAndGet(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Set(ctx, "my-app:abc", []byte("<html>")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := s.Get(ctx, "my-app:abc")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != "<html>" {
				t.Errorf("expected <html>, got %s", got)
			}

			if err := s.Set(ctx, "my-app:abc", []byte("v2")); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "my-app:abc")
			if string(got) != "v2" {
				t.Errorf("expected v2, got %s", got)
			}
		})
	}
}

func TestStore_GetNotFound(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nothing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ListPushPrepends(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, v := range []string{"a", "b", "c"} {
				n, err := s.ListPush(ctx, "my-app", v)
				if err != nil {
					t.Fatalf("push %s: %v", v, err)
				}
				if n != int64(i+1) {
					t.Errorf("expected length %d, got %d", i+1, n)
				}
			}

			got, err := s.ListRange(ctx, "my-app", 0, -1)
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
				t.Errorf("unexpected list (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ListRange(t *testing.T) {
	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"head", 0, 1, []string{"e", "d"}},
		{"full window", 0, 3, []string{"e", "d", "c", "b"}},
		{"past end", 3, 10, []string{"b", "a"}},
		{"negative stop", 0, -2, []string{"e", "d", "c", "b"}},
		{"negative start", -2, -1, []string{"b", "a"}},
		{"empty window", 3, 1, nil},
		{"start past end", 7, 9, nil},
	}

	for name, s := range implementations(t) {
		ctx := context.Background()
		for _, v := range []string{"a", "b", "c", "d", "e"} {
			if _, err := s.ListPush(ctx, "my-app", v); err != nil {
				t.Fatalf("%s: push: %v", name, err)
			}
		}

		for _, tc := range tests {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				got, err := s.ListRange(ctx, "my-app", tc.start, tc.stop)
				if err != nil {
					t.Fatalf("range: %v", err)
				}
				if len(got) == 0 && len(tc.want) == 0 {
					return
				}
				if diff := cmp.Diff(tc.want, got); diff != "" {
					t.Errorf("unexpected range (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestStore_ListRangeMissingList(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.ListRange(context.Background(), "fresh", 0, 14)
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty list, got %v", got)
			}
		})
	}
}

func TestStore_ListTrim(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, v := range []string{"a", "b", "c", "d", "e"} {
				s.ListPush(ctx, "my-app", v)
			}

			if err := s.ListTrim(ctx, "my-app", 0, 2); err != nil {
				t.Fatalf("trim: %v", err)
			}

			got, _ := s.ListRange(ctx, "my-app", 0, -1)
			if diff := cmp.Diff([]string{"e", "d", "c"}, got); diff != "" {
				t.Errorf("unexpected list (-want +got):\n%s", diff)
			}

			// Trimming past the length keeps everything.
			if err := s.ListTrim(ctx, "my-app", 0, 14); err != nil {
				t.Fatalf("trim: %v", err)
			}
			got, _ = s.ListRange(ctx, "my-app", 0, -1)
			if len(got) != 3 {
				t.Errorf("expected 3 entries, got %v", got)
			}

			if err := s.ListTrim(ctx, "my-app", 5, 2); err != nil {
				t.Fatalf("trim to empty: %v", err)
			}
			got, _ = s.ListRange(ctx, "my-app", 0, -1)
			if len(got) != 0 {
				t.Errorf("expected empty list, got %v", got)
			}
		})
	}
}

func TestStore_ListsAndValuesAreSeparate(t *testing.T) {
	for name, s := range map[string]Store{"memory": NewMemory(), "badger": newBadger(t)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s.ListPush(ctx, "my-app", "abc")

			if _, err := s.Get(ctx, "my-app"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected list to be invisible to Get, got %v", err)
			}
		})
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemory()
	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := s.ListPush(ctx, "l", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Set(ctx, "my-app:abc", []byte("index"))
	s.ListPush(ctx, "my-app", "abc")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "my-app:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "index" {
		t.Errorf("expected index, got %s", got)
	}
	keys, _ := s.ListRange(ctx, "my-app", 0, -1)
	if diff := cmp.Diff([]string{"abc"}, keys); diff != "" {
		t.Errorf("unexpected list (-want +got):\n%s", diff)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Connection{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", s)
	}

	s, err = Open(Connection{Driver: DriverBadger, Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	if b, ok := s.(*Badger); !ok {
		t.Errorf("expected *Badger, got %T", s)
	} else {
		b.Close()
	}

	s, err = Open(Connection{Host: "127.0.0.1", Port: 6390})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	if r, ok := s.(*Redis); !ok {
		t.Errorf("expected *Redis, got %T", s)
	} else {
		r.Close()
	}

	if _, err := Open(Connection{Driver: DriverBadger}); err == nil {
		t.Error("expected error for badger without path")
	}
	if _, err := Open(Connection{Driver: "etcd"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestConnection_Addr(t *testing.T) {
	if got := (Connection{}).Addr(); got != "localhost:6379" {
		t.Errorf("expected localhost:6379, got %s", got)
	}
	if got := (Connection{Host: "cache.internal", Port: 6380}).Addr(); got != "cache.internal:6380" {
		t.Errorf("expected cache.internal:6380, got %s", got)
	}
}

func TestStore_ConcurrentListPush(t *testing.T) {
	const n = 50

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := s.ListPush(ctx, "my-app:versions", fmt.Sprintf("v%02d", i)); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Errorf("push: %v", err)
			}

			got, err := s.ListRange(ctx, "my-app:versions", 0, -1)
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			sort.Strings(got)
			want := make([]string, n)
			for i := range want {
				want[i] = fmt.Sprintf("v%02d", i)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("unexpected list (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ConcurrentPushAndTrim(t *testing.T) {
	const n = 40

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, 2*n)
			for i := 0; i < n; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					if _, err := s.ListPush(ctx, "my-app:versions", fmt.Sprintf("v%02d", i)); err != nil {
						errs <- err
					}
				}(i)
				go func() {
					defer wg.Done()
					if err := s.ListTrim(ctx, "my-app:versions", 0, 4); err != nil {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				t.Errorf("push or trim: %v", err)
			}

			if err := s.ListTrim(ctx, "my-app:versions", 0, 4); err != nil {
				t.Fatalf("trim: %v", err)
			}
			got, err := s.ListRange(ctx, "my-app:versions", 0, -1)
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			if len(got) != 5 {
				t.Errorf("expected 5 entries after trim, got %d: %v", len(got), got)
			}
		})
	}
}
