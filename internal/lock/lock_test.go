package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "test", ttl), mr
}

func TestTryAcquireIsExclusive(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "sync")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	if _, ok, err := l.TryAcquire(ctx, "sync"); err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}

	release()

	release2, ok, err := l.TryAcquire(ctx, "sync")
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	release2()
}

func TestLeaseExpires(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	if _, ok, _ := l.TryAcquire(ctx, "followup"); !ok {
		t.Fatal("expected to acquire")
	}
	mr.FastForward(2 * time.Second)

	if _, ok, err := l.TryAcquire(ctx, "followup"); err != nil || !ok {
		t.Fatalf("expected expired lease to be re-acquirable: ok=%v err=%v", ok, err)
	}
}

func TestStaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)
	ctx := context.Background()

	staleRelease, ok, _ := l.TryAcquire(ctx, "sync")
	if !ok {
		t.Fatal("expected to acquire")
	}
	mr.FastForward(2 * time.Second)

	if _, ok, _ := l.TryAcquire(ctx, "sync"); !ok {
		t.Fatal("expected new holder to acquire")
	}

	staleRelease()

	if !mr.Exists("test:lock:sync") {
		t.Fatal("stale release removed the new holder's lease")
	}
}

func TestLeaseIsExtendedWhileHeld(t *testing.T) {
	l, mr := newTestLocker(t, 300*time.Millisecond)
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "followup")
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// miniredis only ages keys on FastForward; real time lets the renewal run
	mr.FastForward(250 * time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	mr.FastForward(250 * time.Millisecond)

	if !mr.Exists("test:lock:followup") {
		t.Fatal("lease expired while still held")
	}
	if _, ok, _ := l.TryAcquire(ctx, "followup"); ok {
		t.Fatal("extended lease should still be exclusive")
	}

	release()
	release()
	if mr.Exists("test:lock:followup") {
		t.Error("lease should be gone after release")
	}
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "contact-pass")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "contact-pass"); ok {
		t.Fatal("second acquire should fail while held")
	}
	if other, ok, _ := l.TryAcquire(ctx, "other"); !ok {
		t.Fatal("different names are independent")
	} else {
		other()
	}

	release()
	release2, ok, err := l.TryAcquire(ctx, "contact-pass")
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	release()
	if _, ok, _ := l.TryAcquire(ctx, "contact-pass"); ok {
		t.Fatal("a stale release must not free the current holder")
	}
	release2()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := l.TryAcquire(cancelled, "contact-pass"); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
