package db

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/unclebandit/outreach-engine/internal/logging"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logging.Discard(), "ping", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := WithRetry(context.Background(), logging.Discard(), "ping", 2, time.Millisecond, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "ping:") {
		t.Errorf("expected operation name in error, got %q", err.Error())
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, logging.Discard(), "ping", 5, time.Second, func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("expected immediate cancel, got calls=%d err=%v", calls, err)
	}
}

func TestWithRetryRejectsZeroAttempts(t *testing.T) {
	if err := WithRetry(context.Background(), logging.Discard(), "ping", 0, time.Millisecond, func() error { return nil }); err == nil {
		t.Fatal("expected error for zero attempts")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) < 2 {
		t.Fatalf("expected embedded migrations, got %v", files)
	}
	for _, f := range files {
		body, _ := fs.ReadFile(migrations, f)
		if !strings.Contains(string(body), "-- +goose Up") {
			t.Errorf("%s is missing a goose Up marker", f)
		}
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), DefaultOptions(""), logging.Discard()); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
