//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
)

type recLocker struct {
	mu     sync.Mutex
	events []string
	failOn string
}

func (l *recLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key == l.failOn {
		return "", domain.ErrLockNotAcquired
	}
	l.events = append(l.events, "lock "+key)
	return "tok-" + key, nil
}

func (l *recLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return l.Lock(ctx, key, ttl)
}

func (l *recLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		l.events = append(l.events, "unlock with dead ctx")
	}
	l.events = append(l.events, "unlock "+key)
	return nil
}

func TestWithKeys_OrderAndRelease(t *testing.T) {
	l := &recLocker{}
	ctx, cancel := context.WithCancel(context.Background())

	err := withKeys(ctx, l, LockPolicy{}, []string{"a", "b"}, func() error {
		cancel()
		return nil
	})

	if err != nil {
		t.Fatalf("withKeys: %v", err)
	}
	want := "lock a|lock b|unlock b|unlock a"
	if got := strings.Join(l.events, "|"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestWithKeys_PartialAcquireIsReleased(t *testing.T) {
	l := &recLocker{failOn: "b"}
	called := false

	err := withKeys(context.Background(), l, LockPolicy{}, []string{"a", "b"}, func() error {
		called = true
		return nil
	})

	if !errors.Is(err, domain.ErrLockNotAcquired) || called {
		t.Fatalf("expected lock failure without running fn, got %v (called=%v)", err, called)
	}
	if got := strings.Join(l.events, "|"); got != "lock a|unlock a" {
		t.Errorf("unexpected events %q", got)
	}
}

func TestGenerateVoucherCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		code, err := generateVoucherCode()
		if err != nil {
			t.Fatalf("generateVoucherCode: %v", err)
		}
		if _, err := model.NormalizeVoucherCode(code); err != nil {
			t.Fatalf("generated code %q does not normalize: %v", code, err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}
