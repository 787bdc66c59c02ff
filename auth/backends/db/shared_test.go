package db

import (
	"errors"
	"testing"
)

type fakeHandle struct {
	closed bool
}

func TestHandleRegistry_SharesUntilLastRelease(t *testing.T) {
	registry := newHandleRegistry(func(h *fakeHandle) error {
		h.closed = true
		return nil
	})

	opens := 0
	open := func() (*fakeHandle, error) {
		opens++
		return &fakeHandle{}, nil
	}

	first, err := registry.acquire("a", open)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	second, err := registry.acquire("a", open)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same handle for the same key")
	}
	if opens != 1 {
		t.Errorf("Expected 1 open, got %d", opens)
	}

	if err := registry.release("a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if first.closed {
		t.Error("Expected handle to stay open while referenced")
	}

	if err := registry.release("a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !first.closed {
		t.Error("Expected handle to close after the last release")
	}
	if refs := registry.refs("a"); refs != 0 {
		t.Errorf("Expected 0 references, got %d", refs)
	}

	third, err := registry.acquire("a", open)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if third == first || opens != 2 {
		t.Errorf("Expected a fresh handle after release, opens=%d", opens)
	}
}

func TestHandleRegistry_KeysAreIndependent(t *testing.T) {
	registry := newHandleRegistry(func(*fakeHandle) error { return nil })
	open := func() (*fakeHandle, error) { return &fakeHandle{}, nil }

	a, _ := registry.acquire("a", open)
	b, _ := registry.acquire("b", open)

	if a == b {
		t.Error("Expected separate handles for separate keys")
	}
	if registry.opened() != 2 {
		t.Errorf("Expected 2 opens, got %d", registry.opened())
	}
}

func TestHandleRegistry_OpenErrorIsNotCached(t *testing.T) {
	registry := newHandleRegistry(func(*fakeHandle) error { return nil })
	openErr := errors.New("locked")

	if _, err := registry.acquire("a", func() (*fakeHandle, error) { return nil, openErr }); !errors.Is(err, openErr) {
		t.Fatalf("Expected open error, got %v", err)
	}
	if refs := registry.refs("a"); refs != 0 {
		t.Errorf("Expected no reference after a failed open, got %d", refs)
	}

	if _, err := registry.acquire("a", func() (*fakeHandle, error) { return &fakeHandle{}, nil }); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}

func TestHandleRegistry_ReleaseUnknownKey(t *testing.T) {
	registry := newHandleRegistry(func(*fakeHandle) error {
		t.Error("close should not be called")
		return nil
	})

	if err := registry.release("missing"); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
