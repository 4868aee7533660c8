package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/memory"
	"github.com/xraph/greenscore/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestClosed(t *testing.T) {
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	noop := func(store.Tx) error { return nil }

	if err := s.Update(ctx, noop); !errors.Is(err, greenscore.ErrStoreClosed) {
		t.Errorf("Update: got %v", err)
	}
	if err := s.View(ctx, noop); !errors.Is(err, greenscore.ErrStoreClosed) {
		t.Errorf("View: got %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, greenscore.ErrStoreClosed) {
		t.Errorf("Ping: got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := memory.New().Update(ctx, func(store.Tx) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
