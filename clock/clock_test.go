package clock_test

import (
	"testing"
	"time"

	"github.com/xraph/greenscore/clock"
)

func TestManual(t *testing.T) {
	c := clock.NewManual(1000)
	if got := c.Timestamp(); got != 1000 {
		t.Fatalf("Timestamp: got %d, want 1000", got)
	}
	c.Advance(90 * time.Second)
	if got := c.Timestamp(); got != 1090 {
		t.Errorf("after Advance: got %d, want 1090", got)
	}
	c.Set(5)
	if got := c.Timestamp(); got != 5 {
		t.Errorf("after Set: got %d, want 5", got)
	}
}

func TestSystem(t *testing.T) {
	before := uint64(time.Now().Unix())
	got := clock.System{}.Timestamp()
	if got < before {
		t.Errorf("System clock went backwards: %d < %d", got, before)
	}
}

func TestFunc(t *testing.T) {
	var c clock.Clock = clock.Func(func() uint64 { return 42 })
	if c.Timestamp() != 42 {
		t.Error("Func did not return its value")
	}
}
