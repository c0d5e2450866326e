package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type recorder struct {
	name  string
	order *[]string
	err   error
}

func (r *recorder) Shutdown(context.Context) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdownReverseOrder(t *testing.T) {
	c := NewCoordinator(testLogger())
	var order []string
	c.Register("first", &recorder{name: "first", order: &order})
	c.Register("second", &recorder{name: "second", order: &order})
	c.Register("third", &recorder{name: "third", order: &order})

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(order) != 3 || order[0] != "third" || order[1] != "second" || order[2] != "first" {
		t.Errorf("shutdown order = %v, want [third second first]", order)
	}
	if c.ComponentCount() != 3 {
		t.Errorf("ComponentCount = %d, want 3", c.ComponentCount())
	}
}

func TestShutdownContinuesPastError(t *testing.T) {
	c := NewCoordinator(testLogger())
	var order []string
	c.Register("a", &recorder{name: "a", order: &order})
	c.Register("b", &recorder{name: "b", order: &order, err: errors.New("b stuck")})

	err := c.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected error from failing component")
	}
	// a still shuts down after b fails.
	if len(order) != 2 || order[1] != "a" {
		t.Errorf("shutdown order = %v, want b then a", order)
	}
}

func TestShutdownDeadline(t *testing.T) {
	c := NewCoordinator(testLogger())
	var order []string
	c.Register("late", &recorder{name: "late", order: &order})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if err := c.Shutdown(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
	if len(order) != 0 {
		t.Errorf("components ran past the deadline: %v", order)
	}
}
