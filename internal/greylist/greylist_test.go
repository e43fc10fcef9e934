package greylist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestGreylist(t *testing.T) (*Greylist, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	srv := miniredis.RunT(t)
	g := New(srv.Addr(), 5*time.Minute, 24*time.Hour)
	t.Cleanup(func() { g.Close() })

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }
	return g, srv, &clock
}

func TestCheckDefersFirstAttempt(t *testing.T) {
	g, _, _ := newTestGreylist(t)

	deferred, err := g.Check(context.Background(), "192.168.0.1", "<from@example.org>", "<to@example.org>")
	if err != nil {
		t.Fatal(err)
	}
	if !deferred {
		t.Fatal("first attempt not deferred")
	}
}

func TestCheckDefersRetryWithinDelay(t *testing.T) {
	g, _, clock := newTestGreylist(t)
	ctx := context.Background()

	if _, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>"); err != nil {
		t.Fatal(err)
	}

	*clock = clock.Add(time.Minute)
	deferred, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>")
	if err != nil {
		t.Fatal(err)
	}
	if !deferred {
		t.Fatal("retry within delay not deferred")
	}
}

func TestCheckPassesRetryAfterDelay(t *testing.T) {
	g, _, clock := newTestGreylist(t)
	ctx := context.Background()

	if _, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>"); err != nil {
		t.Fatal(err)
	}

	*clock = clock.Add(6 * time.Minute)
	deferred, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>")
	if err != nil {
		t.Fatal(err)
	}
	if deferred {
		t.Fatal("retry after delay still deferred")
	}
}

func TestCheckTuplesAreIndependent(t *testing.T) {
	g, _, clock := newTestGreylist(t)
	ctx := context.Background()

	if _, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>"); err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(6 * time.Minute)

	// Same client, different recipient: a fresh tuple, deferred again.
	deferred, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<c@example.org>")
	if err != nil {
		t.Fatal(err)
	}
	if !deferred {
		t.Fatal("new tuple not deferred")
	}
}

func TestCheckTupleExpiresAfterWindow(t *testing.T) {
	g, srv, _ := newTestGreylist(t)
	ctx := context.Background()

	if _, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>"); err != nil {
		t.Fatal(err)
	}

	srv.FastForward(25 * time.Hour)
	deferred, err := g.Check(ctx, "192.168.0.1", "<a@example.org>", "<b@example.org>")
	if err != nil {
		t.Fatal(err)
	}
	if !deferred {
		t.Fatal("expired tuple not deferred again")
	}
}
