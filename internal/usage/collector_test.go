package usage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/spool"
)

type fakeLookup struct {
	spools map[int64]*spool.Spool
	calls  int
}

func (f *fakeLookup) Get(_ context.Context, id int64) (*spool.Spool, error) {
	f.calls++
	sp, ok := f.spools[id]
	if !ok {
		return nil, spool.ErrNotFound
	}
	return sp, nil
}

func weightUpdated(tool int, id int64, name string, grams, length float64) events.Event {
	return events.Event{
		Topic:            events.TopicSpoolWeightUpdated,
		Time:             time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SessionID:        "session-1",
		Tool:             &tool,
		SpoolID:          id,
		DisplayName:      name,
		ConsumedGrams:    grams,
		ConsumedLengthMM: length,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCollectorAggregatesPerSpool(t *testing.T) {
	lookup := &fakeLookup{spools: map[int64]*spool.Spool{
		1: {ID: 1, Cost: spool.Ptr(20.0), CostUnit: "EUR", TotalWeight: spool.Ptr(1000.0)},
		2: {ID: 2},
	}}
	c := NewCollector(lookup, zerolog.Nop())
	ctx := context.Background()

	c.Observe(ctx, weightUpdated(0, 1, "PLA Black", 10, 3300))
	c.Observe(ctx, weightUpdated(0, 1, "PLA Black", 5, 1650))
	c.Observe(ctx, weightUpdated(1, 2, "PETG Blue", 2, 660))
	c.Observe(ctx, weightUpdated(2, 1, "PLA Black", 1, 330))

	r := c.Report()
	if r.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", r.SessionID)
	}
	if len(r.Spools) != 2 {
		t.Fatalf("len(Spools) = %d, want 2", len(r.Spools))
	}

	first := r.Spools[0]
	if first.SpoolID != 1 || !approx(first.Grams, 16) || !approx(first.LengthMM, 5280) {
		t.Errorf("Spools[0] = %+v, want spool 1 with 16g over 5280mm", first)
	}
	if !first.CostKnown || !approx(first.Cost, 0.32) || first.CostUnit != "EUR" {
		t.Errorf("Spools[0] cost = %v %v %s, want 0.32 EUR", first.CostKnown, first.Cost, first.CostUnit)
	}
	if len(first.Tools) != 2 || first.Tools[0] != 0 || first.Tools[1] != 2 {
		t.Errorf("Spools[0].Tools = %v, want [0 2]", first.Tools)
	}

	if r.Spools[1].CostKnown {
		t.Error("spool without a price should have no cost")
	}
	if lookup.calls != 2 {
		t.Errorf("lookup calls = %d, want 2 (cached per spool)", lookup.calls)
	}

	if !approx(r.TotalGrams(), 18) {
		t.Errorf("TotalGrams() = %v, want 18", r.TotalGrams())
	}
	if !approx(r.TotalCost()["EUR"], 0.32) {
		t.Errorf("TotalCost() = %v", r.TotalCost())
	}
}

func TestCollectorSessionReset(t *testing.T) {
	c := NewCollector(nil, zerolog.Nop())
	ctx := context.Background()

	c.Observe(ctx, weightUpdated(0, 1, "PLA", 10, 3300))
	c.Observe(ctx, events.Event{Topic: events.TopicSessionReset, SessionID: "session-2"})

	r := c.Report()
	if r.SessionID != "session-2" {
		t.Errorf("SessionID = %q, want session-2", r.SessionID)
	}
	if len(r.Spools) != 0 {
		t.Errorf("Spools = %+v, want none after reset", r.Spools)
	}
}

func TestCollectorFlags(t *testing.T) {
	c := NewCollector(nil, zerolog.Nop())
	ctx := context.Background()

	c.Observe(ctx, weightUpdated(0, 1, "PLA", 10, 3300))
	c.Observe(ctx, events.Event{Topic: events.TopicSpoolLow, SpoolID: 1})
	c.Observe(ctx, events.Event{Topic: events.TopicSpoolEmpty, SpoolID: 1})

	u := c.Report().Spools[0]
	if !u.Low || !u.Empty {
		t.Errorf("Low, Empty = %v, %v, want both set", u.Low, u.Empty)
	}
}

func TestCollectorLookupError(t *testing.T) {
	lookup := &fakeLookup{spools: map[int64]*spool.Spool{}}
	c := NewCollector(lookup, zerolog.Nop())

	c.Observe(context.Background(), weightUpdated(0, 9, "gone", 3, 990))

	u := c.Report().Spools[0]
	if u.CostKnown {
		t.Error("CostKnown should be false when the spool cannot be loaded")
	}
	if !approx(u.Grams, 3) {
		t.Errorf("Grams = %v, want 3", u.Grams)
	}
}

func TestCollectorRun(t *testing.T) {
	c := NewCollector(nil, zerolog.Nop())
	evts := make(chan events.Event, 2)
	evts <- weightUpdated(0, 1, "PLA", 4, 1320)
	close(evts)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), evts)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after the channel closed")
	}

	if got := c.Report().TotalGrams(); !approx(got, 4) {
		t.Errorf("TotalGrams() = %v, want 4", got)
	}
}
