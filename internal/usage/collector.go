// Package usage builds per-session filament usage reports from spool
// events.
package usage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/spool"
)

// SpoolLookup resolves spools for pricing.
type SpoolLookup interface {
	Get(ctx context.Context, id int64) (*spool.Spool, error)
}

// Collector aggregates weight updates per spool until the session resets.
type Collector struct {
	lookup SpoolLookup
	logger zerolog.Logger

	mu        sync.RWMutex
	sessionID string
	started   time.Time
	spools    map[int64]*SpoolUsage
	prices    map[int64]*spool.Spool
}

// NewCollector creates a collector. lookup may be nil, in which case no
// costs are computed.
func NewCollector(lookup SpoolLookup, logger zerolog.Logger) *Collector {
	return &Collector{
		lookup: lookup,
		logger: logger.With().Str("component", "usage").Logger(),
		spools: make(map[int64]*SpoolUsage),
		prices: make(map[int64]*spool.Spool),
	}
}

// Run consumes events until the channel closes. Events already queued when
// the subscription ends are still folded in.
func (c *Collector) Run(ctx context.Context, evts <-chan events.Event) {
	for e := range evts {
		c.Observe(ctx, e)
	}
}

// Observe folds one event into the report.
func (c *Collector) Observe(ctx context.Context, e events.Event) {
	switch e.Topic {
	case events.TopicSessionReset:
		c.mu.Lock()
		c.sessionID = e.SessionID
		c.started = e.Time
		c.spools = make(map[int64]*SpoolUsage)
		c.mu.Unlock()

	case events.TopicSpoolWeightUpdated:
		price := c.price(ctx, e.SpoolID)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sessionID == "" {
			c.sessionID = e.SessionID
			c.started = e.Time
		}
		u := c.entry(e)
		u.Grams += e.ConsumedGrams
		u.LengthMM += e.ConsumedLengthMM
		u.Remaining = e.RemainingWeight
		u.LastUsed = e.Time
		if e.Tool != nil && !slices.Contains(u.Tools, *e.Tool) {
			u.Tools = append(u.Tools, *e.Tool)
			slices.Sort(u.Tools)
		}
		if price != nil {
			if cost, ok := price.CostForWeight(e.ConsumedGrams); ok {
				u.Cost += cost
				u.CostKnown = true
				u.CostUnit = price.CostUnit
			}
		}

	case events.TopicSpoolLow:
		c.mu.Lock()
		c.entry(e).Low = true
		c.mu.Unlock()

	case events.TopicSpoolEmpty:
		c.mu.Lock()
		c.entry(e).Empty = true
		c.mu.Unlock()

	case events.TopicSpoolDeleted:
		c.mu.Lock()
		delete(c.prices, e.SpoolID)
		c.mu.Unlock()
	}
}

// Report returns the current session's usage, heaviest consumer first.
func (c *Collector) Report() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r := Report{SessionID: c.sessionID, Started: c.started}
	for _, u := range c.spools {
		cp := *u
		cp.Tools = slices.Clone(u.Tools)
		r.Spools = append(r.Spools, cp)
	}
	sort.Slice(r.Spools, func(i, j int) bool {
		if r.Spools[i].Grams != r.Spools[j].Grams {
			return r.Spools[i].Grams > r.Spools[j].Grams
		}
		return r.Spools[i].SpoolID < r.Spools[j].SpoolID
	})
	return r
}

// entry must be called with mu held.
func (c *Collector) entry(e events.Event) *SpoolUsage {
	u, ok := c.spools[e.SpoolID]
	if !ok {
		u = &SpoolUsage{SpoolID: e.SpoolID}
		c.spools[e.SpoolID] = u
	}
	if e.DisplayName != "" {
		u.DisplayName = e.DisplayName
	}
	return u
}

// price returns the cached spool used for pricing, loading it on first use.
func (c *Collector) price(ctx context.Context, id int64) *spool.Spool {
	if c.lookup == nil {
		return nil
	}

	c.mu.RLock()
	sp, ok := c.prices[id]
	c.mu.RUnlock()
	if ok {
		return sp
	}

	sp, err := c.lookup.Get(ctx, id)
	if err != nil {
		c.logger.Debug().Err(err).Int64("spool", id).Msg("no price for spool")
		sp = nil
	}

	c.mu.Lock()
	c.prices[id] = sp
	c.mu.Unlock()
	return sp
}
