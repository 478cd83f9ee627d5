package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Committer persists pending consumption.
type Committer interface {
	Commit(ctx context.Context) error
}

// Flusher commits pending consumption on a fixed interval so that a crash
// or power loss mid-print loses at most one interval of accounting.
type Flusher struct {
	committer Committer
	interval  time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	flushes int
	failed  int
}

// NewFlusher creates a flusher. A non-positive interval makes Start a no-op.
func NewFlusher(c Committer, interval time.Duration, logger zerolog.Logger) *Flusher {
	return &Flusher{
		committer: c,
		interval:  interval,
		logger:    logger.With().Str("component", "flusher").Logger(),
	}
}

// Start starts the flush loop
func (f *Flusher) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interval <= 0 || f.stopCh != nil {
		return
	}
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	go f.loop(ctx, f.stopCh, f.doneCh)
}

// Stop stops the loop and runs a final commit.
func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	stopCh, doneCh := f.stopCh, f.doneCh
	f.stopCh, f.doneCh = nil, nil
	f.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	return f.committer.Commit(ctx)
}

// Stats returns the number of interval flushes run and how many failed.
func (f *Flusher) Stats() (flushes, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes, f.failed
}

func (f *Flusher) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

func (f *Flusher) flush(ctx context.Context) {
	err := f.committer.Commit(ctx)

	f.mu.Lock()
	f.flushes++
	if err != nil {
		f.failed++
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn().Err(err).Msg("periodic commit failed")
		return
	}
	f.logger.Trace().Msg("periodic commit")
}
