package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Tailer follows a growing command log and feeds each new complete line to
// a sink. A truncated or replaced log is read again from the start.
type Tailer struct {
	path         string
	sink         LineSink
	pollInterval time.Duration
	logger       zerolog.Logger

	fromStart bool
	offset    int64
	partial   []byte
	lines     atomic.Int64
}

// TailerOption configures a Tailer.
type TailerOption func(*Tailer)

// FromStart makes the tailer read lines already in the log.
func FromStart() TailerOption {
	return func(t *Tailer) { t.fromStart = true }
}

// NewTailer creates a tailer for the log at path. Besides filesystem
// notifications the file is re-checked every pollInterval, which covers
// filesystems that do not deliver events.
func NewTailer(path string, sink LineSink, pollInterval time.Duration, logger zerolog.Logger, opts ...TailerOption) *Tailer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	t := &Tailer{
		path:         filepath.Clean(path),
		sink:         sink,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "tailer").Str("path", path).Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Lines returns how many lines have been fed so far.
func (t *Tailer) Lines() int64 { return t.lines.Load() }

// Run follows the log until ctx is done.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so the log may be created or rotated later.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(t.path), err)
	}

	if !t.fromStart {
		t.offset = t.currentSize()
	}
	t.logger.Info().Int64("offset", t.offset).Msg("following command log")
	t.readNew(ctx)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != t.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				t.logger.Debug().Str("op", event.Op.String()).Msg("command log moved away")
				t.restart()
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.readNew(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn().Err(err).Msg("watcher error")

		case <-ticker.C:
			t.readNew(ctx)
		}
	}
}

func (t *Tailer) currentSize() int64 {
	info, err := os.Stat(t.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (t *Tailer) restart() {
	t.offset = 0
	t.partial = t.partial[:0]
}

// readNew feeds the lines appended since the last read.
func (t *Tailer) readNew(ctx context.Context) {
	file, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Msg("open command log")
		}
		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return
	}
	if info.Size() < t.offset {
		t.logger.Info().Msg("command log truncated, restarting from the beginning")
		t.restart()
	}
	if info.Size() == t.offset {
		return
	}

	if _, err := file.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Warn().Err(err).Msg("seek command log")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, info.Size()-t.offset))
	if err != nil {
		t.logger.Warn().Err(err).Msg("read command log")
		return
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(data[:i], "\r")
		t.sink.Feed(ctx, string(line))
		t.lines.Add(1)
		data = data[i+1:]
	}
	t.partial = append(t.partial[:0], data...)
}
