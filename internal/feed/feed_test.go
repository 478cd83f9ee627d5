package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) Feed(_ context.Context, line string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return 0, false
}

func (r *lineRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.gcode")
	require.NoError(t, os.WriteFile(path, []byte("; sliced\nG21\r\nM82\nG1 X1 E1.5\n\nG1 E3"), 0644))

	sink := &lineRecorder{}
	n, err := Replay(context.Background(), path, sink)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []string{"; sliced", "G21", "M82", "G1 X1 E1.5", "", "G1 E3"}, sink.snapshot())
}

func TestReplayMissingFile(t *testing.T) {
	_, err := Replay(context.Background(), filepath.Join(t.TempDir(), "nope.gcode"), &lineRecorder{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReplayReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := ReplayReader(ctx, strings.NewReader("G1 E1\nG1 E2\n"), &lineRecorder{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestReplayReaderLongLine(t *testing.T) {
	thumbnail := "; thumbnail " + strings.Repeat("A", 200*1024)
	sink := &lineRecorder{}

	n, err := ReplayReader(context.Background(), strings.NewReader(thumbnail+"\nG1 E1\n"), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "G1 E1", sink.snapshot()[1])
}

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func startTailer(t *testing.T, tailer *Tailer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestTailerFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.log")
	appendTo(t, path, "G1 E999\n")

	sink := &lineRecorder{}
	tailer := NewTailer(path, sink, 20*time.Millisecond, zerolog.Nop())
	startTailer(t, tailer)

	// Lines already in the log are skipped; wait for the tailer to settle
	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, "G1 E1\nG1 E")
	appendTo(t, path, "2\n")

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"G1 E1", "G1 E2"}, sink.snapshot())
	assert.Equal(t, int64(2), tailer.Lines())
}

func TestTailerFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.log")
	appendTo(t, path, "M83\nG1 E1\n")

	sink := &lineRecorder{}
	startTailer(t, NewTailer(path, sink, 20*time.Millisecond, zerolog.Nop(), FromStart()))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"M83", "G1 E1"}, sink.snapshot())
}

func TestTailerRestartsAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.log")
	appendTo(t, path, "")

	sink := &lineRecorder{}
	startTailer(t, NewTailer(path, sink, 20*time.Millisecond, zerolog.Nop()))
	time.Sleep(100 * time.Millisecond)

	appendTo(t, path, "G1 E10 ; a long first line\n")
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("T1\n"), 0644))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "T1", sink.snapshot()[1])
}

func TestTailerWaitsForLogCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.log")

	sink := &lineRecorder{}
	startTailer(t, NewTailer(path, sink, 20*time.Millisecond, zerolog.Nop()))
	time.Sleep(100 * time.Millisecond)

	appendTo(t, path, "G28\n")
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "G28", sink.snapshot()[0])
}
