// Package feed delivers printer command lines to a sink, either from a
// sliced G-code file or by following a live command log.
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// LineSink consumes command lines.
type LineSink interface {
	Feed(ctx context.Context, line string) (float64, bool)
}

// maxLineSize bounds a single line. Slicers emit long thumbnail comments.
const maxLineSize = 4 * 1024 * 1024

// Replay streams every line of the file at path into sink and returns how
// many lines were fed. It stops early when ctx is cancelled.
func Replay(ctx context.Context, path string, sink LineSink) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	n, err := ReplayReader(ctx, file, sink)
	if err != nil {
		return n, fmt.Errorf("replay %s: %w", path, err)
	}
	return n, nil
}

// ReplayReader streams lines from r into sink.
func ReplayReader(ctx context.Context, r io.Reader, sink LineSink) (int, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		sink.Feed(ctx, scanner.Text())
		n++
	}
	return n, scanner.Err()
}
