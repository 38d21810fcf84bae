package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval bounds how long a follower sleeps when no write notification
// arrives, for filesystems that do not deliver them.
const pollInterval = 500 * time.Millisecond

// Open returns a reader over the recorded stream at path. With follow set the
// reader tails the file: at end of data it blocks until the file grows or ctx
// is cancelled, instead of returning io.EOF.
func Open(ctx context.Context, path string, follow bool) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if !follow {
		return f, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("watch stream: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("watch stream: %w", err)
	}
	return &follower{ctx: ctx, file: f, watcher: watcher}, nil
}

type follower struct {
	ctx     context.Context
	file    *os.File
	watcher *fsnotify.Watcher
}

// Read returns io.EOF only when the followed file is removed or renamed.
func (f *follower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return n, err
		}
		if err := f.wait(); err != nil {
			return 0, err
		}
	}
}

func (f *follower) wait() error {
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-f.ctx.Done():
			return f.ctx.Err()

		case <-timer.C:
			return nil

		case ev, ok := <-f.watcher.Events:
			if !ok {
				return io.EOF
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return io.EOF
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("watch stream: %w", err)
		}
	}
}

func (f *follower) Close() error {
	werr := f.watcher.Close()
	if err := f.file.Close(); err != nil {
		return err
	}
	return werr
}
