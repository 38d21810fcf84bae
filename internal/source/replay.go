package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fakeyudi/buildtrace/internal/event"
	"github.com/fakeyudi/buildtrace/internal/trace"
)

// Sink is the session side of a replay.
type Sink interface {
	trace.Handler
	Done() bool
}

// Options controls a replay.
type Options struct {
	// StopWhenDone ends the replay once the outermost build finishes.
	// Follow mode needs it since the stream never reaches end of file.
	StopWhenDone bool
	Logger       *slog.Logger
}

// Stats counts what a replay consumed.
type Stats struct {
	Records       int
	Notifications int
	Snapshots     int
}

// Replay decodes records from dec and delivers them in order. Snapshot
// records update provider and are not delivered to sink. It returns nil at
// end of stream, and otherwise the first decode, conversion or handling
// error.
func Replay(ctx context.Context, dec event.Decoder, sink Sink, provider *Recorded, opts Options) (Stats, error) {
	var st Stats
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			logger.Debug("end of stream", "records", st.Records)
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("decode record %d: %w", st.Records+1, err)
		}
		st.Records++

		if rec.IsSnapshot() {
			if rec.Snapshot == nil {
				return st, fmt.Errorf("record %d: snapshot record without snapshot", st.Records)
			}
			provider.Set(rec.ProjectInstanceID, rec.Snapshot)
			st.Snapshots++
			continue
		}

		n, err := rec.Notification()
		if err != nil {
			return st, fmt.Errorf("record %d: %w", st.Records, err)
		}
		st.Notifications++
		if err := sink.Handle(n); err != nil {
			return st, err
		}
		if opts.StopWhenDone && sink.Done() {
			logger.Debug("outermost build finished", "records", st.Records)
			return st, nil
		}
	}
}
