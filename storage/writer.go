package storage

import (
	"context"
	"log/slog"
	"time"

	"landlord-server/game"
	"landlord-server/room"
)

const writeTimeout = 5 * time.Second

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Writer applies room and result writes on a single background goroutine so
// callers holding a room lock never wait on the database. It implements
// room.Persister.
type Writer struct {
	store HistoryStore
	queue chan job
}

var _ room.Persister = (*Writer)(nil)

// NewWriter creates a Writer with a queue of the given size.
func NewWriter(store HistoryStore, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Writer{store: store, queue: make(chan job, queueSize)}
}

func (w *Writer) enqueue(j job) {
	select {
	case w.queue <- j:
	default:
		slog.Warn("persist queue full, dropping write", "tag", "storage", "job", j.name)
	}
}

// SaveRoom enqueues an upsert of the room snapshot.
func (w *Writer) SaveRoom(v room.View) {
	w.enqueue(job{name: "save room " + v.ID, run: func(ctx context.Context) error {
		return w.store.UpsertRoom(ctx, v)
	}})
}

// DeleteRoom enqueues removal of a closed room.
func (w *Writer) DeleteRoom(roomID string) {
	w.enqueue(job{name: "delete room " + roomID, run: func(ctx context.Context) error {
		return w.store.DeleteRoom(ctx, roomID)
	}})
}

// RecordResult enqueues a finished game.
func (w *Writer) RecordResult(res game.Result) {
	w.enqueue(job{name: "record result " + res.SessionID, run: func(ctx context.Context) error {
		return w.store.InsertGameResult(ctx, res)
	}})
}

// Run applies queued writes until ctx is cancelled, then flushes whatever is
// still queued.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case j := <-w.queue:
			w.apply(j)
		case <-ctx.Done():
			w.flush()
			return
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case j := <-w.queue:
			w.apply(j)
		default:
			return
		}
	}
}

func (w *Writer) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.run(ctx); err != nil {
		slog.Error("persist failed", "tag", "storage", "job", j.name, "err", err)
	}
}
