package sqlite

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
)

const recorderQueueSize = 128

// Recorder writes journal entries on a background goroutine so the guard
// loop never waits on disk. It implements domain.Journal.
type Recorder struct {
	db  *DB
	log *logrus.Entry

	mu     sync.Mutex
	closed bool
	queue  chan func(*DB) error
	done   chan struct{}
}

var _ domain.Journal = (*Recorder)(nil)

// NewRecorder starts the writer goroutine.
func NewRecorder(db *DB, log *logrus.Entry) *Recorder {
	r := &Recorder{
		db:    db,
		log:   log,
		queue: make(chan func(*DB) error, recorderQueueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) RecordWarning(rec domain.WarningRecord) {
	r.enqueue("warning", func(db *DB) error { return db.InsertWarning(rec) })
}

func (r *Recorder) RecordTransition(rec domain.TransitionRecord) {
	r.enqueue("transition", func(db *DB) error { return db.InsertTransition(rec) })
}

// PruneOlderThan schedules removal of entries older than the retention window.
func (r *Recorder) PruneOlderThan(retention time.Duration) {
	r.enqueue("prune", func(db *DB) error {
		n, err := db.Prune(time.Now().Add(-retention))
		if err == nil && n > 0 {
			r.log.WithField("rows", n).Info("journal pruned")
		}
		return err
	})
}

func (r *Recorder) enqueue(kind string, write func(*DB) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.log.WithField("entry", kind).Warn("journal closed, entry dropped")
		return
	}
	select {
	case r.queue <- write:
	default:
		r.log.WithField("entry", kind).Warn("journal queue full, entry dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for write := range r.queue {
		if err := write(r.db); err != nil {
			r.log.WithError(err).Error("journal write failed")
		}
	}
}

// Close flushes queued entries and stops the writer. The database itself
// stays open.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
