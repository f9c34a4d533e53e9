package sqlite

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

var base = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func warning(id string, openedAfter time.Duration, reason domain.CloseReason) domain.WarningRecord {
	opened := base.Add(openedAfter)
	return domain.WarningRecord{
		ID:          id,
		OpenedAt:    opened,
		ClosedAt:    opened.Add(4 * time.Second),
		Reason:      reason,
		GraceSecs:   10,
		Remaining:   6,
		IdleSeconds: 300,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
		t.Errorf("%s should exist", FileName)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.InsertWarning(warning("w1", 0, domain.CloseActivity)); err != nil {
		t.Fatalf("InsertWarning() error: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer db.Close()
	got, err := db.ListWarnings(0)
	if err != nil {
		t.Fatalf("ListWarnings() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(ListWarnings()) = %d after reopen, want 1", len(got))
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Warnings ───────────────────────────────────────────────────────────────

func TestWarnings_InsertAndList(t *testing.T) {
	db := newTestDB(t)

	for i, reason := range []domain.CloseReason{domain.CloseActivity, domain.CloseGraceExpired, domain.CloseDismissed} {
		rec := warning(string(rune('a'+i)), time.Duration(i)*time.Minute, reason)
		if err := db.InsertWarning(rec); err != nil {
			t.Fatalf("InsertWarning() error: %v", err)
		}
	}

	got, err := db.ListWarnings(0)
	if err != nil {
		t.Fatalf("ListWarnings() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want newest first", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[1].Reason != domain.CloseGraceExpired {
		t.Errorf("Reason = %q, want %q", got[1].Reason, domain.CloseGraceExpired)
	}
	if !got[2].OpenedAt.Equal(base) {
		t.Errorf("OpenedAt = %v, want %v", got[2].OpenedAt, base)
	}
	if got[2].Duration() != 4*time.Second {
		t.Errorf("Duration() = %v, want 4s", got[2].Duration())
	}
	if got[0].GraceSecs != 10 || got[0].Remaining != 6 || got[0].IdleSeconds != 300 {
		t.Errorf("record = %+v, fields not round-tripped", got[0])
	}
}

func TestWarnings_Limit(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		db.InsertWarning(warning(string(rune('a'+i)), time.Duration(i)*time.Minute, domain.CloseActivity))
	}

	got, err := db.ListWarnings(2)
	if err != nil {
		t.Fatalf("ListWarnings() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e" {
		t.Errorf("ListWarnings(2) = %d records starting %q, want 2 starting e", len(got), got[0].ID)
	}
}

func TestWarnings_UpsertSameID(t *testing.T) {
	db := newTestDB(t)
	rec := warning("w", 0, domain.CloseShutdown)
	db.InsertWarning(rec)
	rec.Reason = domain.CloseActivity
	if err := db.InsertWarning(rec); err != nil {
		t.Fatalf("InsertWarning() error: %v", err)
	}

	got, _ := db.ListWarnings(0)
	if len(got) != 1 || got[0].Reason != domain.CloseActivity {
		t.Errorf("ListWarnings() = %+v, want one activity record", got)
	}
}

func TestWarnings_Count(t *testing.T) {
	db := newTestDB(t)
	db.InsertWarning(warning("a", 0, domain.CloseActivity))
	db.InsertWarning(warning("b", time.Minute, domain.CloseActivity))
	db.InsertWarning(warning("c", 2*time.Minute, domain.CloseGraceExpired))

	counts, err := db.CountWarnings()
	if err != nil {
		t.Fatalf("CountWarnings() error: %v", err)
	}
	if counts[domain.CloseActivity] != 2 || counts[domain.CloseGraceExpired] != 1 {
		t.Errorf("CountWarnings() = %v", counts)
	}
}

// ─── Transitions ────────────────────────────────────────────────────────────

func TestTransitions_InsertAndList(t *testing.T) {
	db := newTestDB(t)
	db.InsertTransition(domain.TransitionRecord{Kind: domain.SessionLock, At: base})
	db.InsertTransition(domain.TransitionRecord{Kind: domain.SessionUnlock, At: base.Add(time.Hour)})

	got, err := db.ListTransitions(0)
	if err != nil {
		t.Fatalf("ListTransitions() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Kind != domain.SessionUnlock || got[1].Kind != domain.SessionLock {
		t.Errorf("kinds = %v, %v, want unlock then lock", got[0].Kind, got[1].Kind)
	}
	if !got[1].At.Equal(base) {
		t.Errorf("At = %v, want %v", got[1].At, base)
	}
}

// ─── Retention ──────────────────────────────────────────────────────────────

func TestPrune(t *testing.T) {
	db := newTestDB(t)
	db.InsertWarning(warning("old", 0, domain.CloseActivity))
	db.InsertWarning(warning("new", 48*time.Hour, domain.CloseActivity))
	db.InsertTransition(domain.TransitionRecord{Kind: domain.SessionLock, At: base})
	db.InsertTransition(domain.TransitionRecord{Kind: domain.SessionUnlock, At: base.Add(48 * time.Hour)})

	n, err := db.Prune(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d rows, want 2", n)
	}

	ws, _ := db.ListWarnings(0)
	if len(ws) != 1 || ws[0].ID != "new" {
		t.Errorf("warnings after prune = %+v", ws)
	}
	ts, _ := db.ListTransitions(0)
	if len(ts) != 1 || ts[0].Kind != domain.SessionUnlock {
		t.Errorf("transitions after prune = %+v", ts)
	}
}

// ─── Recorder ───────────────────────────────────────────────────────────────

func TestRecorder_FlushesOnClose(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, quietLogger())

	for i := 0; i < 10; i++ {
		r.RecordWarning(warning(string(rune('a'+i)), time.Duration(i)*time.Second, domain.CloseActivity))
	}
	r.RecordTransition(domain.TransitionRecord{Kind: domain.SessionLock, At: base})
	r.Close()

	ws, err := db.ListWarnings(0)
	if err != nil {
		t.Fatalf("ListWarnings() error: %v", err)
	}
	if len(ws) != 10 {
		t.Errorf("warnings = %d, want 10", len(ws))
	}
	ts, _ := db.ListTransitions(0)
	if len(ts) != 1 {
		t.Errorf("transitions = %d, want 1", len(ts))
	}
}

func TestRecorder_AfterClose(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, quietLogger())
	r.Close()
	r.Close()

	r.RecordWarning(warning("late", 0, domain.CloseShutdown))
	ws, _ := db.ListWarnings(0)
	if len(ws) != 0 {
		t.Errorf("warnings = %d, want 0 after close", len(ws))
	}
}

func TestRecorder_Prune(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, quietLogger())
	r.RecordWarning(warning("ancient", -5*365*24*time.Hour, domain.CloseActivity))
	r.PruneOlderThan(time.Hour)
	r.Close()

	ws, _ := db.ListWarnings(0)
	if len(ws) != 0 {
		t.Errorf("warnings = %d, want 0 after prune", len(ws))
	}
}
