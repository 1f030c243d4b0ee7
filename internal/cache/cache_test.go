package cache

import (
	"os"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/task"
)

func testDB(t *testing.T) (string, *DB) {
	t.Helper()
	f, err := os.CreateTemp("", "dagaz-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return f.Name(), db
}

func sampleEntry(path string) Entry {
	return Entry{
		Path:    path,
		ModTime: time.Date(2026, time.January, 14, 10, 0, 0, 0, time.UTC),
		Hash:    "deadbeefcafe0123",
		Records: []task.Record{
			{
				Directive: task.Directive{Title: "Buy milk", Status: task.StatusActive, Tags: []string{"errands"}},
				ID:        "inbox.md:abc:1",
				Path:      path,
				Line:      3,
				Raw:       "- [ ] Buy milk #errands",
			},
		},
		Errors: []task.ParseError{{Path: path, Line: 7, Reason: "directive has no title"}},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	_, db := testDB(t)

	want := sampleEntry("inbox.md")
	if err := db.Put(want); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get("inbox.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("entry not found")
	}
	if !got.ModTime.Equal(want.ModTime) || got.Hash != want.Hash {
		t.Errorf("meta mismatch: %+v", got)
	}
	if len(got.Records) != 1 || got.Records[0].Title != "Buy milk" || got.Records[0].Line != 3 {
		t.Errorf("records = %+v", got.Records)
	}
	if len(got.Errors) != 1 || got.Errors[0].Line != 7 {
		t.Errorf("errors = %+v", got.Errors)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	_, db := testDB(t)
	got, err := db.Get("nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	_, db := testDB(t)
	e := sampleEntry("a.md")
	if err := db.Put(e); err != nil {
		t.Fatal(err)
	}
	e.Hash = "newhash"
	e.Records = nil
	if err := db.Put(e); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hash != "newhash" || len(got.Records) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestTouch(t *testing.T) {
	_, db := testDB(t)
	e := sampleEntry("a.md")
	if err := db.Put(e); err != nil {
		t.Fatal(err)
	}
	later := e.ModTime.Add(5 * time.Minute)
	if err := db.Touch("a.md", later); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if !got.ModTime.Equal(later) {
		t.Errorf("mtime = %v, want %v", got.ModTime, later)
	}
	if len(got.Records) != 1 {
		t.Errorf("touch must not disturb records: %+v", got.Records)
	}
}

func TestDelete(t *testing.T) {
	_, db := testDB(t)
	if err := db.Put(sampleEntry("a.md")); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("a.md"); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("entry survived delete")
	}
}

func TestRename(t *testing.T) {
	_, db := testDB(t)
	if err := db.Put(sampleEntry("old.md")); err != nil {
		t.Fatal(err)
	}
	// A pre-existing entry at the target is replaced.
	if err := db.Put(sampleEntry("new.md")); err != nil {
		t.Fatal(err)
	}
	if err := db.Rename("old.md", "new.md"); err != nil {
		t.Fatal(err)
	}
	old, err := db.Get("old.md")
	if err != nil {
		t.Fatal(err)
	}
	if old != nil {
		t.Error("old entry survived rename")
	}
	moved, err := db.Get("new.md")
	if err != nil {
		t.Fatal(err)
	}
	if moved == nil {
		t.Fatal("renamed entry missing")
	}
	paths, err := db.AllPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Errorf("paths = %v, want exactly one", paths)
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	dsn, db := testDB(t)
	if err := db.Put(sampleEntry("a.md")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := Open(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	got, err := db2.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("entry lost across reopen at same schema version")
	}
}

func TestSchemaVersionMismatchWipes(t *testing.T) {
	dsn, db := testDB(t)
	if err := db.Put(sampleEntry("a.md")); err != nil {
		t.Fatal(err)
	}
	// Simulate a cache written by an older build.
	if _, err := db.conn.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, SchemaVersion-1); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := Open(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	got, err := db2.Get("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("stale-version entry survived reopen, expected transparent wipe")
	}
	paths, err := db2.AllPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v, want empty", paths)
	}
}
