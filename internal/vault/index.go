// Package vault maintains the authoritative in-memory snapshot of task
// directives across the vault, kept consistent with on-disk content through
// the persisted parse cache and the file watcher.
package vault

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/dagaz/internal/cache"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/storage"
	"github.com/starford/dagaz/internal/task"
)

// FileReader returns the content and content hash of a vault file. Callers
// choose the read strategy: the reindex that follows a mutation must use a
// fresh read so it observes the mutation's own write.
type FileReader func(path string) (content []byte, hash string, err error)

type ownedID struct {
	id     string
	stable bool
}

// Index is the in-memory snapshot: identity → record maps, a reverse map
// from file path to owned identities, and per-file parse errors. A file's
// entries are always replaced atomically (remove-all-then-add) so readers
// observe either the prior generation or the new one, never a mix.
type Index struct {
	store  storage.Provider
	db     *cache.DB
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	stable    map[string]task.Record
	ephemeral map[string]task.Record
	byFile    map[string][]ownedID
	errs      map[string][]task.ParseError
}

// New creates an empty index.
func New(store storage.Provider, db *cache.DB, logger *slog.Logger, now func() time.Time) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{
		store:     store,
		db:        db,
		logger:    logger,
		now:       now,
		stable:    make(map[string]task.Record),
		ephemeral: make(map[string]task.Record),
		byFile:    make(map[string][]ownedID),
		errs:      make(map[string][]task.ParseError),
	}
}

// FreshReader returns a FileReader that always reads from disk.
func (ix *Index) FreshReader() FileReader {
	return func(path string) ([]byte, string, error) {
		data, err := ix.store.Read(path)
		if err != nil {
			return nil, "", err
		}
		return data, checksum.Sum(data), nil
	}
}

// BuildInitial populates the index from every vault file, hydrating from
// the cache wherever the stored modification time matches the live file
// and re-parsing the rest.
func (ix *Index) BuildInitial() error {
	metas, err := ix.store.List("")
	if err != nil {
		return err
	}
	for _, m := range metas {
		entry, err := ix.db.Get(m.Path)
		if err != nil {
			ix.logger.Warn("index: cache read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			entry = nil
		}
		if entry != nil && entry.ModTime.Equal(m.ModTime) {
			ix.replaceFile(m.Path, entry.Records, entry.Errors)
			ix.logger.Debug("index: hydrated", slog.String("path", m.Path))
			continue
		}
		data, err := ix.store.Read(m.Path)
		if err != nil {
			ix.logger.Warn("index: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		rewrote, err := ix.indexContent(m.Path, data, m.ModTime, m.Checksum)
		if err != nil {
			ix.logger.Warn("index: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if rewrote {
			// The shorthand pre-pass wrote the file back. No watcher is
			// running yet during startup, so index the converted file now
			// from a fresh read instead of waiting for a change event.
			meta, err := ix.store.Stat(m.Path)
			if err != nil {
				continue
			}
			data, err := ix.store.Read(m.Path)
			if err != nil {
				continue
			}
			if _, err := ix.indexContent(m.Path, data, meta.ModTime, meta.Checksum); err != nil {
				ix.logger.Warn("index: parse after convert failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			}
		}
	}

	// Drop cache entries for files no longer on disk.
	cached, err := ix.db.AllPaths()
	if err != nil {
		return err
	}
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}
	for p := range cached {
		if _, ok := disk[p]; !ok {
			if err := ix.db.Delete(p); err != nil {
				ix.logger.Warn("index: stale cache delete failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// ReindexFile brings one file's entries up to date. A cached entry whose
// content hash matches the live content is hydrated without parsing and
// only its stored modification time is refreshed (a touched-but-unchanged
// file). A missing file is treated as a removal.
func (ix *Index) ReindexFile(path string, read FileReader) error {
	return ix.reindex(path, read, false)
}

func (ix *Index) reindex(path string, read FileReader, force bool) error {
	content, hash, err := read(path)
	if err != nil {
		ix.RemoveFile(path)
		return nil
	}

	meta, statErr := ix.store.Stat(path)
	if statErr != nil {
		ix.RemoveFile(path)
		return nil
	}

	if !force {
		entry, err := ix.db.Get(path)
		if err == nil && entry != nil && entry.Hash == hash {
			ix.replaceFile(path, entry.Records, entry.Errors)
			if err := ix.db.Touch(path, meta.ModTime); err != nil {
				ix.logger.Warn("index: cache touch failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			ix.logger.Debug("index: hash match, hydrated", slog.String("path", path))
			return nil
		}
	}

	rewrote, err := ix.indexContent(path, content, meta.ModTime, hash)
	if err != nil {
		return err
	}
	if rewrote {
		// Parsing is deferred to the change event the write triggers.
		ix.logger.Debug("index: shorthand converted, parse deferred", slog.String("path", path))
	}
	return nil
}

// indexContent runs the shorthand pre-pass and, when nothing needed
// rewriting, parses content line by line and replaces the file's entries.
// It reports whether the file was rewritten (in which case parsing was
// skipped).
func (ix *Index) indexContent(path string, content []byte, mtime time.Time, hash string) (bool, error) {
	lines := strings.Split(string(content), "\n")

	changed := false
	for i, line := range lines {
		if converted, ok := task.NormalizeToCheckbox(line, ix.now()); ok {
			lines[i] = converted
			changed = true
		}
	}
	if changed {
		if err := ix.store.Write(path, []byte(strings.Join(lines, "\n"))); err != nil {
			return false, err
		}
		return true, nil
	}

	var recs []task.Record
	var perrs []task.ParseError
	for i, line := range lines {
		if !task.IsCandidate(line) {
			continue
		}
		d, err := task.Parse(line, ix.now())
		if err != nil {
			perrs = append(perrs, task.ParseError{Path: path, Line: i, Reason: err.Error()})
			continue
		}
		recs = append(recs, task.Record{
			Directive: *d,
			Path:      path,
			Line:      i,
			Raw:       line,
			Indent:    task.IndentOf(line),
		})
	}

	ix.replaceFile(path, recs, perrs)

	if err := ix.db.Put(cache.Entry{Path: path, ModTime: mtime, Hash: hash, Records: ix.FileRecords(path), Errors: perrs}); err != nil {
		ix.logger.Warn("index: cache write failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return false, nil
}

// replaceFile is the identity resolver and the single mutation point of
// the snapshot: it removes every entry the file owns, assigns identities
// to the fresh records (stable from metadata, otherwise ephemeral from
// normalized content and occurrence rank), demotes duplicate stable
// identities to ephemeral-only indexing, and installs the new generation.
func (ix *Index) replaceFile(path string, recs []task.Record, perrs []task.ParseError) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeFileLocked(path)

	errs := append([]task.ParseError(nil), perrs...)
	occ := make(map[string]int)
	var owned []ownedID

	for _, rec := range recs {
		norm := task.NormalizeLine(rec.Raw)
		occ[norm]++
		eph := EphemeralID(path, norm, occ[norm])

		if rec.Meta != nil {
			if _, taken := ix.stable[rec.Meta.ID]; !taken {
				rec.ID = rec.Meta.ID
				rec.Stable = true
				ix.stable[rec.ID] = rec
				owned = append(owned, ownedID{id: rec.ID, stable: true})
				continue
			}
			// Second line carrying an already-indexed identity: keep it
			// visible via ephemeral indexing only.
			errs = append(errs, task.ParseError{
				Path:   path,
				Line:   rec.Line,
				Reason: "duplicate stable identity " + rec.Meta.ID,
			})
		}

		rec.ID = eph
		rec.Stable = false
		ix.ephemeral[eph] = rec
		owned = append(owned, ownedID{id: eph})
	}

	ix.byFile[path] = owned
	if len(errs) > 0 {
		ix.errs[path] = errs
	}
}

func (ix *Index) removeFileLocked(path string) {
	for _, o := range ix.byFile[path] {
		if o.stable {
			delete(ix.stable, o.id)
		} else {
			delete(ix.ephemeral, o.id)
		}
	}
	delete(ix.byFile, path)
	delete(ix.errs, path)
}

// RemoveFile clears every identity a file owned, its parse errors, and its
// cache entry.
func (ix *Index) RemoveFile(path string) {
	ix.mu.Lock()
	ix.removeFileLocked(path)
	ix.mu.Unlock()
	if err := ix.db.Delete(path); err != nil {
		ix.logger.Warn("index: cache delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// RenameFile relocates a file's cache entry and forces one reindex of the
// new path. Ephemeral identities embed the file path, so the reindex is a
// full re-parse rather than a hydrate.
func (ix *Index) RenameFile(oldPath, newPath string, read FileReader) error {
	ix.mu.Lock()
	ix.removeFileLocked(oldPath)
	ix.mu.Unlock()
	if err := ix.db.Rename(oldPath, newPath); err != nil {
		ix.logger.Warn("index: cache rename failed", slog.String("path", oldPath), slog.String("error", err.Error()))
	}
	return ix.reindex(newPath, read, true)
}

// Get returns the record for a stable or ephemeral identity.
func (ix *Index) Get(id string) (task.Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if rec, ok := ix.stable[id]; ok {
		return rec, true
	}
	rec, ok := ix.ephemeral[id]
	return rec, ok
}

// FileRecords returns the records a file currently owns, in line order.
func (ix *Index) FileRecords(path string) []task.Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []task.Record
	for _, o := range ix.byFile[path] {
		if o.stable {
			out = append(out, ix.stable[o.id])
		} else {
			out = append(out, ix.ephemeral[o.id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// Snapshot returns a read-only copy of every indexed record, ordered by
// path then line.
func (ix *Index) Snapshot() []task.Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]task.Record, 0, len(ix.stable)+len(ix.ephemeral))
	for _, rec := range ix.stable {
		out = append(out, rec)
	}
	for _, rec := range ix.ephemeral {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// Errors returns the flat list of parse errors across the vault.
func (ix *Index) Errors() []task.ParseError {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	paths := make([]string, 0, len(ix.errs))
	for p := range ix.errs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var out []task.ParseError
	for _, p := range paths {
		out = append(out, ix.errs[p]...)
	}
	return out
}
