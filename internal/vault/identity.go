package vault

import (
	"strconv"

	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/task"
)

// EphemeralID derives a file-scoped identity for a line with no persisted
// metadata. normalized is the task.NormalizeLine form of the source line;
// occurrence is the 1-based rank of that exact normalized text within the
// file during one parse pass, so N duplicate lines get N distinct,
// order-stable identities.
func EphemeralID(path, normalized string, occurrence int) string {
	return path + ":" + checksum.SumString(normalized) + ":" + strconv.Itoa(occurrence)
}

// LocateLine finds the 0-based line index a record refers to inside freshly
// read lines. Stable identities match exactly on the metadata comment.
// Ephemeral records fall back to normalized-content equality; when several
// lines match, the one numerically closest to the record's stale line hint
// wins. That tie-break is best-effort under heavy duplication, not a
// guarantee. Returns -1 when no line matches.
func LocateLine(lines []string, rec task.Record) int {
	if rec.Stable {
		for i, l := range lines {
			if _, m := task.StripMeta(l); m != nil && m.ID == rec.ID {
				return i
			}
		}
		return -1
	}
	want := task.NormalizeLine(rec.Raw)
	best, bestDist := -1, 0
	for i, l := range lines {
		if !task.IsCandidate(l) {
			continue
		}
		if task.NormalizeLine(l) != want {
			continue
		}
		d := i - rec.Line
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
