package vault

import (
	"testing"

	"github.com/starford/dagaz/internal/task"
)

func TestEphemeralID_OccurrencesDistinct(t *testing.T) {
	norm := task.NormalizeLine("- [ ] Buy milk")
	a := EphemeralID("inbox.md", norm, 1)
	b := EphemeralID("inbox.md", norm, 2)
	c := EphemeralID("inbox.md", norm, 3)
	if a == b || b == c || a == c {
		t.Errorf("duplicate lines must get distinct identities: %q %q %q", a, b, c)
	}
}

func TestEphemeralID_PathScoped(t *testing.T) {
	norm := task.NormalizeLine("- [ ] Buy milk")
	if EphemeralID("a.md", norm, 1) == EphemeralID("b.md", norm, 1) {
		t.Error("identities from different files must differ")
	}
}

func TestEphemeralID_Deterministic(t *testing.T) {
	norm := task.NormalizeLine("- [ ] Buy milk")
	if EphemeralID("a.md", norm, 1) != EphemeralID("a.md", norm, 1) {
		t.Error("identity must be deterministic")
	}
}

func TestLocateLine_StableByMetadata(t *testing.T) {
	lines := []string{
		"# Inbox",
		"- [ ] Other task",
		"- [ ] Buy milk <!--todo:id=a1b2c3d4;v=1-->",
		"",
	}
	rec := task.Record{
		ID:     "a1b2c3d4",
		Stable: true,
		Line:   0, // stale hint, must not matter for stable identities
		Raw:    "- [ ] Buy milk <!--todo:id=a1b2c3d4;v=1-->",
	}
	if got := LocateLine(lines, rec); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestLocateLine_StableAbsent(t *testing.T) {
	lines := []string{"- [ ] Buy milk"}
	rec := task.Record{ID: "missing1", Stable: true, Raw: "- [ ] Buy milk <!--todo:id=missing1;v=1-->"}
	if got := LocateLine(lines, rec); got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}

func TestLocateLine_EphemeralByContent(t *testing.T) {
	lines := []string{
		"# Notes",
		"some prose",
		"- [ ] Buy milk",
	}
	rec := task.Record{Raw: "- [ ] Buy milk", Line: 0}
	if got := LocateLine(lines, rec); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestLocateLine_EphemeralNearestToHint(t *testing.T) {
	lines := []string{
		"- [ ] Buy milk",
		"prose",
		"prose",
		"- [ ] Buy milk",
		"- [ ] Buy milk",
	}
	rec := task.Record{Raw: "- [ ] Buy milk", Line: 4}
	if got := LocateLine(lines, rec); got != 4 {
		t.Errorf("got %d, want 4 (closest duplicate to the hint)", got)
	}
	rec.Line = 1
	if got := LocateLine(lines, rec); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestLocateLine_EphemeralMatchesDespiteCheckStateAndMeta(t *testing.T) {
	// Normalized matching ignores checkbox state, casing, and metadata.
	lines := []string{"- [x] BUY MILK <!--todo:id=zzz;v=1-->"}
	rec := task.Record{Raw: "- [ ] Buy milk", Line: 0}
	if got := LocateLine(lines, rec); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestLocateLine_EphemeralGone(t *testing.T) {
	lines := []string{"- [ ] Something else entirely"}
	rec := task.Record{Raw: "- [ ] Buy milk", Line: 0}
	if got := LocateLine(lines, rec); got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}
