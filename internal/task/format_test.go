package task

import (
	"testing"
	"time"
)

func TestComposeLine_RoundTrip(t *testing.T) {
	due := date(2026, time.January, 15)
	line := ComposeLine("Buy milk", due, ComposeOptions{
		Priority: 2,
		Tags:     []string{"errands"},
		Contexts: []string{"home"},
		Project:  "groceries",
		Estimate: "30m",
	})
	want := "- [ ] !! Buy milk #errands @home +groceries 20260115 ~30m"
	if line != want {
		t.Fatalf("line = %q, want %q", line, want)
	}

	d, err := Parse(line, fixedNow)
	if err != nil {
		t.Fatalf("composed line does not parse: %v", err)
	}
	if d.Title != "Buy milk" || d.Priority != 2 || !d.Due.Equal(due) {
		t.Errorf("parsed = %+v", d)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "errands" || d.Project != "groceries" {
		t.Errorf("tags/project = %v / %q", d.Tags, d.Project)
	}
	if d.Estimate == nil || d.Estimate.Minutes != 30 {
		t.Errorf("estimate = %+v", d.Estimate)
	}
}

func TestComposeLine_Minimal(t *testing.T) {
	line := ComposeLine("Just a task", time.Time{}, ComposeOptions{})
	if line != "- [ ] Just a task" {
		t.Errorf("line = %q", line)
	}
}

func TestComposeLine_ClampsPriority(t *testing.T) {
	line := ComposeLine("Urgent", time.Time{}, ComposeOptions{Priority: 9})
	if line != "- [ ] !!! Urgent" {
		t.Errorf("line = %q", line)
	}
}

func TestNormalizeToCheckbox_RewritesDate(t *testing.T) {
	got, changed := NormalizeToCheckbox("todo Ship report tomorrow", fixedNow)
	if !changed {
		t.Fatal("expected conversion")
	}
	if got != "- [ ] Ship report 20260115" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeToCheckbox_PreservesRecurrence(t *testing.T) {
	// "every 3 days" must survive untouched; only true date expressions
	// are rewritten to compact form.
	got, changed := NormalizeToCheckbox("todo Water plants every 3 days", fixedNow)
	if !changed {
		t.Fatal("expected conversion")
	}
	if got != "- [ ] Water plants every 3 days" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeToCheckbox_Idempotent(t *testing.T) {
	first, changed := NormalizeToCheckbox("todo Call dentist friday", fixedNow)
	if !changed {
		t.Fatal("expected conversion")
	}
	second, changed := NormalizeToCheckbox(first, fixedNow)
	if changed {
		t.Errorf("second pass changed the line: %q -> %q", first, second)
	}
}

func TestNormalizeToCheckbox_KeepsIndent(t *testing.T) {
	got, changed := NormalizeToCheckbox("  todo nested item", fixedNow)
	if !changed {
		t.Fatal("expected conversion")
	}
	if got != "  - [ ] nested item" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeToCheckbox_ProseUntouched(t *testing.T) {
	if got, changed := NormalizeToCheckbox("ordinary prose line", fixedNow); changed {
		t.Errorf("prose converted: %q", got)
	}
}

func TestSetChecked(t *testing.T) {
	if got := SetChecked("- [ ] Task one", true); got != "- [x] Task one" {
		t.Errorf("got %q", got)
	}
	if got := SetChecked("- [x] Task one", false); got != "- [ ] Task one" {
		t.Errorf("got %q", got)
	}
	if got := SetChecked("  - [X] nested", false); got != "  - [ ] nested" {
		t.Errorf("got %q", got)
	}
	if got := SetChecked("not a checkbox", true); got != "not a checkbox" {
		t.Errorf("got %q", got)
	}
}

func TestRenderMeta(t *testing.T) {
	m := &Metadata{ID: "a1b2c3d4", Version: 1}
	if got := RenderMeta(m); got != "<!--todo:id=a1b2c3d4;v=1-->" {
		t.Errorf("got %q", got)
	}
	m.Done = "2026-01-14"
	if got := RenderMeta(m); got != "<!--todo:id=a1b2c3d4;v=1;done=2026-01-14-->" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeLine(t *testing.T) {
	a := NormalizeLine("- [x] Buy Milk  <!--todo:id=abc;v=1-->")
	b := NormalizeLine("todo buy milk")
	if a != b {
		t.Errorf("normalized forms differ: %q vs %q", a, b)
	}
	if a != "- [ ] buy milk" {
		t.Errorf("normalized = %q", a)
	}
}
