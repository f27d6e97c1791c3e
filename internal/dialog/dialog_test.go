package dialog

import "testing"

func TestClickOnlyClosesOnMarker(t *testing.T) {
	d := New("activity")
	closed := 0
	d.OnClose(func() { closed++ })
	d.Open()
	if d.Click(Inner("date")) {
		t.Fatalf("inner click must not close")
	}
	if !d.IsOpen() {
		t.Fatalf("dialog should stay open")
	}
	if !d.Click(CloseButton("x")) || d.IsOpen() {
		t.Fatalf("close marker must close the dialog")
	}
	d.Close()
	if closed != 1 {
		t.Fatalf("close hook should run once, ran %d", closed)
	}
	if d.Click(CloseButton("x")) {
		t.Fatalf("closed dialog cannot close again")
	}
}

func TestTrackDialogAlwaysOpensOnSelection(t *testing.T) {
	td := NewTrack("analysis")
	if err := td.SelectTrack("PC1250"); err == nil {
		t.Fatalf("selecting on a closed dialog must fail")
	}
	td.Open()
	if td.Pane() != Selecting {
		t.Fatalf("expected selecting, got %s", td.Pane())
	}
	if err := td.SelectTrack("PC1250"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if td.Pane() != Filling || td.Echo() != "PC1250" {
		t.Fatalf("expected filling with echo, got %s %q", td.Pane(), td.Echo())
	}
	td.Close()
	td.Open()
	if td.Pane() != Selecting {
		t.Fatalf("reopen must reset to selecting, got %s", td.Pane())
	}
	if td.Echo() != "" {
		t.Fatalf("echo must be hidden on the selection pane")
	}

	if err := td.SelectTrack("D375"); err != nil {
		t.Fatal(err)
	}
	td.Back()
	if td.Pane() != Selecting || td.Track() != "D375" {
		t.Fatalf("back keeps the track but hides the form: %s %q", td.Pane(), td.Track())
	}
	td.Reset()
	if td.Track() != "" {
		t.Fatalf("reset must clear the track")
	}
}

func TestDropdown(t *testing.T) {
	shows := 0
	dd := NewDropdown(func() { shows++ })
	if !dd.Toggle() {
		t.Fatalf("first toggle should show")
	}
	dd.Click(Inner("item-1"))
	if !dd.Visible() {
		t.Fatalf("inner click must be stopped")
	}
	dd.Click(Outside("body"))
	if dd.Visible() {
		t.Fatalf("outside click must hide")
	}
	dd.Toggle()
	dd.Toggle()
	if dd.Visible() || shows != 2 {
		t.Fatalf("unexpected state visible=%v shows=%d", dd.Visible(), shows)
	}
}
