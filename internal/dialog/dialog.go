// Package dialog holds the open/closed state of modal dialogs, the two-pane
// track dialog and the notification dropdown.
package dialog

import (
	"fmt"
	"sync"
)

type State string

const (
	Closed State = "closed"
	Open   State = "open"
)

// Pane is the visible step of a track dialog.
type Pane string

const (
	Selecting Pane = "selecting"
	Filling   Pane = "filling"
)

// Target is whatever received a click. CloseMarker is set on elements that
// dismiss the dialog (the X button, the cancel button).
type Target struct {
	ID          string
	CloseMarker bool
	Inside      bool
}

// CloseButton is a target carrying the close marker.
func CloseButton(id string) Target {
	return Target{ID: id, CloseMarker: true, Inside: true}
}

// Inner is a click on dialog content.
func Inner(id string) Target {
	return Target{ID: id, Inside: true}
}

// Outside is a click anywhere else on the document.
func Outside(id string) Target {
	return Target{ID: id}
}

func ensureTransition(from, to State) error {
	switch from {
	case Closed:
		if to == Open {
			return nil
		}
	case Open:
		if to == Closed || to == Open {
			return nil
		}
	}
	return fmt.Errorf("invalid dialog transition %s -> %s", from, to)
}

// Dialog is a modal with open/close hooks.
type Dialog struct {
	name string

	mu      sync.Mutex
	state   State
	onOpen  []func()
	onClose []func()
}

func New(name string) *Dialog {
	return &Dialog{name: name, state: Closed}
}

func (d *Dialog) Name() string { return d.name }

// OnOpen registers a hook run after every Open.
func (d *Dialog) OnOpen(f func()) {
	d.mu.Lock()
	d.onOpen = append(d.onOpen, f)
	d.mu.Unlock()
}

// OnClose registers a hook run after the dialog actually closes.
func (d *Dialog) OnClose(f func()) {
	d.mu.Lock()
	d.onClose = append(d.onClose, f)
	d.mu.Unlock()
}

// Open shows the dialog. Opening an open dialog re-runs the open hooks,
// the way showing an already visible modal re-populates it.
func (d *Dialog) Open() {
	hooks := d.transition(Open)
	for _, f := range hooks {
		f()
	}
}

// Close hides the dialog. Closing a closed dialog is a no-op.
func (d *Dialog) Close() {
	hooks := d.transition(Closed)
	for _, f := range hooks {
		f()
	}
}

func (d *Dialog) transition(to State) []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ensureTransition(d.state, to) != nil {
		return nil
	}
	d.state = to
	if to == Open {
		return append([]func(){}, d.onOpen...)
	}
	return append([]func(){}, d.onClose...)
}

// Click handles a click inside the dialog. It reports whether the dialog
// closed; clicks without the close marker are consumed.
func (d *Dialog) Click(t Target) bool {
	if !t.CloseMarker || !d.IsOpen() {
		return false
	}
	d.Close()
	return true
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == Open
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// TrackDialog is a dialog whose first pane picks a section track and whose
// second pane holds the report form for that track.
type TrackDialog struct {
	*Dialog

	mu    sync.Mutex
	pane  Pane
	track string
}

func NewTrack(name string) *TrackDialog {
	td := &TrackDialog{Dialog: New(name), pane: Selecting}
	td.Dialog.OnOpen(td.toSelecting)
	return td
}

func (td *TrackDialog) toSelecting() {
	td.mu.Lock()
	td.pane = Selecting
	td.mu.Unlock()
}

// SelectTrack records the chosen track and shows the form pane.
func (td *TrackDialog) SelectTrack(track string) error {
	if track == "" {
		return fmt.Errorf("track is required")
	}
	if !td.IsOpen() {
		return fmt.Errorf("%s is not open", td.Name())
	}
	td.mu.Lock()
	defer td.mu.Unlock()
	td.track = track
	td.pane = Filling
	return nil
}

// Back returns to the selection pane. The chosen track stays recorded but is
// no longer echoed.
func (td *TrackDialog) Back() {
	td.toSelecting()
}

// Reset clears the recorded track and returns to the selection pane.
func (td *TrackDialog) Reset() {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.track = ""
	td.pane = Selecting
}

func (td *TrackDialog) Pane() Pane {
	td.mu.Lock()
	defer td.mu.Unlock()
	return td.pane
}

// Track is the recorded track value.
func (td *TrackDialog) Track() string {
	td.mu.Lock()
	defer td.mu.Unlock()
	return td.track
}

// Echo is the track shown above the form, empty on the selection pane.
func (td *TrackDialog) Echo() string {
	td.mu.Lock()
	defer td.mu.Unlock()
	if td.pane != Filling {
		return ""
	}
	return td.track
}

// Dropdown is a non-modal panel toggled from a button.
type Dropdown struct {
	mu      sync.Mutex
	visible bool
	onShow  func()
}

// NewDropdown takes an optional hook run whenever the panel becomes visible.
func NewDropdown(onShow func()) *Dropdown {
	return &Dropdown{onShow: onShow}
}

// Toggle flips visibility from the toggle button.
func (dd *Dropdown) Toggle() bool {
	dd.mu.Lock()
	dd.visible = !dd.visible
	shown := dd.visible
	hook := dd.onShow
	dd.mu.Unlock()
	if shown && hook != nil {
		hook()
	}
	return shown
}

// Click handles a document click. Clicks inside the panel are stopped;
// anything outside hides it.
func (dd *Dropdown) Click(t Target) {
	if t.Inside {
		return
	}
	dd.Hide()
}

func (dd *Dropdown) Hide() {
	dd.mu.Lock()
	dd.visible = false
	dd.mu.Unlock()
}

func (dd *Dropdown) Visible() bool {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	return dd.visible
}
