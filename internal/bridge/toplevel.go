package bridge

import (
	"fmt"

	"github.com/bnema/waylink/internal/logger"
)

type windowState struct {
	title          string
	appID          string
	hasTitle       bool
	hasAppID       bool
	onRemoteOutput bool
	fullscreen     bool
}

// ToplevelTracker accumulates per-window state from the compositor's
// toplevel event stream and derives the host's media title from it.
// Exactly one window can be the eligible one at a time; transitions
// are detected at commit so the host only sees settled states.
type ToplevelTracker struct {
	host Host

	displayName string
	outputName  string
	seatName    string

	windows map[ToplevelHandle]*windowState
	current ToplevelHandle
}

// NewToplevelTracker creates a tracker deriving titles with the given
// remote identifiers.
func NewToplevelTracker(host Host, displayName, outputName, seatName string) *ToplevelTracker {
	return &ToplevelTracker{
		host:        host,
		displayName: displayName,
		outputName:  outputName,
		seatName:    seatName,
		windows:     make(map[ToplevelHandle]*windowState),
	}
}

// Track starts accumulating state for a newly announced window.
func (t *ToplevelTracker) Track(h ToplevelHandle) {
	t.windows[h] = &windowState{}
}

// SetTitle records a window's title.
func (t *ToplevelTracker) SetTitle(h ToplevelHandle, title string) {
	if w, ok := t.windows[h]; ok {
		w.title = title
		w.hasTitle = true
	}
}

// SetAppID records a window's application ID.
func (t *ToplevelTracker) SetAppID(h ToplevelHandle, appID string) {
	if w, ok := t.windows[h]; ok {
		w.appID = appID
		w.hasAppID = true
	}
}

// OutputEnter records that a window became visible on an output.
func (t *ToplevelTracker) OutputEnter(h ToplevelHandle, remoteOutput bool) {
	if w, ok := t.windows[h]; ok && remoteOutput {
		w.onRemoteOutput = true
	}
}

// OutputLeave records that a window left an output.
func (t *ToplevelTracker) OutputLeave(h ToplevelHandle, remoteOutput bool) {
	if w, ok := t.windows[h]; ok && remoteOutput {
		w.onRemoteOutput = false
	}
}

// SetFullscreen records a window's fullscreen state.
func (t *ToplevelTracker) SetFullscreen(h ToplevelHandle, fullscreen bool) {
	if w, ok := t.windows[h]; ok {
		w.fullscreen = fullscreen
	}
}

// eligible reports whether the window should drive the title.
//
// FIXME: visible-on-remote-output is tracked but deliberately not part
// of the predicate: sway/wlroots sends output_leave after the
// fullscreen state event when the window is also set to floating, so
// requiring it would drop the title on a still-fullscreen window.
func eligible(w *windowState) bool {
	return w.hasTitle && w.hasAppID && w.fullscreen
}

// Commit applies a window's accumulated state. Title traffic happens
// only on eligibility transitions; committing an unchanged state is a
// no-op.
func (t *ToplevelTracker) Commit(h ToplevelHandle) {
	w, ok := t.windows[h]
	if !ok {
		return
	}

	if eligible(w) {
		if t.current != h {
			t.current = h
			t.setTitle(t.fullscreenTitle(w))
		}
	} else {
		if t.current == h {
			t.current = nil
			t.setTitle(t.GenericTitle())
		}
	}
}

// Closed drops a closed window. If it was the eligible one, the host
// falls back to the generic title.
func (t *ToplevelTracker) Closed(h ToplevelHandle) {
	if _, ok := t.windows[h]; !ok {
		return
	}

	if t.current == h {
		t.current = nil
		t.setTitle(t.GenericTitle())
	}

	if err := h.Destroy(); err != nil {
		logger.Debugf("Failed to destroy toplevel handle: %v", err)
	}
	delete(t.windows, h)
}

// Shutdown drops every tracked window.
func (t *ToplevelTracker) Shutdown() {
	for h := range t.windows {
		t.Closed(h)
	}
}

// SetGenericTitle pushes the fallback title to the host.
func (t *ToplevelTracker) SetGenericTitle() {
	t.setTitle(t.GenericTitle())
}

// GenericTitle is the title shown when no window is eligible.
func (t *ToplevelTracker) GenericTitle() string {
	return fmt.Sprintf("Remote desktop [%s %s %s]", t.displayName, t.outputName, t.seatName)
}

func (t *ToplevelTracker) fullscreenTitle(w *windowState) string {
	return fmt.Sprintf("[%s] %s [%s %s %s]",
		w.appID, w.title, t.displayName, t.outputName, t.seatName)
}

func (t *ToplevelTracker) setTitle(title string) {
	if err := t.host.SetTitle(title); err != nil {
		logger.Warnf("Failed to set media title: %v", err)
	}
}
