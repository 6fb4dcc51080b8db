package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() (*ToplevelTracker, *fakeHost) {
	host := newFakeHost()
	return NewToplevelTracker(host, "wayland-1", "DP-1", "seat0"), host
}

func TestToplevelEligibilityTitle(t *testing.T) {
	tracker, host := newTestTracker()
	h := &fakeToplevelHandle{}

	tracker.Track(h)
	tracker.SetTitle(h, "Editor")
	tracker.SetAppID(h, "dev.editor")
	tracker.Commit(h)
	assert.Empty(t, host.titles, "not fullscreen, no title traffic")

	tracker.SetFullscreen(h, true)
	tracker.Commit(h)
	require.Len(t, host.titles, 1)
	assert.Equal(t, "[dev.editor] Editor [wayland-1 DP-1 seat0]", host.lastTitle())

	// Re-committing the same state is idempotent.
	tracker.Commit(h)
	assert.Len(t, host.titles, 1)

	tracker.SetFullscreen(h, false)
	tracker.Commit(h)
	require.Len(t, host.titles, 2)
	assert.Equal(t, "Remote desktop [wayland-1 DP-1 seat0]", host.lastTitle())

	// Still ineligible, still no traffic.
	tracker.Commit(h)
	assert.Len(t, host.titles, 2)
}

func TestToplevelVisibilityNotRequired(t *testing.T) {
	tracker, host := newTestTracker()
	h := &fakeToplevelHandle{}

	tracker.Track(h)
	tracker.SetTitle(h, "Player")
	tracker.SetAppID(h, "org.player")
	tracker.SetFullscreen(h, true)
	tracker.OutputEnter(h, true)
	tracker.OutputLeave(h, true)
	tracker.Commit(h)

	// The window left the remote output but stays eligible.
	require.Len(t, host.titles, 1)
	assert.Equal(t, "[org.player] Player [wayland-1 DP-1 seat0]", host.lastTitle())
}

func TestToplevelEmptyStringsCount(t *testing.T) {
	tracker, host := newTestTracker()
	h := &fakeToplevelHandle{}

	tracker.Track(h)
	tracker.SetTitle(h, "")
	tracker.SetAppID(h, "")
	tracker.SetFullscreen(h, true)
	tracker.Commit(h)

	// Empty title and app ID events still count as set.
	require.Len(t, host.titles, 1)
	assert.Equal(t, "[] ", host.lastTitle()[:3])
}

func TestToplevelClosedFallsBackOnce(t *testing.T) {
	tracker, host := newTestTracker()
	h := &fakeToplevelHandle{}

	tracker.Track(h)
	tracker.SetTitle(h, "Editor")
	tracker.SetAppID(h, "dev.editor")
	tracker.SetFullscreen(h, true)
	tracker.Commit(h)
	require.Len(t, host.titles, 1)

	tracker.Closed(h)
	require.Len(t, host.titles, 2)
	assert.Equal(t, "Remote desktop [wayland-1 DP-1 seat0]", host.lastTitle())
	assert.True(t, h.destroyed)

	// A second close for the same handle is a no-op.
	tracker.Closed(h)
	assert.Len(t, host.titles, 2)
}

func TestToplevelCloseOfBackgroundWindow(t *testing.T) {
	tracker, host := newTestTracker()
	current := &fakeToplevelHandle{}
	other := &fakeToplevelHandle{}

	tracker.Track(current)
	tracker.SetTitle(current, "Editor")
	tracker.SetAppID(current, "dev.editor")
	tracker.SetFullscreen(current, true)
	tracker.Commit(current)

	tracker.Track(other)
	tracker.Closed(other)

	assert.True(t, other.destroyed)
	assert.Len(t, host.titles, 1, "closing a background window must not touch the title")
}

func TestToplevelEligibleWindowReplacement(t *testing.T) {
	tracker, host := newTestTracker()
	first := &fakeToplevelHandle{}
	second := &fakeToplevelHandle{}

	for _, h := range []*fakeToplevelHandle{first, second} {
		tracker.Track(h)
		tracker.SetAppID(h, "app")
		tracker.SetFullscreen(h, true)
	}
	tracker.SetTitle(first, "one")
	tracker.SetTitle(second, "two")

	tracker.Commit(first)
	tracker.Commit(second)

	require.Len(t, host.titles, 2)
	assert.Equal(t, "[app] two [wayland-1 DP-1 seat0]", host.lastTitle())
}

func TestToplevelEventsForUnknownHandle(t *testing.T) {
	tracker, host := newTestTracker()
	h := &fakeToplevelHandle{}

	tracker.SetTitle(h, "ghost")
	tracker.SetFullscreen(h, true)
	tracker.Commit(h)

	assert.Empty(t, host.titles)
}
