package bridge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/waylink/internal/mpv"
)

type testClipboardSetup struct {
	host     *fakeHost
	registry *Registry
	mirror   *ClipboardMirror
	device   *fakeClipboardDevice
	sources  []*fakeClipboardSource
	log      []string
}

func newTestClipboardSetup() *testClipboardSetup {
	s := &testClipboardSetup{host: newFakeHost()}
	s.registry = NewRegistry("DP-1", "seat0", func() { s.mirror.Reevaluate() })
	s.device = &fakeClipboardDevice{log: &s.log}

	s.mirror = NewClipboardMirror(s.host, s.registry,
		func() (ClipboardDevice, error) { return s.device, nil },
		func() (ClipboardSource, error) {
			src := &fakeClipboardSource{
				name: fmt.Sprintf("src%d", len(s.sources)+1),
				log:  &s.log,
			}
			s.sources = append(s.sources, src)
			return src, nil
		})
	s.mirror.SetAvailable(true)
	return s
}

func (s *testClipboardSetup) bindDevice() {
	s.registry.AddSeat(1, &fakeSeat{id: 20})
	s.registry.SeatNamed(1, "seat0")
	s.mirror.SetForwarding(true)
}

func TestClipboardDeviceGating(t *testing.T) {
	s := newTestClipboardSetup()

	s.mirror.SetForwarding(true)
	assert.False(t, s.mirror.DeviceBound(), "no seat, no device")

	s.registry.AddSeat(1, &fakeSeat{id: 20})
	s.registry.SeatNamed(1, "seat0")
	require.True(t, s.mirror.DeviceBound())

	// Binding observes the clipboard properties.
	assert.Equal(t, mpv.PropClipboardText, s.host.observed[mpv.IDClipboardText])
	assert.Equal(t, mpv.PropClipboardPrimary, s.host.observed[mpv.IDClipboardTextPrimary])

	// Toggling forwarding off does not destroy an existing device.
	s.mirror.SetForwarding(false)
	assert.True(t, s.mirror.DeviceBound())

	// Losing the seat does.
	s.registry.Remove(1)
	assert.False(t, s.mirror.DeviceBound())
	assert.True(t, s.device.destroyed)
}

func TestClipboardHostChangePublishesSource(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	s.mirror.HostSelectionChanged("hello", false)

	require.Len(t, s.sources, 1)
	src := s.sources[0]
	require.Len(t, src.offers, 6)
	assert.Equal(t, s.mirror.marker, src.offers[0])
	assert.Equal(t, []string{
		"text/plain;charset=utf-8", "text/plain", "TEXT", "STRING", "UTF8_STRING",
	}, src.offers[1:])
	assert.Equal(t, []string{"set-selection src1"}, s.log)
}

func TestClipboardSwapDestroysOldAfterSet(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	s.mirror.HostSelectionChanged("first", false)
	s.mirror.HostSelectionChanged("second", false)

	assert.Equal(t, []string{
		"set-selection src1",
		"set-selection src2",
		"destroy src1",
	}, s.log)
}

func TestClipboardEmptyTextClearsSelection(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	s.mirror.HostSelectionChanged("hello", true)
	s.mirror.HostSelectionChanged("", true)

	assert.Equal(t, []string{
		"set-primary src1",
		"set-primary nil",
	}, s.log)
	// The compositor answers the clear with a cancelled event; only
	// then is the old source destroyed.
	s.mirror.SourceCancelled(s.sources[0])
	assert.True(t, s.sources[0].destroyed)
}

func TestClipboardRolesAreIndependent(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	s.mirror.HostSelectionChanged("copy", false)
	s.mirror.HostSelectionChanged("select", true)

	assert.Equal(t, []string{
		"set-selection src1",
		"set-primary src2",
	}, s.log)

	// Each source serves its own role's text.
	r1, w1 := mustPipe(t)
	s.mirror.SourceSend(s.sources[0], "text/plain", int(w1.Fd()))
	w1.Close()
	assert.Equal(t, "copy", readAllString(t, r1))

	r2, w2 := mustPipe(t)
	s.mirror.SourceSend(s.sources[1], "UTF8_STRING", int(w2.Fd()))
	w2.Close()
	assert.Equal(t, "select", readAllString(t, r2))
}

func TestClipboardSourceSendMarker(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()
	s.mirror.HostSelectionChanged("secret", false)

	r, w := mustPipe(t)
	s.mirror.SourceSend(s.sources[0], s.mirror.marker, int(w.Fd()))
	w.Close()
	assert.Equal(t, markerPayload, readAllString(t, r))
}

func TestClipboardSourceSendUnknownMime(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()
	s.mirror.HostSelectionChanged("secret", false)

	r, w := mustPipe(t)
	s.mirror.SourceSend(s.sources[0], "image/png", int(w.Fd()))
	w.Close()
	assert.Empty(t, readAllString(t, r))
}

func TestClipboardReceivePushesToHost(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "incoming"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "application/octet-stream")
	s.mirror.OfferMime(7, "text/plain")
	s.mirror.SelectionCommitted(7, false)

	assert.Equal(t, []string{"text/plain"}, offer.received)
	assert.Equal(t, "incoming", s.host.props[mpv.PropClipboardText])
	assert.True(t, offer.destroyed)
}

func TestClipboardPreferredMimeWinsPermanently(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "x"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "text/plain;charset=utf-8")
	s.mirror.OfferMime(7, "STRING")
	s.mirror.SelectionCommitted(7, true)

	assert.Equal(t, []string{"text/plain;charset=utf-8"}, offer.received)
	assert.Equal(t, "x", s.host.props[mpv.PropClipboardPrimary])
}

func TestClipboardSelfOriginSuppressed(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "own text"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "text/plain")
	s.mirror.OfferMime(7, s.mirror.marker)
	s.mirror.OfferMime(7, "UTF8_STRING")
	s.mirror.SelectionCommitted(7, false)

	assert.Empty(t, offer.received, "own selection must not be read back")
	assert.NotContains(t, s.host.props, mpv.PropClipboardText)
	assert.True(t, offer.destroyed)
}

func TestClipboardEmptyPayloadNotPushed(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: ""}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "text/plain")
	s.mirror.SelectionCommitted(7, false)

	assert.Equal(t, []string{"text/plain"}, offer.received)
	assert.NotContains(t, s.host.props, mpv.PropClipboardText)
}

func TestClipboardNoUsableMime(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "binary"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "image/png")
	s.mirror.SelectionCommitted(7, false)

	assert.Empty(t, offer.received)
	assert.True(t, offer.destroyed)
}

func TestClipboardSequencingViolation(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "data"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.OfferMime(7, "text/plain")

	// A selection event for an offer we are not tracking is ignored.
	s.mirror.SelectionCommitted(9, false)
	assert.False(t, offer.destroyed)
	assert.NotContains(t, s.host.props, mpv.PropClipboardText)

	// The tracked offer still commits normally afterwards.
	s.mirror.SelectionCommitted(7, false)
	assert.Equal(t, "data", s.host.props[mpv.PropClipboardText])
	assert.True(t, offer.destroyed)
}

func TestClipboardNullSelectionDropsPending(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	offer := &fakeClipboardOffer{payload: "data"}
	s.mirror.OfferAnnounced(offer, 7)
	s.mirror.SelectionCommitted(0, false)

	assert.True(t, offer.destroyed)
	assert.Empty(t, offer.received)
}

func TestClipboardHostChangeWithoutDevice(t *testing.T) {
	s := newTestClipboardSetup()

	s.mirror.HostSelectionChanged("hello", false)
	assert.Empty(t, s.sources)
	assert.Empty(t, s.log)
}

func TestClipboardDeviceFinished(t *testing.T) {
	s := newTestClipboardSetup()
	s.bindDevice()

	s.mirror.DeviceFinished()
	assert.False(t, s.mirror.DeviceBound())
	assert.True(t, s.device.destroyed)
	assert.Contains(t, s.host.unobserved, uint(mpv.IDClipboardText))
}
