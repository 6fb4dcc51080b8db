package bridge

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/bnema/waylink/internal/logger"
	"github.com/bnema/waylink/internal/mpv"
)

// UTF-8 or ambiguous text MIME types, in preference order.
// Applications hopefully offer text/plain;charset=utf-8 first.
var utf8Mimes = []string{
	"text/plain;charset=utf-8",
	"text/plain",
	"TEXT",
	"STRING",
	"UTF8_STRING",
}

// markerPayload is what a marker MIME transfer carries. The content is
// irrelevant; the MIME type's presence on an offer is what identifies
// our own selections.
const markerPayload = "waylink"

// NewMarkerMime generates the per-process marker MIME type.
func NewMarkerMime() string {
	return fmt.Sprintf("x-waylink-%08x", rand.Uint32())
}

type ownedSelection struct {
	source ClipboardSource
	text   string
}

// ClipboardMirror keeps the host's clipboard properties and the remote
// seat's selections in sync, both regular and primary. Remote-bound
// text is published as a source offering the text MIMEs plus a random
// per-process marker MIME; seeing the marker on an incoming offer
// means the selection is our own and must not be echoed back.
type ClipboardMirror struct {
	host       Host
	registry   *Registry
	bindDevice func() (ClipboardDevice, error)
	newSource  func() (ClipboardSource, error)

	device     ClipboardDevice
	available  bool
	forwarding bool
	marker     string

	regular ownedSelection
	primary ownedSelection

	// The single outstanding incoming offer.
	offer     ClipboardOffer
	offerID   uint32
	offerMime int
	offerOwn  bool
}

// NewClipboardMirror creates a mirror. bindDevice builds the data
// device for the resolved seat; newSource builds an outgoing source
// with its send and cancelled handlers wired back to this mirror.
func NewClipboardMirror(host Host, registry *Registry, bindDevice func() (ClipboardDevice, error), newSource func() (ClipboardSource, error)) *ClipboardMirror {
	return &ClipboardMirror{
		host:       host,
		registry:   registry,
		bindDevice: bindDevice,
		newSource:  newSource,
		marker:     NewMarkerMime(),
		offerMime:  -1,
	}
}

// SetAvailable marks whether the compositor offers clipboard
// management at all. Without it the mirror stays inert.
func (c *ClipboardMirror) SetAvailable(available bool) {
	c.available = available
}

// SetForwarding applies the host's forwarding flag.
func (c *ClipboardMirror) SetForwarding(enabled bool) {
	c.forwarding = enabled
	c.Reevaluate()
}

// Reevaluate creates the data device when the seat is resolved and
// forwarding is on, and tears it down when the seat goes away. A
// forwarding toggle alone does not destroy an existing device.
func (c *ClipboardMirror) Reevaluate() {
	if c.device != nil && !c.registry.HasSeat() {
		c.teardownDevice()
	}
	if c.device == nil && c.available && c.registry.HasSeat() && c.forwarding {
		c.bind()
	}
}

func (c *ClipboardMirror) bind() {
	device, err := c.bindDevice()
	if err != nil {
		logger.Errorf("Failed to create data control device: %v", err)
		return
	}
	c.device = device

	if err := c.host.Observe(mpv.IDClipboardText, mpv.PropClipboardText); err != nil {
		logger.Warnf("Failed to observe the %s property: %v", mpv.PropClipboardText, err)
	}
	if err := c.host.Observe(mpv.IDClipboardTextPrimary, mpv.PropClipboardPrimary); err != nil {
		logger.Warnf("Failed to observe the %s property: %v", mpv.PropClipboardPrimary, err)
	}
}

func (c *ClipboardMirror) teardownDevice() {
	if err := c.device.Destroy(); err != nil {
		logger.Debugf("Failed to destroy data control device: %v", err)
	}
	c.device = nil

	if err := c.host.Unobserve(mpv.IDClipboardText); err != nil {
		logger.Warnf("Failed to unobserve the %s property: %v", mpv.PropClipboardText, err)
	}
	if err := c.host.Unobserve(mpv.IDClipboardTextPrimary); err != nil {
		logger.Warnf("Failed to unobserve the %s property: %v", mpv.PropClipboardPrimary, err)
	}
}

// DeviceBound reports whether the data device currently exists.
func (c *ClipboardMirror) DeviceBound() bool {
	return c.device != nil
}

// HostSelectionChanged publishes a host clipboard change to the remote
// seat. Empty text clears the selection. The previous source is
// destroyed only after the new one is installed, so the selection
// never falls back to a stale owner in between.
func (c *ClipboardMirror) HostSelectionChanged(text string, primary bool) {
	if c.device == nil {
		return
	}

	sel := &c.regular
	if primary {
		sel = &c.primary
	}

	if text == "" {
		c.setSelection(nil, primary)
		return
	}

	source, err := c.newSource()
	if err != nil {
		logger.Errorf("Failed to create data control source: %v", err)
		return
	}

	if err := source.Offer(c.marker); err != nil {
		logger.Warnf("Failed to offer marker MIME type: %v", err)
	}
	for _, mime := range utf8Mimes {
		if err := source.Offer(mime); err != nil {
			logger.Warnf("Failed to offer MIME type %s: %v", mime, err)
		}
	}

	old := *sel
	sel.source = source
	sel.text = text
	c.setSelection(source, primary)

	if old.source != nil {
		if err := old.source.Destroy(); err != nil {
			logger.Debugf("Failed to destroy replaced source: %v", err)
		}
	}
}

func (c *ClipboardMirror) setSelection(source ClipboardSource, primary bool) {
	var err error
	if primary {
		err = c.device.SetPrimarySelection(source)
	} else {
		err = c.device.SetSelection(source)
	}
	if err != nil {
		logger.Warnf("Failed to set remote selection: %v", err)
	}
}

// SourceSend serves a transfer request against one of our sources:
// the owned text for any text MIME, the marker payload for the marker
// MIME, nothing otherwise. The descriptor is closed on every path.
func (c *ClipboardMirror) SourceSend(source ClipboardSource, mime string, fd int) {
	file := os.NewFile(uintptr(fd), "clipboard-transfer")
	if file == nil {
		return
	}
	defer file.Close()

	var payload string
	switch {
	case c.isTextMime(mime):
		switch source {
		case c.regular.source:
			payload = c.regular.text
		case c.primary.source:
			payload = c.primary.text
		default:
			return
		}
	case mime == c.marker:
		payload = markerPayload
	default:
		return
	}

	if _, err := file.WriteString(payload); err != nil {
		logger.Warnf("Failed to write clipboard payload: %v", err)
	}
}

// SourceCancelled destroys a source the compositor no longer wants.
func (c *ClipboardMirror) SourceCancelled(source ClipboardSource) {
	switch source {
	case c.regular.source:
		c.regular = ownedSelection{}
	case c.primary.source:
		c.primary = ownedSelection{}
	default:
		return
	}

	if err := source.Destroy(); err != nil {
		logger.Debugf("Failed to destroy cancelled source: %v", err)
	}
}

// OfferAnnounced starts tracking an incoming offer. Its MIME types
// stream in next; a selection event commits it.
func (c *ClipboardMirror) OfferAnnounced(offer ClipboardOffer, proxyID uint32) {
	if c.offer != nil {
		logger.Debugf("Replacing an uncommitted data offer")
	}
	c.offer = offer
	c.offerID = proxyID
	c.offerMime = -1
	c.offerOwn = false
}

// OfferMime records an advertised MIME type of the outstanding offer.
// The marker MIME flags the offer as our own; otherwise the last
// matching text MIME wins, except that the most preferred one is
// never displaced.
func (c *ClipboardMirror) OfferMime(proxyID uint32, mime string) {
	if c.offer == nil || proxyID != c.offerID {
		logger.Warnf("Unexpected data offer MIME event, shouldn't happen")
		return
	}

	if c.offerOwn {
		return
	}

	if mime == c.marker {
		c.offerOwn = true
		return
	}

	if c.offerMime == 0 {
		return
	}

	for i, m := range utf8Mimes {
		if mime == m {
			c.offerMime = i
			return
		}
	}
}

// SelectionCommitted handles a selection or primary_selection event.
// A zero proxy ID means the selection became empty. Committing an
// offer we are not tracking is a protocol-sequencing violation and is
// ignored. Our own selections are dropped without reading.
func (c *ClipboardMirror) SelectionCommitted(proxyID uint32, primary bool) {
	if proxyID == 0 {
		if c.offer != nil {
			c.dropOffer()
		}
		return
	}

	if c.offer == nil || proxyID != c.offerID {
		logger.Warnf("Unexpected data offer selection event, shouldn't happen")
		return
	}

	if !c.offerOwn && c.offerMime != -1 {
		c.receiveOffer(primary)
	}

	c.dropOffer()
}

// receiveOffer reads the outstanding offer's payload through a pipe
// and pushes it to the host. This blocks the event loop until the
// owning client closes the transfer pipe; there is deliberately no
// timeout.
func (c *ClipboardMirror) receiveOffer(primary bool) {
	r, w, err := os.Pipe()
	if err != nil {
		logger.Errorf("Failed to create transfer pipe: %v", err)
		return
	}

	if err := c.offer.Receive(utf8Mimes[c.offerMime], int(w.Fd())); err != nil {
		logger.Warnf("Failed to request clipboard transfer: %v", err)
		w.Close()
		r.Close()
		return
	}
	w.Close()

	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		logger.Warnf("Failed to read clipboard payload: %v", err)
		return
	}

	if len(data) == 0 {
		return
	}

	prop := mpv.PropClipboardText
	if primary {
		prop = mpv.PropClipboardPrimary
	}
	if err := c.host.SetString(prop, string(data)); err != nil {
		logger.Warnf("Failed to push clipboard text to host: %v", err)
	}
}

func (c *ClipboardMirror) dropOffer() {
	if err := c.offer.Destroy(); err != nil {
		logger.Debugf("Failed to destroy data offer: %v", err)
	}
	c.offer = nil
	c.offerID = 0
	c.offerMime = -1
	c.offerOwn = false
}

// DeviceFinished handles the compositor revoking our data device.
// Clipboard mirroring degrades off until the seat is resolved again.
func (c *ClipboardMirror) DeviceFinished() {
	logger.Warnf("Compositor is finished with our data control device for some reason")
	if c.device != nil {
		c.teardownDevice()
	}
}

func (c *ClipboardMirror) isTextMime(mime string) bool {
	for _, m := range utf8Mimes {
		if mime == m {
			return true
		}
	}
	return false
}

// Shutdown destroys the owned sources and the device.
func (c *ClipboardMirror) Shutdown() {
	if c.regular.source != nil {
		if err := c.regular.source.Destroy(); err != nil {
			logger.Debugf("Failed to destroy selection source: %v", err)
		}
		c.regular = ownedSelection{}
	}
	if c.primary.source != nil {
		if err := c.primary.source.Destroy(); err != nil {
			logger.Debugf("Failed to destroy primary selection source: %v", err)
		}
		c.primary = ownedSelection{}
	}
	if c.device != nil {
		c.teardownDevice()
	}
}
