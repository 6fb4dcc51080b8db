package bridge

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	return r, w
}

func readAllString(t *testing.T, r *os.File) string {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	return string(data)
}

// fakeHost records everything the bridge pushes to the player.
type fakeHost struct {
	titles     []string
	mouseX     []int64
	mouseY     []int64
	props      map[string]string
	observed   map[uint]string
	unobserved []uint
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		props:    make(map[string]string),
		observed: make(map[uint]string),
	}
}

func (h *fakeHost) SetTitle(title string) error {
	h.titles = append(h.titles, title)
	return nil
}

func (h *fakeHost) SetMousePos(x, y int64) error {
	h.mouseX = append(h.mouseX, x)
	h.mouseY = append(h.mouseY, y)
	return nil
}

func (h *fakeHost) SetString(name, value string) error {
	h.props[name] = value
	return nil
}

func (h *fakeHost) Observe(id uint, name string) error {
	h.observed[id] = name
	return nil
}

func (h *fakeHost) Unobserve(id uint) error {
	h.unobserved = append(h.unobserved, id)
	delete(h.observed, id)
	return nil
}

func (h *fakeHost) lastTitle() string {
	if len(h.titles) == 0 {
		return ""
	}
	return h.titles[len(h.titles)-1]
}

type fakeOutput struct {
	id       uint32
	released bool
}

func (o *fakeOutput) ID() uint32 { return o.id }

func (o *fakeOutput) Release() error {
	o.released = true
	return nil
}

type fakeSeat struct {
	id        uint32
	destroyed bool
}

func (s *fakeSeat) ID() uint32 { return s.id }

func (s *fakeSeat) Destroy() error {
	s.destroyed = true
	return nil
}

// fakePointerDevice records the request sequence, so tests can check
// motion/frame pairing.
type fakePointerDevice struct {
	requests  []string
	destroyed bool
}

func (p *fakePointerDevice) MotionAbsolute(_, x, y, xExtent, yExtent uint32) error {
	p.requests = append(p.requests, fmt.Sprintf("motion %d,%d %dx%d", x, y, xExtent, yExtent))
	return nil
}

func (p *fakePointerDevice) Frame() error {
	p.requests = append(p.requests, "frame")
	return nil
}

func (p *fakePointerDevice) Destroy() error {
	p.destroyed = true
	return nil
}

type fakeToplevelHandle struct {
	destroyed bool
}

func (h *fakeToplevelHandle) Destroy() error {
	h.destroyed = true
	return nil
}

// The clipboard fakes share an operation log so tests can check
// ordering across objects.
type fakeClipboardSource struct {
	name      string
	log       *[]string
	offers    []string
	destroyed bool
}

func (s *fakeClipboardSource) Offer(mime string) error {
	s.offers = append(s.offers, mime)
	return nil
}

func (s *fakeClipboardSource) Destroy() error {
	s.destroyed = true
	*s.log = append(*s.log, "destroy "+s.name)
	return nil
}

type fakeClipboardDevice struct {
	log       *[]string
	destroyed bool
}

func (d *fakeClipboardDevice) SetSelection(source ClipboardSource) error {
	d.record("set-selection", source)
	return nil
}

func (d *fakeClipboardDevice) SetPrimarySelection(source ClipboardSource) error {
	d.record("set-primary", source)
	return nil
}

func (d *fakeClipboardDevice) record(op string, source ClipboardSource) {
	if source == nil {
		*d.log = append(*d.log, op+" nil")
		return
	}
	*d.log = append(*d.log, op+" "+source.(*fakeClipboardSource).name)
}

func (d *fakeClipboardDevice) Destroy() error {
	d.destroyed = true
	*d.log = append(*d.log, "destroy device")
	return nil
}

// fakeClipboardOffer plays the remote end of a transfer: Receive
// writes the canned payload into the descriptor.
type fakeClipboardOffer struct {
	payload   string
	received  []string
	destroyed bool
}

func (o *fakeClipboardOffer) Receive(mime string, fd int) error {
	o.received = append(o.received, mime)
	if o.payload != "" {
		if _, err := syscall.Write(fd, []byte(o.payload)); err != nil {
			return err
		}
	}
	return nil
}

func (o *fakeClipboardOffer) Destroy() error {
	o.destroyed = true
	return nil
}
