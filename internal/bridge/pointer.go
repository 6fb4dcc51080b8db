package bridge

import (
	"time"

	"github.com/bnema/waylink/internal/geometry"
	"github.com/bnema/waylink/internal/logger"
	"github.com/bnema/waylink/internal/mpv"
)

// PointerMirror forwards host pointer positions to a virtual pointer
// on the remote compositor, and remote cursor warps back to the host.
// The device exists exactly while the gating predicate holds: remote
// output and seat resolved, forwarding enabled, force-grab off.
type PointerMirror struct {
	host     Host
	registry *Registry
	create   func() (PointerDevice, error)

	device     PointerDevice
	viewport   geometry.Viewport
	frame      geometry.FrameSize
	forwarding bool
	forceGrab  bool

	// Monotonic millisecond clock for motion timestamps.
	now func() uint32
}

// NewPointerMirror creates a mirror whose device is built by create
// when the gate opens.
func NewPointerMirror(host Host, registry *Registry, create func() (PointerDevice, error)) *PointerMirror {
	start := time.Now()
	return &PointerMirror{
		host:     host,
		registry: registry,
		create:   create,
		now: func() uint32 {
			return uint32(time.Since(start).Milliseconds())
		},
	}
}

func (p *PointerMirror) gate() bool {
	return p.registry.HasOutput() && p.registry.HasSeat() &&
		p.forwarding && !p.forceGrab
}

// Reevaluate creates or destroys the device to match the gating
// predicate. Transitions happen at most once per call.
func (p *PointerMirror) Reevaluate() {
	if p.device != nil && !p.gate() {
		p.unbind()
	}
	if p.device == nil && p.gate() {
		p.bind()
	}
}

func (p *PointerMirror) bind() {
	device, err := p.create()
	if err != nil {
		logger.Errorf("Failed to create virtual pointer: %v", err)
		return
	}
	p.device = device

	if err := p.host.Observe(mpv.IDMousePos, mpv.PropMousePos); err != nil {
		logger.Warnf("Failed to observe the %s property: %v", mpv.PropMousePos, err)
	}
}

func (p *PointerMirror) unbind() {
	if err := p.device.Destroy(); err != nil {
		logger.Debugf("Failed to destroy virtual pointer: %v", err)
	}
	p.device = nil

	if err := p.host.Unobserve(mpv.IDMousePos); err != nil {
		logger.Warnf("Failed to unobserve the %s property: %v", mpv.PropMousePos, err)
	}
}

// Bound reports whether the virtual pointer currently exists.
func (p *PointerMirror) Bound() bool {
	return p.device != nil
}

// SetForwarding applies the host's forwarding flag.
func (p *PointerMirror) SetForwarding(enabled bool) {
	p.forwarding = enabled
	p.Reevaluate()
}

// SetForceGrab applies the host's force-grab flag. Grabbing the
// cursor locally and mirroring it remotely are mutually exclusive.
func (p *PointerMirror) SetForceGrab(enabled bool) {
	p.forceGrab = enabled
	p.Reevaluate()
}

// ViewportChanged caches the host's video viewport.
func (p *PointerMirror) ViewportChanged(vp geometry.Viewport) {
	p.viewport = vp
}

// FrameSizeChanged caches the host's video frame size.
func (p *PointerMirror) FrameSizeChanged(fr geometry.FrameSize) {
	p.frame = fr
}

// HostPointerMoved maps a host pointer position into the remote frame
// and emits a motion_absolute plus frame pair. Positions outside a
// usable viewport are suppressed.
func (p *PointerMirror) HostPointerMoved(x, y int64) {
	if p.device == nil {
		return
	}

	rx, ry, ok := geometry.ToRemote(x, y, p.viewport, p.frame)
	if !ok {
		return
	}

	ts := p.now()
	if err := p.device.MotionAbsolute(ts, uint32(rx), uint32(ry), uint32(p.frame.W), uint32(p.frame.H)); err != nil {
		logger.Warnf("Failed to send pointer motion: %v", err)
		return
	}
	if err := p.device.Frame(); err != nil {
		logger.Warnf("Failed to send pointer frame: %v", err)
	}
}

// RemoteCursorWarp maps a remote cursor warp, given in compositor
// layout coordinates, back into the host's viewport and pushes it as
// the host pointer position. originX/originY is the remote output's
// layout position.
func (p *PointerMirror) RemoteCursorWarp(lx, ly, originX, originY int64) {
	x, y, ok := geometry.ToLocal(lx-originX, ly-originY, p.viewport, p.frame)
	if !ok {
		return
	}

	if err := p.host.SetMousePos(x, y); err != nil {
		logger.Warnf("Failed to push pointer position to host: %v", err)
	}
}

// Shutdown destroys the device if it exists.
func (p *PointerMirror) Shutdown() {
	if p.device != nil {
		p.unbind()
	}
}
