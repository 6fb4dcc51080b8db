package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/dexterlb/mpvipc"
	"github.com/bnema/waylink/internal/logger"
	"github.com/bnema/waylink/internal/mpv"
	"github.com/bnema/waylink/internal/protocols"
	"github.com/bnema/waylink/internal/sway"
	"github.com/bnema/waylink/internal/wayland"
)

// Bridge owns the whole synchronization state and the event loop. One
// goroutine (the one calling Run) executes everything; the session,
// host and compositor IPC adapters feed it through channels.
type Bridge struct {
	host    *mpv.Client
	session *wayland.Session
	sway    *sway.Client

	displayName string
	outputName  string
	seatName    string

	pointerManager  *protocols.VirtualPointerManager
	toplevelManager *protocols.ForeignToplevelManager
	dataManager     *protocols.DataControlManager

	registry  *Registry
	toplevels *ToplevelTracker
	pointer   *PointerMirror
	clipboard *ClipboardMirror

	// Layout position of the remote output, subtracted from cursor
	// warp coordinates.
	layoutX int64
	layoutY int64
}

// New wires a bridge between the host and the session. The sway
// client is optional. The session must not have synced yet; New
// installs the registry callbacks that the initial roundtrips feed.
func New(host *mpv.Client, session *wayland.Session, swayClient *sway.Client, displayName, outputName, seatName string) *Bridge {
	b := &Bridge{
		host:        host,
		session:     session,
		sway:        swayClient,
		displayName: displayName,
		outputName:  outputName,
		seatName:    seatName,
	}

	b.registry = NewRegistry(outputName, seatName, func() {
		b.pointer.Reevaluate()
		b.clipboard.Reevaluate()
	})
	b.toplevels = NewToplevelTracker(host, displayName, outputName, seatName)
	b.pointer = NewPointerMirror(host, b.registry, b.createVirtualPointer)
	b.clipboard = NewClipboardMirror(host, b.registry, b.bindClipboardDevice, b.newClipboardSource)

	session.OnNewOutput = func(global uint32, output *protocols.Output) {
		output.SetNameHandler(func(name string) {
			session.Post(func() { b.registry.OutputNamed(global, name) })
		})
		session.Post(func() { b.registry.AddOutput(global, output) })
	}
	session.OnNewSeat = func(global uint32, seat *protocols.Seat) {
		seat.SetNameHandler(func(name string) {
			session.Post(func() { b.registry.SeatNamed(global, name) })
		})
		session.Post(func() { b.registry.AddSeat(global, seat) })
	}
	session.OnGlobalRemoved = func(global uint32) {
		session.Post(func() { b.registry.Remove(global) })
	}

	return b
}

// Setup performs the initial synchronization: registry roundtrips,
// manager binding, compositor IPC subscription, the generic title and
// the host property observers. The virtual pointer manager is the one
// hard requirement; the other extensions degrade to disabled features.
func (b *Bridge) Setup() error {
	if err := b.session.Sync(); err != nil {
		return err
	}

	if !b.session.HasVirtualPointer() {
		return fmt.Errorf("required virtual pointer manager is unavailable on the remote compositor")
	}
	pointerManager, err := b.session.BindVirtualPointerManager()
	if err != nil {
		return err
	}
	b.pointerManager = pointerManager

	toplevelManager, err := b.session.BindForeignToplevelManager()
	if err != nil {
		logger.Warnf("Optional foreign toplevel manager is unavailable, the media title won't track fullscreen windows: %v", err)
	} else {
		b.toplevelManager = toplevelManager
		b.wireToplevelManager()
	}

	dataManager, err := b.session.BindDataControlManager()
	if err != nil {
		logger.Warnf("Optional data control manager is unavailable, clipboard synchronization won't work: %v", err)
	} else {
		b.dataManager = dataManager
		b.clipboard.SetAvailable(true)
	}

	if b.sway != nil {
		if err := b.sway.Subscribe("shutdown", "output", "cursor_warp"); err != nil {
			logger.Warnf("Failed to subscribe to compositor IPC events, pointer warps won't be relayed: %v", err)
			b.sway.Close()
			b.sway = nil
		} else {
			b.updateLayoutOrigin()
		}
	}

	b.toplevels.SetGenericTitle()

	if err := b.host.Observe(mpv.IDOsdDimensions, mpv.PropOsdDimensions); err != nil {
		return fmt.Errorf("failed to observe the %s property: %w", mpv.PropOsdDimensions, err)
	}
	if err := b.host.Observe(mpv.IDVideoParams, mpv.PropVideoParams); err != nil {
		return fmt.Errorf("failed to observe the %s property: %w", mpv.PropVideoParams, err)
	}
	if err := b.host.Observe(mpv.IDInputForwarding, mpv.PropInputForwarding); err != nil {
		return fmt.Errorf("failed to observe the %s property: %w", mpv.PropInputForwarding, err)
	}
	if err := b.host.Observe(mpv.IDForceGrabCursor, mpv.PropForceGrabCursor); err != nil {
		return fmt.Errorf("failed to observe the %s property: %w", mpv.PropForceGrabCursor, err)
	}

	forwarding := initialFlag(mpv.PropInputForwarding, b.host.GetBool, true)
	forceGrab := initialFlag(mpv.PropForceGrabCursor, b.host.GetBool, false)
	b.pointer.SetForwarding(forwarding)
	b.pointer.SetForceGrab(forceGrab)
	b.clipboard.SetForwarding(forwarding)

	return nil
}

// initialFlag reads a flag property's startup value. An unreadable
// property falls back to the given default; forwarding defaults on, so
// a host that sets the flag late still gets a live bridge.
func initialFlag(name string, read func(string) (bool, error), fallback bool) bool {
	value, err := read(name)
	if err != nil {
		logger.Warnf("Failed to read the %s property, assuming %v: %v", name, fallback, err)
		return fallback
	}
	return value
}

// Run executes the event loop until the host shuts down, the
// compositor reports shutdown, or a connection is lost. A nil return
// is a graceful exit.
func (b *Bridge) Run() error {
	b.session.Start()

	for {
		select {
		case fn := <-b.session.Events():
			fn()
			b.drainSession()

		case err := <-b.session.Done():
			return err

		case <-b.host.Closed():
			return fmt.Errorf("lost connection to mpv")

		case event, ok := <-b.host.Events():
			if !ok {
				return fmt.Errorf("lost connection to mpv")
			}
			if b.handleHostEvent(event) {
				return nil
			}
			if done, err := b.drainHost(); done || err != nil {
				return err
			}

		case event, ok := <-b.swayEvents():
			if !ok {
				return fmt.Errorf("error or hangup on the compositor IPC connection")
			}
			if b.handleSwayEvent(event) {
				return nil
			}
			if done, err := b.drainSway(); done || err != nil {
				return err
			}
		}
	}
}

// swayEvents returns the compositor IPC stream, or a channel that
// never becomes ready when the IPC side is disabled.
func (b *Bridge) swayEvents() <-chan sway.Event {
	if b.sway == nil {
		return nil
	}
	return b.sway.Events()
}

func (b *Bridge) drainSession() {
	for {
		select {
		case fn := <-b.session.Events():
			fn()
		default:
			return
		}
	}
}

func (b *Bridge) drainHost() (bool, error) {
	for {
		select {
		case event, ok := <-b.host.Events():
			if !ok {
				return false, fmt.Errorf("lost connection to mpv")
			}
			if b.handleHostEvent(event) {
				return true, nil
			}
		default:
			return false, nil
		}
	}
}

func (b *Bridge) drainSway() (bool, error) {
	for {
		select {
		case event, ok := <-b.sway.Events():
			if !ok {
				return false, fmt.Errorf("error or hangup on the compositor IPC connection")
			}
			if b.handleSwayEvent(event) {
				return true, nil
			}
		default:
			return false, nil
		}
	}
}

// handleHostEvent routes one host event. A true return means the host
// asked for shutdown.
func (b *Bridge) handleHostEvent(event *mpvipc.Event) bool {
	switch event.Name {
	case "shutdown":
		logger.Info("Host is shutting down")
		return true
	case "property-change":
		b.handlePropertyChange(event)
	}
	return false
}

// handlePropertyChange routes an observed property change by the
// reply ID it was registered under.
func (b *Bridge) handlePropertyChange(event *mpvipc.Event) {
	switch uint(event.ID) {
	case mpv.IDMousePos:
		x, y, ok := mpv.DecodeMousePos(event.Data)
		if !ok {
			logger.Warnf("%s property unavailable/error", mpv.PropMousePos)
			return
		}
		b.pointer.HostPointerMoved(x, y)

	case mpv.IDOsdDimensions:
		vp, ok := mpv.DecodeViewport(event.Data)
		if !ok {
			logger.Warnf("%s property unavailable/error", mpv.PropOsdDimensions)
			return
		}
		b.pointer.ViewportChanged(vp)

	case mpv.IDVideoParams:
		fr, ok := mpv.DecodeFrameSize(event.Data)
		if !ok {
			return
		}
		b.pointer.FrameSizeChanged(fr)

	case mpv.IDInputForwarding:
		value, ok := mpv.DecodeFlag(event.Data)
		if !ok {
			logger.Warnf("%s property unavailable/error", mpv.PropInputForwarding)
			return
		}
		b.pointer.SetForwarding(value)
		b.clipboard.SetForwarding(value)

	case mpv.IDForceGrabCursor:
		value, ok := mpv.DecodeFlag(event.Data)
		if !ok {
			logger.Warnf("%s property unavailable/error", mpv.PropForceGrabCursor)
			return
		}
		b.pointer.SetForceGrab(value)

	case mpv.IDClipboardText:
		text, ok := mpv.DecodeString(event.Data)
		if !ok {
			return
		}
		b.clipboard.HostSelectionChanged(text, false)

	case mpv.IDClipboardTextPrimary:
		text, ok := mpv.DecodeString(event.Data)
		if !ok {
			return
		}
		b.clipboard.HostSelectionChanged(text, true)
	}
}

// handleSwayEvent routes one compositor IPC event. A true return
// means the compositor reported shutdown.
func (b *Bridge) handleSwayEvent(event sway.Event) bool {
	switch event.Type {
	case sway.EventShutdown:
		logger.Info("Remote compositor is shutting down")
		return true

	case sway.EventOutput:
		b.updateLayoutOrigin()

	case sway.EventCursorWarp:
		var warp sway.CursorWarp
		if err := json.Unmarshal(event.Payload, &warp); err != nil {
			logger.Warnf("Malformed cursor warp payload: %v", err)
			return false
		}
		b.pointer.RemoteCursorWarp(int64(warp.LX), int64(warp.LY), b.layoutX, b.layoutY)
	}
	return false
}

// updateLayoutOrigin re-queries the remote output's position in the
// compositor's output layout.
func (b *Bridge) updateLayoutOrigin() {
	outputs, err := b.sway.Outputs()
	if err != nil {
		logger.Warnf("Failed to query compositor outputs: %v", err)
		return
	}

	for _, output := range outputs {
		if output.Name == b.outputName {
			b.layoutX = int64(output.Rect.X)
			b.layoutY = int64(output.Rect.Y)
			break
		}
	}
}

// wireToplevelManager routes the toplevel event stream into the
// tracker. Handlers run on the dispatch goroutine and only post.
func (b *Bridge) wireToplevelManager() {
	b.toplevelManager.SetToplevelHandler(func(handle *protocols.ForeignToplevelHandle) {
		b.wireToplevel(handle)
		b.session.Post(func() { b.toplevels.Track(handle) })
	})
	b.toplevelManager.SetFinishedHandler(func() {
		b.session.Post(func() {
			logger.Warnf("Compositor is finished with our toplevel manager for some reason")
		})
	})
}

func (b *Bridge) wireToplevel(handle *protocols.ForeignToplevelHandle) {
	handle.SetTitleHandler(func(title string) {
		b.session.Post(func() { b.toplevels.SetTitle(handle, title) })
	})
	handle.SetAppIDHandler(func(appID string) {
		b.session.Post(func() { b.toplevels.SetAppID(handle, appID) })
	})
	handle.SetOutputEnterHandler(func(outputID uint32) {
		b.session.Post(func() {
			b.toplevels.OutputEnter(handle, b.registry.IsRemoteOutputProxy(outputID))
		})
	})
	handle.SetOutputLeaveHandler(func(outputID uint32) {
		b.session.Post(func() {
			b.toplevels.OutputLeave(handle, b.registry.IsRemoteOutputProxy(outputID))
		})
	})
	handle.SetStateHandler(func(states []uint32) {
		fullscreen := false
		for _, state := range states {
			if state == protocols.ToplevelStateFullscreen {
				fullscreen = true
				break
			}
		}
		b.session.Post(func() { b.toplevels.SetFullscreen(handle, fullscreen) })
	})
	handle.SetDoneHandler(func() {
		b.session.Post(func() { b.toplevels.Commit(handle) })
	})
	handle.SetClosedHandler(func() {
		b.session.Post(func() { b.toplevels.Closed(handle) })
	})
}

// createVirtualPointer builds the virtual pointer for the resolved
// seat and output.
func (b *Bridge) createVirtualPointer() (PointerDevice, error) {
	seat, _ := b.registry.RemoteSeat().(*protocols.Seat)
	output, _ := b.registry.RemoteOutput().(*protocols.Output)
	if seat == nil || output == nil {
		return nil, fmt.Errorf("remote seat or output is not bound")
	}
	return b.pointerManager.CreateVirtualPointerWithOutput(seat, output)
}

// bindClipboardDevice builds the data device for the resolved seat
// and routes its event stream into the clipboard mirror.
func (b *Bridge) bindClipboardDevice() (ClipboardDevice, error) {
	seat, _ := b.registry.RemoteSeat().(*protocols.Seat)
	if seat == nil {
		return nil, fmt.Errorf("remote seat is not bound")
	}

	device, err := b.dataManager.GetDataDevice(seat)
	if err != nil {
		return nil, err
	}

	device.SetDataOfferHandler(func(offer *protocols.DataControlOffer) {
		offerID := offer.ID()
		offer.SetOfferHandler(func(mime string) {
			b.session.Post(func() { b.clipboard.OfferMime(offerID, mime) })
		})
		b.session.Post(func() { b.clipboard.OfferAnnounced(offer, offerID) })
	})
	device.SetSelectionHandler(func(offerID uint32) {
		b.session.Post(func() { b.clipboard.SelectionCommitted(offerID, false) })
	})
	device.SetPrimarySelectionHandler(func(offerID uint32) {
		b.session.Post(func() { b.clipboard.SelectionCommitted(offerID, true) })
	})
	device.SetFinishedHandler(func() {
		b.session.Post(func() { b.clipboard.DeviceFinished() })
	})

	return clipboardDevice{device}, nil
}

// newClipboardSource builds an outgoing source with its transfer
// events routed into the clipboard mirror.
func (b *Bridge) newClipboardSource() (ClipboardSource, error) {
	source, err := b.dataManager.CreateDataSource()
	if err != nil {
		return nil, err
	}

	source.SetSendHandler(func(mime string, fd int) {
		b.session.Post(func() { b.clipboard.SourceSend(source, mime, fd) })
	})
	source.SetCancelledHandler(func() {
		b.session.Post(func() { b.clipboard.SourceCancelled(source) })
	})

	return source, nil
}

// Shutdown tears everything down in dependency order: globals first
// (cascading the devices bound to them), then windows, sources and
// managers, finally the connections and the host title.
func (b *Bridge) Shutdown() {
	b.registry.Shutdown()
	b.toplevels.Shutdown()
	b.clipboard.Shutdown()

	if b.dataManager != nil {
		if err := b.dataManager.Destroy(); err != nil {
			logger.Debugf("Failed to destroy data control manager: %v", err)
		}
	}
	if b.toplevelManager != nil {
		if err := b.toplevelManager.Stop(); err != nil {
			logger.Debugf("Failed to stop toplevel manager: %v", err)
		}
	}
	b.pointer.Shutdown()
	if b.pointerManager != nil {
		if err := b.pointerManager.Destroy(); err != nil {
			logger.Debugf("Failed to destroy virtual pointer manager: %v", err)
		}
	}

	b.session.Close()
	if b.sway != nil {
		b.sway.Close()
	}

	if err := b.host.SetTitle(""); err != nil {
		logger.Debugf("Failed to clear media title: %v", err)
	}
}

// clipboardDevice adapts the protocol device to the mirror's
// interface, unwrapping the concrete source type.
type clipboardDevice struct {
	device *protocols.DataControlDevice
}

func (d clipboardDevice) SetSelection(source ClipboardSource) error {
	return d.device.SetSelection(concreteSource(source))
}

func (d clipboardDevice) SetPrimarySelection(source ClipboardSource) error {
	return d.device.SetPrimarySelection(concreteSource(source))
}

func (d clipboardDevice) Destroy() error {
	return d.device.Destroy()
}

func concreteSource(source ClipboardSource) *protocols.DataControlSource {
	if source == nil {
		return nil
	}
	return source.(*protocols.DataControlSource)
}
