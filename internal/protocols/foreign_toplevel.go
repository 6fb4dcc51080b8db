package protocols

import (
	"encoding/binary"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names
const (
	ForeignToplevelManagerInterface = "zwlr_foreign_toplevel_manager_v1"
	ForeignToplevelHandleInterface  = "zwlr_foreign_toplevel_handle_v1"
)

// Toplevel state values from the protocol's state enum
const (
	ToplevelStateMaximized  uint32 = 0
	ToplevelStateMinimized  uint32 = 1
	ToplevelStateActivated  uint32 = 2
	ToplevelStateFullscreen uint32 = 3
)

// ForeignToplevelManager tracks the compositor's toplevel windows.
// Each mapped window is announced as a ForeignToplevelHandle.
type ForeignToplevelManager struct {
	wl.BaseProxy

	toplevelHandler func(*ForeignToplevelHandle)
	finishedHandler func()
}

// NewForeignToplevelManager creates a new foreign toplevel manager
// proxy. The caller binds it to the advertised global.
func NewForeignToplevelManager(ctx *wl.Context) *ForeignToplevelManager {
	manager := &ForeignToplevelManager{}
	manager.SetContext(ctx)
	ctx.Register(manager)
	return manager
}

// SetToplevelHandler sets the handler for new toplevel announcements
func (m *ForeignToplevelManager) SetToplevelHandler(handler func(*ForeignToplevelHandle)) {
	m.toplevelHandler = handler
}

// SetFinishedHandler sets the handler for the finished event
func (m *ForeignToplevelManager) SetFinishedHandler(handler func()) {
	m.finishedHandler = handler
}

// Stop asks the compositor to stop announcing toplevels. The
// compositor answers with a finished event.
func (m *ForeignToplevelManager) Stop() error {
	// Opcode 0: stop
	const opcode = 0
	return m.Context().SendRequest(m, opcode)
}

// Dispatch handles incoming events
func (m *ForeignToplevelManager) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // toplevel
		proxy := event.NewID()
		handle := &ForeignToplevelHandle{}
		handle.SetID(proxy.ID())
		handle.SetContext(m.Context())
		m.Context().Register(handle)
		if m.toplevelHandler != nil {
			m.toplevelHandler(handle)
		}
	case 1: // finished
		if m.finishedHandler != nil {
			m.finishedHandler()
		}
		m.Context().Unregister(m)
	}
}

// ForeignToplevelHandle represents one toplevel window. The compositor
// streams property events followed by a done event; handlers see the
// raw stream, the caller decides what to latch at done.
type ForeignToplevelHandle struct {
	wl.BaseProxy

	titleHandler       func(string)
	appIDHandler       func(string)
	outputEnterHandler func(uint32)
	outputLeaveHandler func(uint32)
	stateHandler       func([]uint32)
	doneHandler        func()
	closedHandler      func()
}

// SetTitleHandler sets the handler for title events
func (h *ForeignToplevelHandle) SetTitleHandler(handler func(string)) {
	h.titleHandler = handler
}

// SetAppIDHandler sets the handler for app_id events
func (h *ForeignToplevelHandle) SetAppIDHandler(handler func(string)) {
	h.appIDHandler = handler
}

// SetOutputEnterHandler sets the handler for output_enter events. The
// argument is the wl_output proxy ID.
func (h *ForeignToplevelHandle) SetOutputEnterHandler(handler func(uint32)) {
	h.outputEnterHandler = handler
}

// SetOutputLeaveHandler sets the handler for output_leave events. The
// argument is the wl_output proxy ID.
func (h *ForeignToplevelHandle) SetOutputLeaveHandler(handler func(uint32)) {
	h.outputLeaveHandler = handler
}

// SetStateHandler sets the handler for state events. The slice holds
// the protocol's state enum values.
func (h *ForeignToplevelHandle) SetStateHandler(handler func([]uint32)) {
	h.stateHandler = handler
}

// SetDoneHandler sets the handler for done events
func (h *ForeignToplevelHandle) SetDoneHandler(handler func()) {
	h.doneHandler = handler
}

// SetClosedHandler sets the handler for closed events
func (h *ForeignToplevelHandle) SetClosedHandler(handler func()) {
	h.closedHandler = handler
}

// Destroy destroys the toplevel handle
func (h *ForeignToplevelHandle) Destroy() error {
	// Opcode 7: destroy
	const opcode = 7

	err := h.Context().SendRequest(h, opcode)
	h.Context().Unregister(h)
	return err
}

// Dispatch handles incoming events
func (h *ForeignToplevelHandle) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // title
		if h.titleHandler != nil {
			title := event.String()
			h.titleHandler(title)
		}
	case 1: // app_id
		if h.appIDHandler != nil {
			appID := event.String()
			h.appIDHandler(appID)
		}
	case 2: // output_enter
		if h.outputEnterHandler != nil {
			h.outputEnterHandler(event.Uint32())
		}
	case 3: // output_leave
		if h.outputLeaveHandler != nil {
			h.outputLeaveHandler(event.Uint32())
		}
	case 4: // state
		if h.stateHandler != nil {
			h.stateHandler(parseStateArray(event.Data()))
		}
	case 5: // done
		if h.doneHandler != nil {
			h.doneHandler()
		}
	case 6: // closed
		if h.closedHandler != nil {
			h.closedHandler()
		}
	}
}

// parseStateArray decodes the wl_array argument of a state event: a
// 32-bit length prefix followed by packed 32-bit enum values.
func parseStateArray(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	if uint32(len(data)-4) < length {
		length = uint32(len(data) - 4)
	}

	states := make([]uint32, 0, length/4)
	for off := uint32(4); off+4 <= 4+length; off += 4 {
		states = append(states, binary.LittleEndian.Uint32(data[off:off+4]))
	}
	return states
}
