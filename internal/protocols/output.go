package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// Core protocol interface names
const (
	OutputInterface = "wl_output"
	SeatInterface   = "wl_seat"
)

// Versions we bind the core globals at. Name events need wl_output v4
// and wl_seat v2.
const (
	OutputBindVersion = 4
	SeatBindVersion   = 2
)

// Output represents a wl_output global. Only the name event is
// surfaced; geometry and mode information comes from the compositor's
// IPC interface instead.
type Output struct {
	wl.BaseProxy

	nameHandler func(string)
}

// NewOutput creates an output proxy. The caller binds it to the
// advertised global.
func NewOutput(ctx *wl.Context) *Output {
	output := &Output{}
	output.SetContext(ctx)
	ctx.Register(output)
	return output
}

// SetNameHandler sets the handler for name events
func (o *Output) SetNameHandler(handler func(string)) {
	o.nameHandler = handler
}

// Release releases the output
func (o *Output) Release() error {
	// Opcode 0: release (since version 3)
	const opcode = 0
	err := o.Context().SendRequest(o, opcode)
	o.Context().Unregister(o)
	return err
}

// Dispatch handles incoming events
func (o *Output) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 4: // name (since version 4)
		if o.nameHandler != nil {
			name := event.String()
			o.nameHandler(name)
		}
	}
}

// Seat represents a wl_seat global. Only the name event is surfaced;
// input devices are never acquired from it, the seat object exists to
// parameterize virtual pointer and clipboard device creation.
type Seat struct {
	wl.BaseProxy

	nameHandler func(string)
}

// NewSeat creates a seat proxy. The caller binds it to the advertised
// global.
func NewSeat(ctx *wl.Context) *Seat {
	seat := &Seat{}
	seat.SetContext(ctx)
	ctx.Register(seat)
	return seat
}

// SetNameHandler sets the handler for name events
func (s *Seat) SetNameHandler(handler func(string)) {
	s.nameHandler = handler
}

// Destroy drops the client-side proxy. The release request needs
// version 5 and we bind at 2, so the server-side object stays until
// disconnect.
func (s *Seat) Destroy() error {
	s.Context().Unregister(s)
	return nil
}

// Dispatch handles incoming events
func (s *Seat) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // capabilities
		_ = event.Uint32()
	case 1: // name (since version 2)
		if s.nameHandler != nil {
			name := event.String()
			s.nameHandler(name)
		}
	}
}
