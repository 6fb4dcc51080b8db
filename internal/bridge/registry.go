package bridge

import (
	"github.com/bnema/waylink/internal/logger"
)

type trackedOutput struct {
	name   string
	handle OutputHandle
}

type trackedSeat struct {
	name   string
	handle SeatHandle
}

// Registry tracks the remote outputs and seats by registry global
// name and resolves the configured remote output and seat from their
// advertised names. The first global matching a configured name is
// bound as the target; later globals with the same name are ignored.
type Registry struct {
	outputName string
	seatName   string

	outputs map[uint32]*trackedOutput
	seats   map[uint32]*trackedSeat

	remoteOutput uint32
	remoteSeat   uint32

	// Fired whenever the resolved output or seat appears or goes
	// away, so the mirrors can re-check their gating.
	onResolvedChange func()
}

// NewRegistry creates a registry resolving the given output and seat
// names.
func NewRegistry(outputName, seatName string, onResolvedChange func()) *Registry {
	return &Registry{
		outputName:       outputName,
		seatName:         seatName,
		outputs:          make(map[uint32]*trackedOutput),
		seats:            make(map[uint32]*trackedSeat),
		onResolvedChange: onResolvedChange,
	}
}

// AddOutput tracks a newly announced output global.
func (r *Registry) AddOutput(global uint32, handle OutputHandle) {
	r.outputs[global] = &trackedOutput{handle: handle}
}

// AddSeat tracks a newly announced seat global.
func (r *Registry) AddSeat(global uint32, handle SeatHandle) {
	r.seats[global] = &trackedSeat{handle: handle}
}

// OutputNamed records an output's advertised name. Matching the
// configured remote output name resolves it.
func (r *Registry) OutputNamed(global uint32, name string) {
	o, ok := r.outputs[global]
	if !ok {
		return
	}
	o.name = name

	if name == r.outputName && r.remoteOutput == 0 {
		logger.Infof("Resolved remote output %q", name)
		r.remoteOutput = global
		if r.onResolvedChange != nil {
			r.onResolvedChange()
		}
	}
}

// SeatNamed records a seat's advertised name. Matching the configured
// remote seat name resolves it.
func (r *Registry) SeatNamed(global uint32, name string) {
	s, ok := r.seats[global]
	if !ok {
		return
	}
	s.name = name

	if name == r.seatName && r.remoteSeat == 0 {
		logger.Infof("Resolved remote seat %q", name)
		r.remoteSeat = global
		if r.onResolvedChange != nil {
			r.onResolvedChange()
		}
	}
}

// Remove drops a removed global. Losing the resolved output or seat
// fires the gating callback before the protocol handle is released,
// so dependent devices are torn down first.
func (r *Registry) Remove(global uint32) {
	if o, ok := r.outputs[global]; ok {
		if global == r.remoteOutput {
			logger.Warnf("Remote output %q went away", o.name)
			r.remoteOutput = 0
			if r.onResolvedChange != nil {
				r.onResolvedChange()
			}
		}
		if err := o.handle.Release(); err != nil {
			logger.Debugf("Failed to release output: %v", err)
		}
		delete(r.outputs, global)
		return
	}

	if s, ok := r.seats[global]; ok {
		if global == r.remoteSeat {
			logger.Warnf("Remote seat %q went away", s.name)
			r.remoteSeat = 0
			if r.onResolvedChange != nil {
				r.onResolvedChange()
			}
		}
		if err := s.handle.Destroy(); err != nil {
			logger.Debugf("Failed to destroy seat: %v", err)
		}
		delete(r.seats, global)
	}
}

// HasOutput reports whether the remote output is resolved.
func (r *Registry) HasOutput() bool {
	return r.remoteOutput != 0
}

// HasSeat reports whether the remote seat is resolved.
func (r *Registry) HasSeat() bool {
	return r.remoteSeat != 0
}

// RemoteOutput returns the resolved output handle, nil when
// unresolved.
func (r *Registry) RemoteOutput() OutputHandle {
	if o, ok := r.outputs[r.remoteOutput]; ok {
		return o.handle
	}
	return nil
}

// RemoteSeat returns the resolved seat handle, nil when unresolved.
func (r *Registry) RemoteSeat() SeatHandle {
	if s, ok := r.seats[r.remoteSeat]; ok {
		return s.handle
	}
	return nil
}

// IsRemoteOutputProxy reports whether the given protocol object ID is
// the resolved output. Toplevel output_enter and output_leave events
// reference outputs this way.
func (r *Registry) IsRemoteOutputProxy(proxyID uint32) bool {
	o, ok := r.outputs[r.remoteOutput]
	return ok && o.handle.ID() == proxyID
}

// Shutdown removes every tracked global, cascading teardown of
// whatever was bound to the resolved ones.
func (r *Registry) Shutdown() {
	for global := range r.outputs {
		r.Remove(global)
	}
	for global := range r.seats {
		r.Remove(global)
	}
}
