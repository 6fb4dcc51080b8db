// Package wayland manages the connection to the remote compositor: the
// registry, binding of core globals and of the extension managers the
// bridge drives. Object tracking and name resolution live in the
// bridge; the session only announces what the registry advertises.
package wayland

import (
	"fmt"
	"sync"

	"github.com/bnema/waylink/internal/logger"
	"github.com/bnema/waylink/internal/protocols"
	"github.com/bnema/wlturbo/wl"
)

// Session is a connection to the remote compositor. The caller sets
// the On* callbacks between Connect and Sync; they fire on whichever
// goroutine reads the connection (the caller during Sync, the dispatch
// goroutine after Start). The usual callback posts a closure to the
// event channel and leaves state alone.
type Session struct {
	display  *wl.Display
	registry *wl.Registry
	context  *wl.Context

	// Set before Sync, never changed afterwards.
	OnNewOutput     func(global uint32, output *protocols.Output)
	OnNewSeat       func(global uint32, seat *protocols.Seat)
	OnGlobalRemoved func(global uint32)

	mu sync.Mutex

	pointerManagerName     uint32
	pointerManagerVersion  uint32
	toplevelManagerName    uint32
	toplevelManagerVersion uint32
	dataManagerName        uint32

	events chan func()
	done   chan error
}

// Connect dials the named compositor socket and sets up the registry
// listener. No events are read until Sync.
func Connect(displayName string) (*Session, error) {
	display, err := wl.Connect(displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to display %q: %w", displayName, err)
	}

	s := &Session{
		display: display,
		context: display.Context(),
		events:  make(chan func(), 64),
		done:    make(chan error, 1),
	}

	s.registry = display.GetRegistry()
	s.registry.AddGlobalHandler(s)
	s.registry.AddGlobalRemoveHandler(s)

	return s, nil
}

// Sync collects the advertised globals. Two roundtrips: the first
// announces the globals and binds outputs and seats, the second
// collects the name events those binds triggered.
func (s *Session) Sync() error {
	if err := s.display.Roundtrip(); err != nil {
		return fmt.Errorf("failed to get initial globals: %w", err)
	}
	if err := s.display.Roundtrip(); err != nil {
		return fmt.Errorf("failed to get output and seat names: %w", err)
	}
	return nil
}

// HandleRegistryGlobal implements wl.RegistryGlobalHandler
func (s *Session) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	switch event.Interface {
	case protocols.OutputInterface:
		version := event.Version
		if version > protocols.OutputBindVersion {
			version = protocols.OutputBindVersion
		}
		outputID, err := s.registry.BindID(event.Name, event.Interface, version)
		if err != nil {
			logger.Warnf("Failed to bind output global %d: %v", event.Name, err)
			return
		}
		output := protocols.NewOutput(s.context)
		output.SetID(outputID)
		if s.OnNewOutput != nil {
			s.OnNewOutput(event.Name, output)
		}

	case protocols.SeatInterface:
		version := event.Version
		if version > protocols.SeatBindVersion {
			version = protocols.SeatBindVersion
		}
		seatID, err := s.registry.BindID(event.Name, event.Interface, version)
		if err != nil {
			logger.Warnf("Failed to bind seat global %d: %v", event.Name, err)
			return
		}
		seat := protocols.NewSeat(s.context)
		seat.SetID(seatID)
		if s.OnNewSeat != nil {
			s.OnNewSeat(event.Name, seat)
		}

	case protocols.VirtualPointerManagerInterface:
		s.mu.Lock()
		s.pointerManagerName = event.Name
		s.pointerManagerVersion = event.Version
		s.mu.Unlock()

	case protocols.ForeignToplevelManagerInterface:
		s.mu.Lock()
		s.toplevelManagerName = event.Name
		s.toplevelManagerVersion = event.Version
		s.mu.Unlock()

	case protocols.DataControlManagerInterface:
		s.mu.Lock()
		s.dataManagerName = event.Name
		s.mu.Unlock()
	}
}

// HandleRegistryGlobalRemove implements wl.RegistryGlobalRemoveHandler
func (s *Session) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	if s.OnGlobalRemoved != nil {
		s.OnGlobalRemoved(event.Name)
	}
}

// HasVirtualPointer reports whether the compositor offers virtual
// pointers pinned to an output (protocol version 2).
func (s *Session) HasVirtualPointer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointerManagerName != 0 && s.pointerManagerVersion >= 2
}

// BindVirtualPointerManager binds the virtual pointer manager global
func (s *Session) BindVirtualPointerManager() (*protocols.VirtualPointerManager, error) {
	s.mu.Lock()
	name, version := s.pointerManagerName, s.pointerManagerVersion
	s.mu.Unlock()

	if name == 0 || version < 2 {
		return nil, fmt.Errorf("compositor does not support virtual pointers on an output")
	}

	manager := protocols.NewVirtualPointerManager(s.context)
	if err := s.registry.Bind(name, protocols.VirtualPointerManagerInterface, 2, manager); err != nil {
		s.context.Unregister(manager)
		return nil, fmt.Errorf("failed to bind virtual pointer manager: %w", err)
	}
	return manager, nil
}

// BindForeignToplevelManager binds the foreign toplevel manager
// global. Toplevel announcements start with the next dispatch, so the
// caller sets its handlers right after binding.
func (s *Session) BindForeignToplevelManager() (*protocols.ForeignToplevelManager, error) {
	s.mu.Lock()
	name, version := s.toplevelManagerName, s.toplevelManagerVersion
	s.mu.Unlock()

	if name == 0 {
		return nil, fmt.Errorf("compositor does not announce toplevel windows")
	}
	if version > 3 {
		version = 3
	}

	manager := protocols.NewForeignToplevelManager(s.context)
	if err := s.registry.Bind(name, protocols.ForeignToplevelManagerInterface, version, manager); err != nil {
		s.context.Unregister(manager)
		return nil, fmt.Errorf("failed to bind foreign toplevel manager: %w", err)
	}
	return manager, nil
}

// BindDataControlManager binds the data control manager global
func (s *Session) BindDataControlManager() (*protocols.DataControlManager, error) {
	s.mu.Lock()
	name := s.dataManagerName
	s.mu.Unlock()

	if name == 0 {
		return nil, fmt.Errorf("compositor does not support clipboard management")
	}

	manager := protocols.NewDataControlManager(s.context)
	if err := s.registry.Bind(name, protocols.DataControlManagerInterface, 1, manager); err != nil {
		s.context.Unregister(manager)
		return nil, fmt.Errorf("failed to bind data control manager: %w", err)
	}
	return manager, nil
}

// Post queues a closure for the event loop. Protocol handlers use it
// to move work off the dispatch goroutine.
func (s *Session) Post(fn func()) {
	s.events <- fn
}

// Events is the stream of posted protocol callbacks.
func (s *Session) Events() <-chan func() {
	return s.events
}

// Done delivers the dispatch goroutine's exit error. A closed
// connection counts as an error; the bridge treats it as fatal.
func (s *Session) Done() <-chan error {
	return s.done
}

// Start launches the dispatch goroutine. From here on the connection
// must not be read by anyone else, so no further roundtrips.
func (s *Session) Start() {
	go func() {
		for {
			if err := s.display.Dispatch(); err != nil {
				s.done <- fmt.Errorf("compositor connection lost: %w", err)
				return
			}
		}
	}()
}

// Close drops the connection. Proxies are not individually destroyed
// here; the bridge tears down what it created first.
func (s *Session) Close() {
	if err := s.display.Close(); err != nil {
		logger.Debugf("Failed to close display: %v", err)
	}
}
