// Package bridge holds the synchronization logic between the host
// player and the remote compositor: object resolution, window
// eligibility, pointer mirroring, clipboard mirroring and the event
// loop driving them. All bridge state is owned by the loop goroutine;
// protocol and IPC adapters only feed it through channels.
package bridge

// Host is the slice of the player's IPC surface the bridge drives.
type Host interface {
	SetTitle(title string) error
	SetMousePos(x, y int64) error
	SetString(name, value string) error
	Observe(id uint, name string) error
	Unobserve(id uint) error
}

// OutputHandle is a bound remote output.
type OutputHandle interface {
	ID() uint32
	Release() error
}

// SeatHandle is a bound remote seat.
type SeatHandle interface {
	ID() uint32
	Destroy() error
}

// PointerDevice is a virtual pointer on the remote compositor.
type PointerDevice interface {
	MotionAbsolute(time, x, y, xExtent, yExtent uint32) error
	Frame() error
	Destroy() error
}

// ToplevelHandle is a remote toplevel window handle. The tracker only
// ever destroys it; all state arrives through events.
type ToplevelHandle interface {
	Destroy() error
}

// ClipboardSource is clipboard content we offer to the remote side.
type ClipboardSource interface {
	Offer(mime string) error
	Destroy() error
}

// ClipboardOffer is clipboard content offered by a remote client.
type ClipboardOffer interface {
	Receive(mime string, fd int) error
	Destroy() error
}

// ClipboardDevice manages the selections of the remote seat. A nil
// source clears the selection.
type ClipboardDevice interface {
	SetSelection(source ClipboardSource) error
	SetPrimarySelection(source ClipboardSource) error
	Destroy() error
}
