// Package mpv wraps the host media player's JSON IPC interface: typed
// property access, property observation with reply IDs, and the
// asynchronous event stream.
package mpv

import (
	"fmt"

	"github.com/dexterlb/mpvipc"
)

// Observation reply IDs. Events triggered by observed properties carry
// the ID they were registered with, which is how property-change
// events are routed without string matching.
const (
	IDOsdDimensions uint = iota + 1
	IDVideoParams
	IDInputForwarding
	IDForceGrabCursor
	IDMousePos
	IDClipboardText
	IDClipboardTextPrimary
)

// Host property names.
const (
	PropRemoteDisplayName = "wayland-remote-display-name"
	PropRemoteOutputName  = "wayland-remote-output-name"
	PropRemoteSeatName    = "wayland-remote-seat-name"
	PropRemoteSwaysock    = "wayland-remote-swaysock"
	PropOsdDimensions     = "osd-dimensions"
	PropVideoParams       = "video-params"
	PropInputForwarding   = "wayland-remote-input-forwarding"
	PropForceGrabCursor   = "wayland-remote-force-grab-cursor"
	PropMousePos          = "mouse-pos"
	PropClipboardText     = "clipboard/text"
	PropClipboardPrimary  = "clipboard/text-primary"
	PropMediaTitle        = "force-media-title"
)

// Client is a connection to the host player's IPC socket.
type Client struct {
	conn   *mpvipc.Connection
	events chan *mpvipc.Event
	stop   chan struct{}
	closed chan struct{}
}

// Connect dials the player's IPC socket and starts the event listener.
func Connect(socketPath string) (*Client, error) {
	conn := mpvipc.NewConnection(socketPath)
	if err := conn.Open(); err != nil {
		return nil, fmt.Errorf("failed to connect to mpv at %s: %w", socketPath, err)
	}

	c := &Client{conn: conn, closed: make(chan struct{})}
	c.events, c.stop = conn.NewEventListener()
	go func() {
		conn.WaitUntilClosed()
		close(c.closed)
	}()
	return c, nil
}

// Closed is signalled when the connection goes away, whether through
// Close or because the player died. The event channel alone cannot
// surface this: it is only closed on an explicit listener stop.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// Events returns the host event stream. The channel is closed when the
// connection goes away. The listener goroutine only forwards decoded
// events; all handling happens on the receiver's side.
func (c *Client) Events() <-chan *mpvipc.Event {
	return c.events
}

// GetString reads a string property once. Unset properties come back
// as the empty string.
func (c *Client) GetString(name string) (string, error) {
	value, err := c.conn.Get(name)
	if err != nil {
		return "", err
	}
	s, _ := value.(string)
	return s, nil
}

// GetBool reads a flag property once.
func (c *Client) GetBool(name string) (bool, error) {
	value, err := c.conn.Get(name)
	if err != nil {
		return false, err
	}
	b, _ := value.(bool)
	return b, nil
}

// SetString writes a string property.
func (c *Client) SetString(name, value string) error {
	return c.conn.Set(name, value)
}

// SetTitle overrides the displayed media title. An empty string
// removes the override.
func (c *Client) SetTitle(title string) error {
	return c.conn.Set(PropMediaTitle, title)
}

// SetMousePos pushes a pointer position to the host, marking the
// pointer as hovering the video area.
func (c *Client) SetMousePos(x, y int64) error {
	return c.conn.Set(PropMousePos, map[string]interface{}{
		"x":     x,
		"y":     y,
		"hover": true,
	})
}

// Observe registers a property observer under the given reply ID.
func (c *Client) Observe(id uint, name string) error {
	_, err := c.conn.Call("observe_property", id, name)
	return err
}

// Unobserve removes the observer registered under the given reply ID.
func (c *Client) Unobserve(id uint) error {
	_, err := c.conn.Call("unobserve_property", id)
	return err
}

// Close shuts down the event listener and the connection.
func (c *Client) Close() {
	if c.stop != nil {
		select {
		case c.stop <- struct{}{}:
		default:
		}
	}
	_ = c.conn.Close()
}
