// Package sway implements the subset of the i3/sway IPC protocol that
// waylink needs: the output geometry query and an event subscription
// stream. The compositor on the remote side is patched to emit a
// nonstandard cursor-warp event, which is why this speaks the wire
// framing directly instead of going through an off-the-shelf i3
// client.
package sway

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bnema/waylink/internal/logger"
)

const magic = "i3-ipc"

// Message types (requests and their replies share the type value).
const (
	msgSubscribe  uint32 = 2
	msgGetOutputs uint32 = 3
)

// Event types carry the high bit. Cursor warp is the patched
// compositor's extension, numbered after sway's upstream range.
const (
	EventOutput     uint32 = 0x80000001
	EventShutdown   uint32 = 0x80000006
	EventCursorWarp uint32 = 0x80000016
)

// Event is one decoded frame from the subscription stream.
type Event struct {
	Type    uint32
	Payload []byte
}

// Output is the slice of a GET_OUTPUTS reply entry that waylink reads.
type Output struct {
	Name string `json:"name"`
	Rect struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"rect"`
}

// CursorWarp is the payload of a cursor-warp event: the warped-to
// position in compositor layout coordinates.
type CursorWarp struct {
	LX int `json:"lx"`
	LY int `json:"ly"`
}

// Client is a connection to the compositor's IPC socket. Requests and
// subscribed events interleave on the same socket; a reader goroutine
// splits them into a reply channel and an event queue. The queue is
// unbounded so the reader never stalls on a slow event consumer: a
// stalled reader while a request is outstanding would deadlock the
// request against the event burst in front of its reply.
type Client struct {
	conn    net.Conn
	events  chan Event
	replies chan frame

	mu    sync.Mutex
	cond  *sync.Cond
	queue []Event
	eof   bool
}

type frame struct {
	typ     uint32
	payload []byte
}

// Dial connects to the IPC socket and starts the reader.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to compositor IPC at %s: %w", socketPath, err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		events:  make(chan Event, 16),
		replies: make(chan frame, 1),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.readLoop()
	go c.forwardLoop()
	return c
}

// Events returns the subscription stream. The channel is closed when
// the connection is lost, which the caller treats as a hangup.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Subscribe registers for the named events.
func (c *Client) Subscribe(names ...string) error {
	payload, err := json.Marshal(names)
	if err != nil {
		return err
	}

	reply, err := c.request(msgSubscribe, payload)
	if err != nil {
		return err
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(reply, &result); err != nil {
		return fmt.Errorf("malformed subscribe reply: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("compositor refused event subscription")
	}
	return nil
}

// Outputs queries the compositor's current output layout.
func (c *Client) Outputs() ([]Output, error) {
	reply, err := c.request(msgGetOutputs, nil)
	if err != nil {
		return nil, err
	}

	var outputs []Output
	if err := json.Unmarshal(reply, &outputs); err != nil {
		return nil, fmt.Errorf("malformed outputs reply: %w", err)
	}
	return outputs, nil
}

// Close closes the connection; the reader exits and the event channel
// is closed.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// request sends one message and waits for its reply. Only one request
// may be outstanding at a time, which holds because all requests are
// issued from the reactor.
func (c *Client) request(typ uint32, payload []byte) ([]byte, error) {
	if err := writeFrame(c.conn, typ, payload); err != nil {
		return nil, err
	}

	reply, ok := <-c.replies
	if !ok {
		return nil, fmt.Errorf("connection closed while waiting for reply")
	}
	if reply.typ != typ {
		return nil, fmt.Errorf("reply type mismatch: sent %d, got %d", typ, reply.typ)
	}
	return reply.payload, nil
}

func (c *Client) readLoop() {
	defer close(c.replies)
	defer func() {
		c.mu.Lock()
		c.eof = true
		c.cond.Signal()
		c.mu.Unlock()
	}()

	for {
		typ, payload, err := readFrame(c.conn)
		if err != nil {
			if err != io.EOF {
				logger.Debugf("compositor IPC read failed: %v", err)
			}
			return
		}

		if typ&0x80000000 != 0 {
			c.mu.Lock()
			c.queue = append(c.queue, Event{Type: typ, Payload: payload})
			c.cond.Signal()
			c.mu.Unlock()
			continue
		}

		select {
		case c.replies <- frame{typ: typ, payload: payload}:
		default:
			logger.Warnf("dropping unsolicited compositor IPC reply, type %d", typ)
		}
	}
}

// forwardLoop moves queued events onto the event channel, closing it
// once the reader hit EOF and the queue is drained.
func (c *Client) forwardLoop() {
	defer close(c.events)

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.eof {
			c.cond.Wait()
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		event := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.events <- event
	}
}

func writeFrame(w io.Writer, typ uint32, payload []byte) error {
	header := make([]byte, len(magic)+8)
	copy(header, magic)
	binary.LittleEndian.PutUint32(header[len(magic):], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[len(magic)+4:], typ)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write message header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("failed to write message payload: %w", err)
		}
	}
	return nil
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, len(magic)+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	if string(header[:len(magic)]) != magic {
		return 0, nil, fmt.Errorf("bad magic in message header")
	}

	length := binary.LittleEndian.Uint32(header[len(magic):])
	typ := binary.LittleEndian.Uint32(header[len(magic)+4:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("failed to read message payload: %w", err)
	}
	return typ, payload, nil
}
