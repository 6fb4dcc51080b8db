package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names
const (
	DataControlManagerInterface = "ext_data_control_manager_v1"
	DataControlDeviceInterface  = "ext_data_control_device_v1"
	DataControlSourceInterface  = "ext_data_control_source_v1"
	DataControlOfferInterface   = "ext_data_control_offer_v1"
)

// DataControlManager creates clipboard sources and per-seat devices
type DataControlManager struct {
	wl.BaseProxy
}

// NewDataControlManager creates a new data control manager proxy. The
// caller binds it to the advertised global.
func NewDataControlManager(ctx *wl.Context) *DataControlManager {
	manager := &DataControlManager{}
	manager.SetContext(ctx)
	ctx.Register(manager)
	return manager
}

// CreateDataSource creates a new data source
func (m *DataControlManager) CreateDataSource() (*DataControlSource, error) {
	sourceID := m.Context().AllocateID()

	source := &DataControlSource{}
	source.SetContext(m.Context())
	source.SetID(sourceID)
	m.Context().Register(source)

	// Opcode 0: create_data_source
	const opcode = 0

	err := m.Context().SendRequest(m, opcode, source)
	if err != nil {
		m.Context().Unregister(source)
		return nil, err
	}

	return source, nil
}

// GetDataDevice creates a data device for the given seat
func (m *DataControlManager) GetDataDevice(seat *Seat) (*DataControlDevice, error) {
	deviceID := m.Context().AllocateID()

	device := &DataControlDevice{}
	device.SetContext(m.Context())
	device.SetID(deviceID)
	m.Context().Register(device)

	// Opcode 1: get_data_device
	const opcode = 1

	err := m.Context().SendRequest(m, opcode, device, seat)
	if err != nil {
		m.Context().Unregister(device)
		return nil, err
	}

	return device, nil
}

// Destroy destroys the data control manager
func (m *DataControlManager) Destroy() error {
	// Opcode 2: destroy
	const opcode = 2

	err := m.Context().SendRequest(m, opcode)
	m.Context().Unregister(m)
	return err
}

// Dispatch handles incoming events (data control manager has no events)
func (m *DataControlManager) Dispatch(_ *wl.Event) {
}

// DataControlDevice observes and sets the selections of one seat.
// Offer metadata arrives as data_offer events, each introducing a
// DataControlOffer; a following selection or primary_selection event
// commits the offer as that selection's current content.
type DataControlDevice struct {
	wl.BaseProxy

	dataOfferHandler        func(*DataControlOffer)
	selectionHandler        func(uint32)
	primarySelectionHandler func(uint32)
	finishedHandler         func()
}

// SetDataOfferHandler sets the handler for new offer announcements
func (d *DataControlDevice) SetDataOfferHandler(handler func(*DataControlOffer)) {
	d.dataOfferHandler = handler
}

// SetSelectionHandler sets the handler for selection events. The
// argument is the offer proxy ID, zero when the selection is empty.
func (d *DataControlDevice) SetSelectionHandler(handler func(uint32)) {
	d.selectionHandler = handler
}

// SetPrimarySelectionHandler sets the handler for primary_selection
// events. The argument is the offer proxy ID, zero when empty.
func (d *DataControlDevice) SetPrimarySelectionHandler(handler func(uint32)) {
	d.primarySelectionHandler = handler
}

// SetFinishedHandler sets the handler for the finished event
func (d *DataControlDevice) SetFinishedHandler(handler func()) {
	d.finishedHandler = handler
}

// SetSelection sets the seat's clipboard selection. A nil source
// clears it.
func (d *DataControlDevice) SetSelection(source *DataControlSource) error {
	// Opcode 0: set_selection
	const opcode = 0
	if source == nil {
		return d.Context().SendRequest(d, opcode, uint32(0))
	}
	return d.Context().SendRequest(d, opcode, source)
}

// SetPrimarySelection sets the seat's primary selection. A nil source
// clears it.
func (d *DataControlDevice) SetPrimarySelection(source *DataControlSource) error {
	// Opcode 2: set_primary_selection
	const opcode = 2
	if source == nil {
		return d.Context().SendRequest(d, opcode, uint32(0))
	}
	return d.Context().SendRequest(d, opcode, source)
}

// Destroy destroys the data device
func (d *DataControlDevice) Destroy() error {
	// Opcode 1: destroy
	const opcode = 1

	err := d.Context().SendRequest(d, opcode)
	d.Context().Unregister(d)
	return err
}

// Dispatch handles incoming events
func (d *DataControlDevice) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // data_offer
		proxy := event.NewID()
		offer := &DataControlOffer{}
		offer.SetID(proxy.ID())
		offer.SetContext(d.Context())
		d.Context().Register(offer)
		if d.dataOfferHandler != nil {
			d.dataOfferHandler(offer)
		}
	case 1: // selection
		if d.selectionHandler != nil {
			d.selectionHandler(event.Uint32())
		}
	case 2: // finished
		if d.finishedHandler != nil {
			d.finishedHandler()
		}
		d.Context().Unregister(d)
	case 3: // primary_selection
		if d.primarySelectionHandler != nil {
			d.primarySelectionHandler(event.Uint32())
		}
	}
}

// DataControlSource is clipboard content offered by us. The compositor
// asks for the payload with a send event carrying the requested MIME
// type and the file descriptor to write into.
type DataControlSource struct {
	wl.BaseProxy

	sendHandler      func(mime string, fd int)
	cancelledHandler func()
}

// SetSendHandler sets the handler for send events
func (s *DataControlSource) SetSendHandler(handler func(mime string, fd int)) {
	s.sendHandler = handler
}

// SetCancelledHandler sets the handler for the cancelled event
func (s *DataControlSource) SetCancelledHandler(handler func()) {
	s.cancelledHandler = handler
}

// Offer advertises a MIME type for this source. Only valid before the
// source is used in a set_selection request.
func (s *DataControlSource) Offer(mime string) error {
	// Opcode 0: offer
	const opcode = 0
	return s.Context().SendRequest(s, opcode, mime)
}

// Destroy destroys the data source
func (s *DataControlSource) Destroy() error {
	// Opcode 1: destroy
	const opcode = 1

	err := s.Context().SendRequest(s, opcode)
	s.Context().Unregister(s)
	return err
}

// Dispatch handles incoming events
func (s *DataControlSource) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // send
		if s.sendHandler != nil {
			mime := event.String()
			fd := int(event.Fd())
			s.sendHandler(mime, fd)
		}
	case 1: // cancelled
		if s.cancelledHandler != nil {
			s.cancelledHandler()
		}
	}
}

// DataControlOffer is clipboard content offered by another client. Its
// MIME types stream in as offer events right after the offer is
// announced.
type DataControlOffer struct {
	wl.BaseProxy

	offerHandler func(string)
}

// SetOfferHandler sets the handler for MIME type announcements
func (o *DataControlOffer) SetOfferHandler(handler func(string)) {
	o.offerHandler = handler
}

// Receive asks for the offer's payload in the given MIME type. The
// write end of a pipe goes to the owning client, which writes the
// payload and closes it.
func (o *DataControlOffer) Receive(mime string, fd int) error {
	// Opcode 0: receive
	// The fd argument is passed as uintptr for neurlang/wayland
	// compatibility; it travels only in the ancillary data.
	const opcode = 0
	return o.Context().SendRequestWithFDs(o, opcode, []int{fd}, mime, uintptr(fd))
}

// Destroy destroys the data offer
func (o *DataControlOffer) Destroy() error {
	// Opcode 1: destroy
	const opcode = 1

	err := o.Context().SendRequest(o, opcode)
	o.Context().Unregister(o)
	return err
}

// Dispatch handles incoming events
func (o *DataControlOffer) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // offer
		if o.offerHandler != nil {
			mime := event.String()
			o.offerHandler(mime)
		}
	}
}
