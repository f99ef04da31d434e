package hci

import "context"

// CommandCompleteFunc is invoked when a transmitted command's matching
// command-complete event arrives. It owns packet (see spec §4.2).
type CommandCompleteFunc func(packet *Packet, ctx interface{})

// CommandStatusFunc is invoked when a transmitted command's matching
// command-status event arrives instead of a complete event. It owns
// command (the original outbound command buffer).
type CommandStatusFunc func(status uint8, command *Packet, ctx interface{})

// UpperCallbacks are the callbacks the upward stack supplies to
// StartUp, per spec §6.
type UpperCallbacks struct {
	PreloadFinished  func(ok bool)
	TransmitFinished func(buf *Packet, allSent bool)
}

// UpwardDispatcher delivers fully reassembled inbound packets to the
// upper layer, keyed by transport tag. The original's equivalent is an
// opaque data_dispatcher_t collaborator; spec §6 calls it out as part
// of the upward API rather than an external contract, so it is a small
// concrete type here rather than an interface.
type UpwardDispatcher struct {
	handlers map[PacketTag]func(*Packet)
}

// NewUpwardDispatcher returns an empty dispatcher; handlers are
// registered with Handle and invoked from Dispatch.
func NewUpwardDispatcher() *UpwardDispatcher {
	return &UpwardDispatcher{handlers: map[PacketTag]func(*Packet){}}
}

// Handle registers fn to receive every packet dispatched under tag.
func (d *UpwardDispatcher) Handle(tag PacketTag, fn func(*Packet)) {
	d.handlers[tag] = fn
}

// Dispatch delivers packet to its tag's registered handler, if any. An
// unhandled tag silently drops the packet — there is no upper layer
// listening, nothing to do.
func (d *UpwardDispatcher) Dispatch(packet *Packet) {
	if fn, ok := d.handlers[packet.Tag]; ok {
		fn(packet)
	}
}

// HardwareDriver is the hardware/HAL collaborator contract from spec
// §6. Implementations carry actual bytes to and from the controller;
// this package never assumes a transport (socket, UART, USB...).
type HardwareDriver interface {
	Init(onDataReady func(StreamType), post func(func())) error
	Open() error
	Close() error
	// ReadData performs a non-blocking read of up to len(dst) bytes for
	// the given stream type, returning the number of bytes read. A
	// return of 0 means "no more bytes right now".
	ReadData(t StreamType, dst []byte) (int, error)
	TransmitData(t StreamType, data []byte) error
	// PacketFinished is called once a full inbound packet of type t has
	// been consumed, mirroring the original's hal->packet_finished.
	PacketFinished(t StreamType)
}

// Fragmenter splits oversized outbound payloads into controller-sized
// fragments and reassembles inbound fragments, per spec §6. Defining
// fragmentation itself is out of scope for this package (spec §1
// Non-goals); it is always supplied as a collaborator.
type Fragmenter interface {
	Init(cb FragmenterCallbacks)
	Cleanup()
	FragmentAndDispatch(buf *Packet)
	ReassembleAndDispatch(buf *Packet)
}

// FragmenterCallbacks are the upcalls a Fragmenter makes back into this
// layer, per spec §4.4 and §6.
type FragmenterCallbacks struct {
	// TransmitFragment is invoked once per outbound fragment; last is
	// true on the final fragment of the originating buffer.
	TransmitFragment func(buf *Packet, last bool)
	// DispatchReassembled is invoked once an inbound buffer has been
	// fully reassembled from fragments.
	DispatchReassembled func(buf *Packet)
	// TransmitFinished notifies that a non-command outbound buffer has
	// been fully handed to the hardware driver.
	TransmitFinished func(buf *Packet, allSent bool)
}

// VendorOp identifies one of the vendor-defined operations spec §6
// names: firmware configuration, SCO configuration, epilog teardown,
// and chip power control.
type VendorOp uint8

const (
	VendorConfigureFirmware VendorOp = iota
	VendorConfigureSCO
	VendorDoEpilog
	VendorChipPowerControl
)

// ErrNotApplicable is returned by VendorController.SendAsyncCommand when
// the vendor has nothing to do for the requested op (spec §6: "negative
// on not applicable").
var ErrNotApplicable = newSentinelError("vendor operation not applicable")

// VendorController is the vendor collaborator contract from spec §6.
type VendorController interface {
	Open(localAddr [6]byte) error
	Close() error
	SendCommand(op VendorOp, arg interface{}) error
	// SendAsyncCommand starts an asynchronous vendor operation whose
	// completion arrives later via the callback registered with
	// SetCallback. Returning ErrNotApplicable means the operation does
	// not apply to this controller.
	SendAsyncCommand(op VendorOp, arg interface{}) error
	SetCallback(op VendorOp, fn func(ok bool))
}

// LowPowerManager is the low-power collaborator contract from spec §6.
type LowPowerManager interface {
	Init(post func(func()))
	Cleanup()
	WakeAssert()
	TransmitDone()
	PostCommand(cmd LowPowerCommand)
}

// LowPowerCommand is an opaque low-power request forwarded verbatim to
// the LowPowerManager; its shape is defined by that collaborator, not by
// this layer (spec §1 Non-goals).
type LowPowerCommand interface{}

// Logger is the btsnoop capture collaborator from spec §6.
type Logger interface {
	Open(path string) error
	Close() error
	Capture(buf *Packet, isReceived bool)
}

// FaultReporter is the abstraction spec §9 asks for in place of a bare
// signal-self call: production wiring terminates the process, tests
// substitute a recording fake.
type FaultReporter interface {
	Fatal(ctx context.Context, opcode Opcode)
}
