package hci

import (
	"context"
	"time"
)

// Layer is the Interface Facade (C6): the single struct that owns every
// piece of worker-private state named in spec §3 ("Worker") and wires
// the collaborator capability sets of §6 to the reactor built from
// worker.go, registry.go, queue.go, assembler.go, eventfilter.go,
// scheduler.go, and lifecycle.go.
//
// This is the Go shape of the original's module-level globals
// (g_packet_fragmenter, g_cmd_queue, pending_commands, ...), collected
// per spec §9 into fields of one owning structure constructed at
// startup rather than left as process-wide singletons.
type Layer struct {
	hal      HardwareDriver
	frag     Fragmenter
	vendor   VendorController
	lowPower LowPowerManager
	logger   Logger
	alloc    Allocator
	fault    FaultReporter

	upward         *UpwardDispatcher
	upperCallbacks UpperCallbacks

	worker      *worker
	cmdQueue    *itemQueue
	packetQueue *itemQueue
	registry    *pendingRegistry

	credits int32
	recv    [numStreamTypes]receiveContext

	state              lifecycleState
	firmwareConfigured bool
	hasShutDown        bool
	localAddr          [6]byte
	epilogTimer        *time.Timer
}

// Option customizes a Layer at construction time, following the same
// functional-option shape the teacher uses for its collaborators
// (linux/advertiser.go's Option). Most callers need only NewLayer's
// required collaborators; Options exist for the seams tests need —
// a capacity-limited Allocator, an observable FaultReporter — that
// production wiring never overrides.
type Option func(*Layer)

// WithAllocator overrides the default (never-failing) buffer allocator.
func WithAllocator(a Allocator) Option {
	return func(l *Layer) { l.alloc = a }
}

// WithFaultReporter overrides the default (process-exiting) fault
// reporter, per spec §9's "fatal process exit... should be an
// abstraction... so tests can observe it."
func WithFaultReporter(f FaultReporter) Option {
	return func(l *Layer) { l.fault = f }
}

// NewLayer constructs a Layer wired to the given collaborators. Credits
// start at 1 per spec §3 (Bluetooth Core, Vol 2 Part E §4.4): the
// controller permits exactly one outstanding command before the first
// command-complete/status event arrives.
func NewLayer(hal HardwareDriver, frag Fragmenter, vendor VendorController, lowPower LowPowerManager, logger Logger, opts ...Option) *Layer {
	l := &Layer{
		hal:      hal,
		frag:     frag,
		vendor:   vendor,
		lowPower: lowPower,
		logger:   logger,
		alloc:    defaultAllocator{},

		upward: NewUpwardDispatcher(),

		worker:      newWorker(),
		cmdQueue:    newItemQueue(),
		packetQueue: newItemQueue(),

		credits: 1,
		state:   lsUninit,
	}
	l.registry = newPendingRegistry(l.onCommandTimeout)
	l.fault = newDefaultFaultReporter(osExit)

	for i := range l.recv {
		l.recv[i].reset()
	}

	for _, opt := range opts {
		opt(l)
	}

	l.frag.Init(FragmenterCallbacks{
		TransmitFragment:    l.transmitFragment,
		DispatchReassembled: l.dispatchReassembled,
		TransmitFinished:    l.fragmenterTransmitFinished,
	})
	l.lowPower.Init(l.worker.post)
	if err := l.hal.Init(l.worker.notifyDataReady, l.worker.post); err != nil {
		log.WithError(err).Error("hardware init failed")
	}

	return l
}

// Upward returns the dispatcher reassembled inbound packets are
// delivered to, keyed by their tag (spec §6's upward_dispatcher).
func (l *Layer) Upward() *UpwardDispatcher {
	return l.upward
}

// onCommandTimeout is the pending registry's onFire hook: it reports
// the wedged opcode through the fault reporter, per spec §4.3/§9.
func (l *Layer) onCommandTimeout(opcode Opcode) {
	l.fault.Fatal(context.Background(), opcode)
}
