package hci

import (
	"context"
	"sync"
)

// fakeHAL is a HardwareDriver whose ReadData is fed by pushing whole
// byte slices per stream type from a test, one slice becoming whatever
// chunking the test wants to exercise (a single push can be split
// across several ReadData calls by pushing one byte at a time).
type fakeHAL struct {
	mu    sync.Mutex
	queue [numStreamTypes][][]byte

	transmitted []transmittedFrame
}

type transmittedFrame struct {
	t    StreamType
	data []byte
}

func (f *fakeHAL) Init(func(StreamType), func(func())) error { return nil }
func (f *fakeHAL) Open() error                                { return nil }
func (f *fakeHAL) Close() error                               { return nil }

func (f *fakeHAL) push(t StreamType, b byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[t] = append(f.queue[t], []byte{b})
}

func (f *fakeHAL) pushAll(t StreamType, bs []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range bs {
		f.queue[t] = append(f.queue[t], []byte{b})
	}
}

func (f *fakeHAL) ReadData(t StreamType, dst []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queue[t]
	if len(q) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(dst) && len(q) > 0 {
		c := copy(dst[n:], q[0])
		n += c
		if c < len(q[0]) {
			q[0] = q[0][c:]
		} else {
			q = q[1:]
		}
	}
	f.queue[t] = q
	return n, nil
}

func (f *fakeHAL) TransmitData(t StreamType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.transmitted = append(f.transmitted, transmittedFrame{t: t, data: cp})
	return nil
}

func (f *fakeHAL) PacketFinished(StreamType) {}

// fakeFragmenter is a pass-through Fragmenter: it neither splits nor
// reassembles, so tests exercising the assembler/scheduler/event filter
// observe exactly what those components handed it.
type fakeFragmenter struct {
	cb FragmenterCallbacks

	fragmented  []*Packet
	reassembled []*Packet
}

func (f *fakeFragmenter) Init(cb FragmenterCallbacks) { f.cb = cb }
func (f *fakeFragmenter) Cleanup()                    {}

func (f *fakeFragmenter) FragmentAndDispatch(buf *Packet) {
	f.fragmented = append(f.fragmented, buf)
	f.cb.TransmitFragment(buf, true)
}

func (f *fakeFragmenter) ReassembleAndDispatch(buf *Packet) {
	f.reassembled = append(f.reassembled, buf)
	f.cb.DispatchReassembled(buf)
}

type fakeVendor struct {
	callbacks map[VendorOp]func(bool)
	opened    bool
	closed    bool
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{callbacks: make(map[VendorOp]func(bool))}
}

func (v *fakeVendor) Open([6]byte) error { v.opened = true; return nil }
func (v *fakeVendor) Close() error       { v.closed = true; return nil }

func (v *fakeVendor) SendCommand(VendorOp, interface{}) error { return nil }

func (v *fakeVendor) SendAsyncCommand(op VendorOp, _ interface{}) error {
	if op == VendorConfigureSCO {
		return ErrNotApplicable
	}
	if fn := v.callbacks[op]; fn != nil {
		fn(true)
	}
	return nil
}

func (v *fakeVendor) SetCallback(op VendorOp, fn func(bool)) { v.callbacks[op] = fn }

type fakeLowPower struct {
	wakeAsserts int
	transmitDones int
}

func (p *fakeLowPower) Init(func(func())) {}
func (p *fakeLowPower) Cleanup()          {}
func (p *fakeLowPower) WakeAssert()       { p.wakeAsserts++ }
func (p *fakeLowPower) TransmitDone()     { p.transmitDones++ }
func (p *fakeLowPower) PostCommand(LowPowerCommand) {}

type fakeLogger struct {
	captures []bool // isReceived per capture
}

func (l *fakeLogger) Open(string) error { return nil }
func (l *fakeLogger) Close() error      { return nil }
func (l *fakeLogger) Capture(_ *Packet, isReceived bool) {
	l.captures = append(l.captures, isReceived)
}

// recordingFaultReporter substitutes for the process-exiting default so
// tests can observe a command timeout without taking down the test
// binary (spec §9's "fatal-fault reporter" abstraction).
type recordingFaultReporter struct {
	mu      sync.Mutex
	fired   chan struct{}
	opcodes []Opcode
}

func newRecordingFaultReporter() *recordingFaultReporter {
	return &recordingFaultReporter{fired: make(chan struct{}, 8)}
}

func (r *recordingFaultReporter) Fatal(_ context.Context, opcode Opcode) {
	r.mu.Lock()
	r.opcodes = append(r.opcodes, opcode)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func newTestLayer() (*Layer, *fakeHAL, *fakeFragmenter, *fakeVendor, *fakeLowPower, *fakeLogger) {
	h := &fakeHAL{}
	f := &fakeFragmenter{}
	v := newFakeVendor()
	p := &fakeLowPower{}
	lg := &fakeLogger{}
	l := NewLayer(h, f, v, p, lg)
	return l, h, f, v, p, lg
}
