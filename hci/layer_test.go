package hci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestLayerWithFaultReporter is like newTestLayer but swaps in a
// recording fault reporter via the WithFaultReporter option, so a
// command that never gets answered can be observed instead of exiting
// the test binary.
func newTestLayerWithFaultReporter(timeout time.Duration) (*Layer, *fakeHAL, *recordingFaultReporter) {
	h := &fakeHAL{}
	f := &fakeFragmenter{}
	v := newFakeVendor()
	p := &fakeLowPower{}
	lg := &fakeLogger{}
	r := newRecordingFaultReporter()
	l := NewLayer(h, f, v, p, lg, WithFaultReporter(r))
	l.registry.timeout = timeout
	return l, h, r
}

// TestCommandTimeoutReportsThroughFaultReporter checks spec §4.3/§9
// end to end: a command that is transmitted but never answered fires
// the pending registry's alarm, which reports through whatever
// FaultReporter NewLayer was constructed with instead of the default
// process-exiting one.
func TestCommandTimeoutReportsThroughFaultReporter(t *testing.T) {
	l, _, r := newTestLayerWithFaultReporter(10 * time.Millisecond)
	require.True(t, l.StartUp([6]byte{}, UpperCallbacks{}))
	defer l.ShutDown()

	cmd := commandPacket(0x03, 0x0c)
	l.TransmitCommand(cmd, nil, nil, nil)

	select {
	case <-r.fired:
	case <-time.After(time.Second):
		t.Fatal("fault reporter never fired for an unanswered command")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Equal(t, []Opcode{0x0c03}, r.opcodes)
}

// TestWithAllocatorOverridesDefault checks that NewLayer's Option
// plumbing actually reaches the allocator used by the assembler, not
// just a field nobody reads.
func TestWithAllocatorOverridesDefault(t *testing.T) {
	h := &fakeHAL{}
	f := &fakeFragmenter{}
	v := newFakeVendor()
	p := &fakeLowPower{}
	lg := &fakeLogger{}
	l := NewLayer(h, f, v, p, lg, WithAllocator(failingAllocator{}))

	h.pushAll(StreamEvent, []byte{0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00})
	// The worker goroutine was never started (no StartUp call), so it's
	// safe to drive the assembler directly from this goroutine.
	l.assembleOne(StreamEvent)

	require.Equal(t, stateIdle, l.recv[StreamEvent].state, "allocation failure should degrade to ignoring the body and resetting, never leave a half-built buffer")
}

func TestUpwardAccessorReturnsSameDispatcher(t *testing.T) {
	l, _, _, _, _, _ := newTestLayer()
	require.Same(t, l.upward, l.Upward())
}
