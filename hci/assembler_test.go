package hci

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAssembleACLInbound is spec §8 scenario S4 (the HAL here has
// already stripped the H4 packet-type byte, as internal/hal's demux
// does, so the assembler sees only the 4-byte ACL preamble followed by
// the body): handle 0x0040, ACL length field 5, body
// 01 02 03 04 05. Expect one buffer dispatched with event=ACL_IN,
// len=9 (preamble 4 + ACL length field 5).
func TestAssembleACLInbound(t *testing.T) {
	l, h, frag, _, _, _ := newTestLayer()

	wire := []byte{0x40, 0x00, 0x05, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	h.pushAll(StreamACL, wire)

	for range wire {
		l.assembleOne(StreamACL)
	}

	require.Len(t, frag.reassembled, 1)
	got := frag.reassembled[0]
	require.Equal(t, TagACLIn, got.Tag)
	require.Equal(t, 9, got.Len)
	require.Equal(t, wire, got.Bytes())
}

// TestAssembleOneByteAtATimeMatchesBulk checks the round-trip/idempotence
// law in spec §8: assembling byte-by-byte vs. queuing the whole frame as
// one chunk (handed out in as large pieces as each ReadData call asks
// for) yields identical dispatched packets.
func TestAssembleOneByteAtATimeMatchesBulk(t *testing.T) {
	wire := []byte{0x40, 0x00, 0x05, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}

	l1, h1, frag1, _, _, _ := newTestLayer()
	h1.pushAll(StreamACL, wire)
	for range wire {
		l1.assembleOne(StreamACL)
	}

	l2, h2, frag2, _, _, _ := newTestLayer()
	h2.queue[StreamACL] = [][]byte{append([]byte(nil), wire...)}
	l2.assembleOne(StreamACL)

	require.Len(t, frag1.reassembled, 1)
	require.Len(t, frag2.reassembled, 1)
	require.Equal(t, frag1.reassembled[0].Bytes(), frag2.reassembled[0].Bytes())
}

// TestAssembleInterleavedStreams is spec §8 scenario S5: interleaving one
// byte of an ACL packet with one byte of an event packet on alternating
// data_ready calls must still complete both packets correctly, with
// exactly one packet dispatched per call once each completes.
func TestAssembleInterleavedStreams(t *testing.T) {
	l, h, frag, _, _, lg := newTestLayer()

	acl := []byte{0x40, 0x00, 0x02, 0x00, 0xAA, 0xBB}
	evt := []byte{0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00}

	max := len(acl)
	if len(evt) > max {
		max = len(evt)
	}
	for i := 0; i < max; i++ {
		if i < len(acl) {
			h.push(StreamACL, acl[i])
			l.assembleOne(StreamACL)
		}
		if i < len(evt) {
			h.push(StreamEvent, evt[i])
			l.assembleOne(StreamEvent)
		}
	}

	require.Len(t, frag.reassembled, 1, "ACL packet should have completed")
	require.Equal(t, acl, frag.reassembled[0].Bytes())
	// The event is a command complete, so the event filter consumes it
	// instead of the fragmenter; both completions show up as captures.
	require.Equal(t, []bool{true, true}, lg.captures, "both packets should have completed")
}

// TestAssembleZeroLengthEvent checks the "zero-length body is legal"
// edge case in spec §4.1.
func TestAssembleZeroLengthEvent(t *testing.T) {
	l, h, frag, _, _, _ := newTestLayer()
	h.pushAll(StreamEvent, []byte{0x13, 0x00})

	l.assembleOne(StreamEvent)
	l.assembleOne(StreamEvent)

	require.Len(t, frag.reassembled, 1)
	require.Equal(t, 2, frag.reassembled[0].Len)
}

// TestAssembleAllocationFailureDegradesToIgnore checks spec §7: an
// inbound allocation failure degrades to IGNORE-state draining, not a
// propagated error, and subsequent packets are unaffected.
func TestAssembleAllocationFailureDegradesToIgnore(t *testing.T) {
	l, h, frag, _, _, _ := newTestLayer()
	l.alloc = failingAllocator{}

	h.pushAll(StreamEvent, []byte{0x0E, 0x03, 0xFF, 0xFF, 0xFF})
	for i := 0; i < 5; i++ {
		l.assembleOne(StreamEvent)
	}
	require.Empty(t, frag.reassembled, "failed allocation must not dispatch a packet")

	l.alloc = defaultAllocator{}
	h.pushAll(StreamEvent, []byte{0x13, 0x00})
	l.assembleOne(StreamEvent)
	l.assembleOne(StreamEvent)
	require.Len(t, frag.reassembled, 1, "subsequent packets must be unaffected")
}

type failingAllocator struct{}

func (failingAllocator) Alloc(PacketTag, int) (*Packet, error) {
	return nil, ErrAllocationFailed
}
