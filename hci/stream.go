package hci

import "fmt"

// StreamType identifies one of the four HCI packet streams. Command is
// outbound only; ACL, SCO, and Event are inbound-reassembled here (ACL
// and SCO also flow outbound through the scheduler, but their inbound
// shape is what the assembler's state machine cares about).
type StreamType uint8

const (
	StreamCommand StreamType = iota
	StreamACL
	StreamSCO
	StreamEvent

	numStreamTypes
)

func (t StreamType) String() string {
	switch t {
	case StreamCommand:
		return "COMMAND"
	case StreamACL:
		return "ACL"
	case StreamSCO:
		return "SCO"
	case StreamEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// preambleSize returns the fixed-length header size for a stream type,
// per spec §3: command 3, ACL 4, SCO 3, event 2.
func (t StreamType) preambleSize() int {
	switch t {
	case StreamCommand:
		return 3
	case StreamACL:
		return 4
	case StreamSCO:
		return 3
	case StreamEvent:
		return 2
	default:
		panic(fmt.Sprintf("hci: unknown stream type %d", t))
	}
}

// bodyLength derives the body length from a fully-read preamble. ACL
// uses a little-endian 16-bit length at preamble bytes 2-3; SCO and
// event use the last preamble byte as an 8-bit length.
func (t StreamType) bodyLength(preamble []byte) int {
	switch t {
	case StreamACL:
		return int(preamble[2]) | int(preamble[3])<<8
	case StreamSCO, StreamEvent:
		return int(preamble[len(preamble)-1])
	default:
		panic(fmt.Sprintf("hci: stream type %d has no inbound body", t))
	}
}

// inboundTag is the Packet tag a completed packet of this stream type
// is dispatched with.
func (t StreamType) inboundTag() PacketTag {
	switch t {
	case StreamACL:
		return TagACLIn
	case StreamSCO:
		return TagSCOIn
	case StreamEvent:
		return TagEventIn
	default:
		return TagErrorIn
	}
}

// tagToStreamType maps an outbound Packet tag to the wire stream type
// the hardware driver should transmit it as. An unrecognized tag is not
// fatal: per spec §7 ("Unknown event tag on outbound"), this logs and
// best-effort treats it as a command so the send is still attempted.
func tagToStreamType(tag PacketTag) (StreamType, bool) {
	switch tag {
	case TagCommand:
		return StreamCommand, true
	case TagACLOut:
		return StreamACL, true
	case TagSCOOut:
		return StreamSCO, true
	default:
		return StreamCommand, false
	}
}

// recvState is one state of the per-stream inbound assembler state
// machine described in spec §4.1.
type recvState uint8

const (
	stateIdle recvState = iota
	statePreamble
	stateBody
	stateIgnore
	stateDone
)

// receiveContext is the per-inbound-type state carried across calls to
// the assembler, per spec §3's "Receive context" data model.
type receiveContext struct {
	state          recvState
	bytesRemaining int
	preamble       [4]byte
	index          int
	buffer         *Packet
}

func (c *receiveContext) reset() {
	c.state = stateIdle
	c.bytesRemaining = 0
	c.index = 0
	c.buffer = nil
}
