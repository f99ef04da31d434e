package fragmenter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pe-wip/system-bt/hci"
)

func aclPacket(handle uint16, payload []byte) *hci.Packet {
	p := hci.NewPacket(hci.TagACLOut, 4+len(payload))
	b := p.Data
	b[0] = byte(handle)
	b[1] = byte(handle >> 8)
	b[2] = byte(len(payload))
	b[3] = byte(len(payload) >> 8)
	copy(b[4:], payload)
	p.Len = len(b)
	return p
}

func TestFragmentAndDispatchSplitsAtMTU(t *testing.T) {
	f := New(4)
	var fragments [][]byte
	var lastFlags []bool
	f.Init(hci.FragmenterCallbacks{
		TransmitFragment: func(buf *hci.Packet, last bool) {
			fragments = append(fragments, append([]byte(nil), buf.Bytes()...))
			lastFlags = append(lastFlags, last)
		},
	})

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	f.FragmentAndDispatch(aclPacket(0x0040, payload))

	require.Len(t, fragments, 3)
	require.False(t, lastFlags[0])
	require.False(t, lastFlags[1])
	require.True(t, lastFlags[2])

	// First fragment: handle with no continuation flag.
	require.Equal(t, uint16(0x0040), uint16(fragments[0][0])|uint16(fragments[0][1])<<8)
	// Later fragments: continuation flag set on the high byte.
	require.Equal(t, byte(0x10), fragments[1][1]&0x10)
	require.Equal(t, byte(0x10), fragments[2][1]&0x10)
}

func TestFragmentAndDispatchPassesThroughNonACL(t *testing.T) {
	f := New(4)
	var got *hci.Packet
	f.Init(hci.FragmenterCallbacks{TransmitFragment: func(buf *hci.Packet, last bool) {
		got = buf
		require.True(t, last)
	}})

	cmd := hci.NewPacket(hci.TagCommand, 3)
	f.FragmentAndDispatch(cmd)
	require.Same(t, cmd, got)
}

func TestReassembleAndDispatchJoinsContinuationFragments(t *testing.T) {
	f := New(4)
	var whole *hci.Packet
	f.Init(hci.FragmenterCallbacks{DispatchReassembled: func(buf *hci.Packet) { whole = buf }})

	// An 8-byte L2CAP frame (2-byte length=4, 2-byte CID, 4-byte data)
	// split into two 4-byte ACL fragments, matching how
	// FragmentAndDispatch above would have produced them.
	l2cap := []byte{0x04, 0x00, 0x01, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}
	first := aclPacket(0x0040, l2cap[:4])
	first.Tag = hci.TagACLIn
	cont := aclPacket(0x0040|0x1000, l2cap[4:])
	cont.Tag = hci.TagACLIn

	f.ReassembleAndDispatch(first)
	require.Nil(t, whole, "must not dispatch until the full L2CAP length is satisfied")

	f.ReassembleAndDispatch(cont)
	require.NotNil(t, whole)
	require.Equal(t, l2cap, whole.Bytes())
}

func TestReassembleAndDispatchPassesThroughNonACL(t *testing.T) {
	f := New(4)
	var got *hci.Packet
	f.Init(hci.FragmenterCallbacks{DispatchReassembled: func(buf *hci.Packet) { got = buf }})

	evt := hci.NewPacket(hci.TagEventIn, 2)
	f.ReassembleAndDispatch(evt)
	require.Same(t, evt, got)
}
