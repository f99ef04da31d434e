// Package fragmenter implements the hci.Fragmenter collaborator: it
// chunks outbound ACL packets to the controller's negotiated buffer
// size and reassembles inbound continuation fragments back into whole
// L2CAP frames. It is grounded on the teacher's linux/l2cap.go, whose
// conn.write/conn.Read already do exactly this splitting and
// reassembly, just inline with a single fixed connection handle
// assumption; here the same continuation-flag convention is kept but
// generalized across every connection handle the controller reports.
package fragmenter

import (
	"sync"

	"github.com/pe-wip/system-bt/hci"
)

// aclContinuation is the flag bit the teacher's conn.write sets on the
// high byte of the ACL handle/flags field to mark a continuation
// fragment (linux/l2cap.go: "flag = 0x10").
const aclContinuation = 0x10

// Fragmenter splits outbound ACL payloads into controller-sized chunks
// and reassembles inbound ones, keyed by connection handle.
type Fragmenter struct {
	mtu int

	mu      sync.Mutex
	pending map[uint16]*partial

	cb hci.FragmenterCallbacks
}

type partial struct {
	total int
	data  []byte
}

// New constructs a Fragmenter that chunks outbound ACL data to at most
// mtu bytes of L2CAP payload per HCI ACL packet, the controller's
// negotiated ACL data packet length (spec §4.5's "controller ACL-size
// fetch").
func New(mtu int) *Fragmenter {
	return &Fragmenter{mtu: mtu, pending: make(map[uint16]*partial)}
}

func (f *Fragmenter) Init(cb hci.FragmenterCallbacks) {
	f.cb = cb
}

func (f *Fragmenter) Cleanup() {
	f.mu.Lock()
	f.pending = make(map[uint16]*partial)
	f.mu.Unlock()
}

// FragmentAndDispatch splits buf into MTU-sized HCI ACL fragments,
// marking every fragment after the first with the continuation flag,
// and invokes TransmitFragment once per fragment. Commands and SCO data
// are never split (spec's non-goals exclude fragmentation semantics
// beyond ACL); they are forwarded as a single "fragment".
func (f *Fragmenter) FragmentAndDispatch(buf *hci.Packet) {
	if buf.Tag != hci.TagACLOut || f.mtu <= 0 {
		f.cb.TransmitFragment(buf, true)
		return
	}

	body := buf.Bytes()
	if len(body) < 4 {
		log.WithField("len", len(body)).Warn("outbound ACL packet too short to carry a handle; forwarding unsplit")
		f.cb.TransmitFragment(buf, true)
		return
	}

	handle := uint16(body[0]) | uint16(body[1])<<8
	payload := body[4:]

	flag := uint16(0)
	offset := 0
	for {
		end := offset + f.mtu
		last := end >= len(payload)
		if last {
			end = len(payload)
		}
		chunk := payload[offset:end]

		frag := hci.NewPacket(hci.TagACLOut, 4+len(chunk))
		fb := frag.Data
		h := handle | flag
		fb[0] = byte(h)
		fb[1] = byte(h >> 8)
		fb[2] = byte(len(chunk))
		fb[3] = byte(len(chunk) >> 8)
		copy(fb[4:], chunk)
		frag.Len = len(fb)

		f.cb.TransmitFragment(frag, last)

		if last {
			break
		}
		offset = end
		flag = aclContinuation << 8
	}
}

// ReassembleAndDispatch accumulates inbound ACL fragments by connection
// handle until the L2CAP length declared in the first fragment is
// satisfied, then hands the whole frame to DispatchReassembled.
// Non-ACL inbound packets (events already intercepted upstream, SCO)
// pass straight through.
func (f *Fragmenter) ReassembleAndDispatch(buf *hci.Packet) {
	if buf.Tag != hci.TagACLIn {
		f.cb.DispatchReassembled(buf)
		return
	}

	body := buf.Bytes()
	if len(body) < 4 {
		log.WithField("len", len(body)).Warn("inbound ACL fragment too short to carry a handle; passing through")
		f.cb.DispatchReassembled(buf)
		return
	}

	handle := (uint16(body[0]) | uint16(body[1])<<8) &^ (aclContinuation << 8)
	continuation := body[1]&aclContinuation != 0
	chunk := body[4:]

	f.mu.Lock()
	p, ok := f.pending[handle]
	if !continuation || !ok {
		if continuation && !ok {
			log.WithField("handle", handle).Warn("continuation fragment with no pending reassembly; starting over")
		}
		l2capLen := 0
		if len(chunk) >= 2 {
			l2capLen = int(chunk[0]) | int(chunk[1])<<8
		}
		p = &partial{total: l2capLen + 4, data: append([]byte(nil), chunk...)}
		f.pending[handle] = p
	} else {
		p.data = append(p.data, chunk...)
	}

	if len(p.data) < p.total {
		f.mu.Unlock()
		return
	}
	delete(f.pending, handle)
	f.mu.Unlock()

	whole := hci.NewPacket(hci.TagACLIn, len(p.data))
	copy(whole.Data, p.data)
	whole.Len = len(p.data)
	f.cb.DispatchReassembled(whole)
}
