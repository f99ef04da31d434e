//go:build linux

package hal

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/pe-wip/system-bt/hci"
)

// packet type indicator byte values this socket multiplexes frames
// with, per the Bluetooth Core UART transport (H4) spec.
const (
	typeCommand = 0x01
	typeACL     = 0x02
	typeSCO     = 0x03
	typeEvent   = 0x04
)

// streamQueue is a small byte FIFO guarded by a mutex: the demux
// goroutine appends whole frames, ReadData drains them non-blocking.
type streamQueue struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (q *streamQueue) push(b []byte) {
	q.mu.Lock()
	q.buf.Write(b)
	q.mu.Unlock()
}

func (q *streamQueue) read(dst []byte) int {
	q.mu.Lock()
	n, _ := q.buf.Read(dst)
	q.mu.Unlock()
	return n
}

// Driver implements hci.HardwareDriver over a raw AF_BLUETOOTH/BTPROTO_HCI
// socket bound to HCI_CHANNEL_USER, grounded on the teacher's
// linux/device.go (socket lifecycle) and linux/hci.go's mainLoop (a
// dedicated read goroutine posting work back to the owner). Where the
// teacher hands a net.Conn-shaped io.ReadWriteCloser straight to its own
// protocol layer, this adapter instead demultiplexes the wire's leading
// HCI packet-type byte into the four hci.StreamType queues the core
// expects, since hci.Layer is transport-agnostic and never sees that
// byte.
type Driver struct {
	dev int
	fd  int

	streams   [4]*streamQueue // indexed by hci.StreamType
	onReady   func(hci.StreamType)
	post      func(func())
	stop      chan struct{}
	stopOnce  sync.Once
	readErrCh chan error
}

// New constructs a Driver bound to the given HCI device index (e.g. 0
// for hci0). The socket is not opened until Open is called, matching
// hci.HardwareDriver's Init/Open split.
func New(dev int) *Driver {
	d := &Driver{dev: dev, fd: -1, stop: make(chan struct{})}
	for i := range d.streams {
		d.streams[i] = &streamQueue{}
	}
	return d
}

func (d *Driver) Init(onDataReady func(hci.StreamType), post func(func())) error {
	d.onReady = onDataReady
	d.post = post
	return nil
}

func (d *Driver) Open() error {
	fd, err := openHCIDevice(d.dev)
	if err != nil {
		return fmt.Errorf("hal: open hci%d: %w", d.dev, err)
	}
	d.fd = fd
	go d.demux()
	return nil
}

func (d *Driver) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Driver) ReadData(t hci.StreamType, dst []byte) (int, error) {
	idx := int(t)
	if idx < 0 || idx >= len(d.streams) {
		return 0, fmt.Errorf("hal: read from unknown stream %v", t)
	}
	return d.streams[idx].read(dst), nil
}

func (d *Driver) TransmitData(t hci.StreamType, data []byte) error {
	tag, err := typeByteFor(t)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, tag)
	frame = append(frame, data...)
	_, err = unix.Write(d.fd, frame)
	return err
}

func (d *Driver) PacketFinished(hci.StreamType) {
	// Nothing to release here: the demux goroutine owns no per-packet
	// resource beyond the queued bytes ReadData already drained.
}

func typeByteFor(t hci.StreamType) (byte, error) {
	switch t {
	case hci.StreamCommand:
		return typeCommand, nil
	case hci.StreamACL:
		return typeACL, nil
	case hci.StreamSCO:
		return typeSCO, nil
	default:
		return 0, fmt.Errorf("hal: stream type %v has no outbound packet type byte", t)
	}
}

// demux is the dedicated read goroutine (grounded on linux/hci.go's
// mainLoop): it reads one HCI packet-type byte, reads that frame's
// preamble and body using the same per-type sizing rules the core's
// assembler uses, and hands the whole frame to the matching stream
// queue before waking the core with a single data-ready notification.
//
// This duplicates a small amount of the core's framing knowledge
// because the demux boundary sits below the per-stream notification
// the core expects — the core is never shown the leading type byte, so
// something underneath it has to consume exactly one frame's worth of
// bytes per type-byte read.
func (d *Driver) demux() {
	var tag [1]byte
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		n, err := unix.Read(d.fd, tag[:])
		if err != nil || n == 0 {
			select {
			case <-d.stop:
			default:
				if err != nil {
					log.WithError(err).Error("hci socket read failed; demux stopping")
				} else {
					log.Warn("hci socket read returned EOF; demux stopping")
				}
			}
			return
		}

		st, ok := streamForTypeByte(tag[0])
		if !ok {
			log.WithField("byte", tag[0]).Warn("unknown hci packet type byte; resyncing")
			continue
		}

		frame, err := d.readFrame(st)
		if err != nil {
			log.WithError(err).WithField("stream", st).Warn("failed to read hci frame; dropping and resyncing")
			continue
		}

		d.streams[int(st)].push(frame)
		if d.post != nil {
			d.post(func() { d.onReady(st) })
		} else if d.onReady != nil {
			d.onReady(st)
		}
	}
}

func streamForTypeByte(b byte) (hci.StreamType, bool) {
	switch b {
	case typeACL:
		return hci.StreamACL, true
	case typeSCO:
		return hci.StreamSCO, true
	case typeEvent:
		return hci.StreamEvent, true
	default:
		return 0, false
	}
}

// readFrame blocks for exactly one complete HCI frame of stream type st,
// sized per the same preamble/body rules documented for the core
// assembler (ACL: 4-byte preamble, little-endian length at bytes 2-3;
// SCO: 3-byte preamble, Event: 2-byte preamble, each with the body
// length in the preamble's last byte).
func (d *Driver) readFrame(st hci.StreamType) ([]byte, error) {
	preambleLen := 2
	switch st {
	case hci.StreamACL:
		preambleLen = 4
	case hci.StreamSCO:
		preambleLen = 3
	}

	preamble := make([]byte, preambleLen)
	if err := d.readFull(preamble); err != nil {
		return nil, err
	}

	var bodyLen int
	if st == hci.StreamACL {
		bodyLen = int(preamble[2]) | int(preamble[3])<<8
	} else {
		bodyLen = int(preamble[preambleLen-1])
	}

	frame := make([]byte, preambleLen+bodyLen)
	copy(frame, preamble)
	if bodyLen > 0 {
		if err := d.readFull(frame[preambleLen:]); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func (d *Driver) readFull(dst []byte) error {
	for n := 0; n < len(dst); {
		m, err := unix.Read(d.fd, dst[n:])
		if err != nil {
			return err
		}
		if m == 0 {
			return fmt.Errorf("hal: unexpected EOF reading hci frame")
		}
		n += m
	}
	return nil
}
