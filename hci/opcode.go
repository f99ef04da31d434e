package hci

// Opcode is a 16-bit HCI command opcode, OGF (6 bits) | OCF (10 bits),
// little-endian on the wire. Defining the opcode table itself is out of
// scope (spec §1 Non-goals); this layer only needs to read and write
// the opcode field to demultiplex command/event traffic.
type Opcode uint16

// eventCode identifies an HCI event packet's first preamble byte.
type eventCode uint8

const (
	evtCommandComplete eventCode = 0x0E
	evtCommandStatus   eventCode = 0x0F
)
