package hci

// filterEvent implements the Event Filter (spec §4.2, component C2): it
// intercepts Command Complete (0x0E) and Command Status (0x0F) events
// before they ever reach the fragmenter or the upper stack, replenishes
// the credit counter they carry, and resolves the matching waiting
// command out of the pending-response registry. It reports whether it
// consumed buf — callers must not also hand a consumed event to
// ReassembleAndDispatch.
//
// Field layout mirrors the HCI event PDU directly: event code, parameter
// length, then event-specific parameters. Both intercepted events carry
// the replenished credit count and the opcode of the command they
// answer, just in different byte positions.
func (l *Layer) filterEvent(buf *Packet) bool {
	data := buf.Bytes()
	if len(data) < 2 {
		log.Warn("event too short to carry an event code and parameter length")
		return false
	}

	switch eventCode(data[0]) {
	case evtCommandComplete:
		return l.filterCommandComplete(buf, data)
	case evtCommandStatus:
		return l.filterCommandStatus(buf, data)
	default:
		return false
	}
}

// filterCommandComplete handles event_code=0x0E: num_hci_command_packets
// (1 byte), opcode (2 bytes LE), then return parameters.
func (l *Layer) filterCommandComplete(buf *Packet, data []byte) bool {
	const headerLen = 2 + 1 + 2
	if len(data) < headerLen {
		log.Error("malformed command complete event")
		return false
	}

	l.credits = int32(data[2])
	opcode := Opcode(uint16(data[3]) | uint16(data[4])<<8)

	wc, found := l.registry.removeByOpcode(opcode)
	if !found {
		log.WithField("opcode", opcode).Warn("command complete event matched no pending command")
		buf.Release()
		l.onCommandQueueReady()
		return true
	}

	if wc.onComplete != nil {
		wc.onComplete(buf, wc.ctx)
	} else {
		buf.Release()
	}
	wc.command.Release()

	l.onCommandQueueReady()
	return true
}

// filterCommandStatus handles event_code=0x0F: status (1 byte),
// num_hci_command_packets (1 byte), opcode (2 bytes LE).
func (l *Layer) filterCommandStatus(buf *Packet, data []byte) bool {
	const headerLen = 2 + 1 + 1 + 2
	if len(data) < headerLen {
		log.Error("malformed command status event")
		return false
	}

	status := data[2]
	l.credits = int32(data[3])
	opcode := Opcode(uint16(data[4]) | uint16(data[5])<<8)

	wc, found := l.registry.removeByOpcode(opcode)
	if !found {
		log.WithField("opcode", opcode).Warn("command status event matched no pending command")
		buf.Release()
		l.onCommandQueueReady()
		return true
	}

	if wc.onStatus != nil {
		wc.onStatus(status, wc.command, wc.ctx)
	} else {
		wc.command.Release()
	}
	buf.Release()

	l.onCommandQueueReady()
	return true
}
