package hci

// assembleOne implements the Inbound Packet Assembler (spec §4.1,
// component C1): one state machine per inbound stream type, advanced a
// single non-blocking byte at a time until either the hardware read
// returns zero (await the next notification) or exactly one packet
// completes (dispatch it and return, even if more bytes are waiting —
// this is what keeps other stream types from starving and bounds
// per-call CPU, per spec §5's ordering guarantees).
//
// This is the Go shape of original_source/hci_layer.c's
// hal_says_data_ready, generalized from its single-byte-at-a-time
// syscall loop into calls against the HardwareDriver contract.
func (l *Layer) assembleOne(t StreamType) {
	if t == StreamCommand {
		// Command is outbound-only (spec §3); nothing to assemble.
		return
	}

	ctx := &l.recv[t]
	var one [1]byte
	for {
		n, err := l.hal.ReadData(t, one[:])
		if err != nil {
			log.WithError(err).WithField("stream", t).Error("hardware read failed")
			return
		}
		if n == 0 {
			return
		}

		switch ctx.state {
		case stateIdle:
			ctx.bytesRemaining = t.preambleSize()
			ctx.index = 0
			ctx.state = statePreamble
			fallthrough
		case statePreamble:
			ctx.preamble[ctx.index] = one[0]
			ctx.index++
			ctx.bytesRemaining--
			if ctx.bytesRemaining == 0 {
				l.finishPreamble(t, ctx)
			}
		case stateBody:
			ctx.buffer.Data[ctx.index] = one[0]
			ctx.index++
			ctx.bytesRemaining--
			if ctx.bytesRemaining > 0 {
				// Opportunistic bulk read of the remainder to
				// minimize per-byte dispatch overhead (spec §4.1).
				rest := ctx.buffer.Data[ctx.index : ctx.index+ctx.bytesRemaining]
				if nr, rerr := l.hal.ReadData(t, rest); rerr == nil && nr > 0 {
					ctx.index += nr
					ctx.bytesRemaining -= nr
				}
			}
			if ctx.bytesRemaining == 0 {
				ctx.state = stateDone
			}
		case stateIgnore:
			ctx.bytesRemaining--
			if ctx.bytesRemaining == 0 {
				ctx.reset()
			}
		case stateDone:
			// Should always have been handled and reset below before
			// another byte is read; reaching this is a logic error.
			log.Error("assembler left in DONE state across reads")
			ctx.reset()
		}

		if ctx.state == stateDone {
			l.finishPacket(t, ctx)
			return
		}
	}
}

// finishPreamble computes the body length from a fully-read preamble,
// allocates the packet buffer, and transitions to BODY (body > 0) or
// DONE (body == 0). Allocation failure degrades to IGNORE/IDLE per spec
// §4.1/§7 rather than propagating.
func (l *Layer) finishPreamble(t StreamType, ctx *receiveContext) {
	bodyLen := t.bodyLength(ctx.preamble[:ctx.index])
	size := ctx.index + bodyLen

	buf, err := l.alloc.Alloc(t.inboundTag(), size)
	if err != nil {
		log.WithError(err).WithField("stream", t).Error("allocation failed for inbound packet buffer; dropping packet")
		if bodyLen > 0 {
			ctx.state = stateIgnore
			ctx.bytesRemaining = bodyLen
		} else {
			ctx.reset()
		}
		return
	}

	copy(buf.Data, ctx.preamble[:ctx.index])
	ctx.buffer = buf
	ctx.bytesRemaining = bodyLen
	if bodyLen > 0 {
		ctx.state = stateBody
	} else {
		ctx.state = stateDone
	}
}

// finishPacket completes a DONE packet: captures it, routes events
// through the event filter, hands everything else to fragmenter
// reassembly, resets the context, and tells the hardware driver the
// packet has been fully consumed.
func (l *Layer) finishPacket(t StreamType, ctx *receiveContext) {
	buf := ctx.buffer
	buf.Len = ctx.index

	if l.logger != nil {
		l.logger.Capture(buf, true)
	}

	if t != StreamEvent || !l.filterEvent(buf) {
		l.frag.ReassembleAndDispatch(buf)
	}

	ctx.reset()
	l.hal.PacketFinished(t)
}
