package hci

// The Outbound Scheduler (spec §4.4, component C4) owns the two
// outbound queues and the credit-gated command dispatch. Both queues
// are only ever drained from the worker goroutine; onCommandQueueReady
// and onPacketQueueReady are invoked either by worker.run in response to
// a queue's notify channel, or directly (already on the worker
// goroutine) after an event filter replenishes credits.

// TransmitCommand enqueues a fully-built command packet (opcode + plen +
// parameters, per spec §3's command preamble) for credit-gated
// dispatch. onComplete/onStatus are invoked from the worker goroutine
// when the matching event arrives; ctx is passed through unexamined.
func (l *Layer) TransmitCommand(buf *Packet, onComplete CommandCompleteFunc, onStatus CommandStatusFunc, ctx interface{}) {
	if len(buf.Bytes()) < 2 {
		log.Error("command packet too short to carry an opcode; dropping")
		buf.Release()
		return
	}
	body := buf.Bytes()
	opcode := Opcode(uint16(body[0]) | uint16(body[1])<<8)
	buf.Tag = TagCommand

	wc := &waitingCommand{
		opcode:     opcode,
		onComplete: onComplete,
		onStatus:   onStatus,
		ctx:        ctx,
		command:    buf,
	}
	l.cmdQueue.enqueue(wc)
}

// TransmitDownward enqueues a non-command outbound packet (ACL or SCO)
// for dispatch as soon as the scheduler reaches it; unlike commands,
// these are never credit-gated.
func (l *Layer) TransmitDownward(tag PacketTag, buf *Packet) {
	if tag == TagCommand {
		log.Warn("TransmitDownward called with a command tag; routing through TransmitCommand")
		l.TransmitCommand(buf, nil, nil, nil)
		return
	}
	buf.Tag = tag
	l.packetQueue.enqueue(buf)
}

// onCommandQueueReady dispatches at most one command, gated on credits
// (spec §4.4 invariant: never more in-flight commands than the
// controller's last-advertised credit count). It re-signals itself if
// credits and queued work both remain, preserving itemQueue's
// level-triggered contract without starving the packet queue or worker
// postings in the same select.
func (l *Layer) onCommandQueueReady() {
	if l.credits <= 0 {
		return
	}
	item, ok := l.cmdQueue.tryDequeue()
	if !ok {
		return
	}
	wc := item.(*waitingCommand)

	l.credits--
	l.registry.append(wc)

	l.lowPower.WakeAssert()
	l.frag.FragmentAndDispatch(wc.command)
	l.lowPower.TransmitDone()

	if l.credits > 0 && !l.cmdQueue.empty() {
		l.cmdQueue.signal()
	}
}

// onPacketQueueReady dispatches at most one ACL/SCO packet per call,
// matching the assembler's one-packet-per-call fairness rule.
func (l *Layer) onPacketQueueReady() {
	item, ok := l.packetQueue.tryDequeue()
	if !ok {
		return
	}
	buf := item.(*Packet)

	l.lowPower.WakeAssert()
	l.frag.FragmentAndDispatch(buf)
	l.lowPower.TransmitDone()

	if !l.packetQueue.empty() {
		l.packetQueue.signal()
	}
}

// transmitFragment is registered as FragmenterCallbacks.TransmitFragment:
// it writes one fragment to the hardware driver and, for the final
// fragment of a non-command packet, notifies the upper layer that the
// transmit completed. Command buffers are released only when their
// matching event arrives (registry ownership), never here.
func (l *Layer) transmitFragment(buf *Packet, last bool) {
	st, ok := tagToStreamType(buf.Tag)
	if !ok {
		log.WithField("tag", buf.Tag).Error("outbound fragment carries an inbound tag")
	}

	if l.logger != nil {
		l.logger.Capture(buf, false)
	}

	if err := l.hal.TransmitData(st, buf.Bytes()); err != nil {
		log.WithError(err).WithField("stream", st).Error("hardware transmit failed")
	}

	if buf.Tag != TagCommand && last {
		if l.upperCallbacks.TransmitFinished != nil {
			l.upperCallbacks.TransmitFinished(buf, true)
		}
	}
}

// dispatchReassembled is registered as
// FragmenterCallbacks.DispatchReassembled: a fully reassembled inbound
// packet is handed to the upward dispatcher keyed by its tag.
func (l *Layer) dispatchReassembled(buf *Packet) {
	l.upward.Dispatch(buf)
}

// fragmenterTransmitFinished is registered as
// FragmenterCallbacks.TransmitFinished for fragmenters that signal
// completion asynchronously rather than inline with the last fragment.
func (l *Layer) fragmenterTransmitFinished(buf *Packet, allSent bool) {
	if l.upperCallbacks.TransmitFinished != nil {
		l.upperCallbacks.TransmitFinished(buf, allSent)
	}
}
