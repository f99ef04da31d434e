package hci

// worker is the single cooperative reactor described in spec §5: it
// owns all mutation of the outbound queues, the receive contexts, the
// credit counter, and the lifecycle flags. Everything it touches is
// only ever touched from inside its loop, except the pending-response
// registry (registry.go), which is explicitly mutex-guarded because the
// timeout alarm fires from its own goroutine.
//
// This generalizes the pattern the teacher already uses twice: linux/
// cmd.go's processCmdEvents (a select over two result channels) and
// linux/hci.go's mainLoop (a blocking read loop that dispatches via a
// posted goroutine). Here both shapes — "posted closures" and
// "queue/data-ready notifications" — are unified into one select loop,
// matching spec §5's three suspension points verbatim.
type worker struct {
	postc     chan func()
	dataReady chan StreamType
	done      chan struct{}
}

func newWorker() *worker {
	return &worker{
		postc:     make(chan func(), 64),
		dataReady: make(chan StreamType, numStreamTypes),
		done:      make(chan struct{}),
	}
}

// post schedules fn to run on the worker goroutine. Safe to call from
// any goroutine, including the worker's own (the lifecycle callbacks
// post follow-up work from inside the worker).
func (w *worker) post(fn func()) {
	select {
	case w.postc <- fn:
	case <-w.done:
	}
}

// notifyDataReady schedules a StreamType data-ready notification, the
// hardware driver's callback into this layer (spec §6: "data_ready(type)
// — scheduled on the worker").
func (w *worker) notifyDataReady(t StreamType) {
	select {
	case w.dataReady <- t:
	case <-w.done:
	}
}

// run is the reactor loop. It returns once stop() closes done and every
// already-queued post/notify has been drained is not guaranteed — stop
// is a hard quiesce, matching spec §4.5's "join the worker" semantics
// where in-flight work is abandoned, not finished.
func (w *worker) run(l *Layer) {
	for {
		select {
		case fn := <-w.postc:
			fn()
		case t := <-w.dataReady:
			l.assembleOne(t)
		case <-l.cmdQueue.notify:
			l.onCommandQueueReady()
		case <-l.packetQueue.notify:
			l.onPacketQueueReady()
		case <-w.done:
			return
		}
	}
}

// stop quiesces the worker. It is safe to call more than once.
func (w *worker) stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
