package hci

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// commandPendingTimeout is spec §4.3's COMMAND_PENDING_TIMEOUT: a
// command issued and pending for this long with no credit-replenishing
// event is considered fatal.
const commandPendingTimeout = 8000 * time.Millisecond

// fatalDrainPause gives the logger a moment to flush before the fault
// reporter tears the process down, per spec §4.3's "On fire" rationale.
const fatalDrainPause = 10 * time.Millisecond

// waitingCommand is spec §3's "Waiting command": created at
// TransmitCommand, enqueued on the command queue, appended to the
// pending-response registry on credit-gate dequeue, and removed on the
// first matching-opcode event or fatally on timeout.
type waitingCommand struct {
	opcode     Opcode
	onComplete CommandCompleteFunc
	onStatus   CommandStatusFunc
	ctx        interface{}
	command    *Packet
}

// pendingRegistry is the FIFO of waiting-commands described in spec
// §3/§4.3. It is mutated from the worker goroutine (append on credit
// dispatch, remove on event match) and from an external alarm goroutine
// (read-only peek on timeout), so it is guarded by a mutex — the one
// piece of cross-thread intrusion spec §5 calls out.
type pendingRegistry struct {
	mu      sync.Mutex
	entries *list.List // of *waitingCommand
	timer   *time.Timer
	onFire  func(opcode Opcode)

	// timeout is commandPendingTimeout in production; tests shrink it so
	// the S6 timeout scenario doesn't have to wait 8 real seconds.
	timeout time.Duration
}

func newPendingRegistry(onFire func(opcode Opcode)) *pendingRegistry {
	return &pendingRegistry{
		entries: list.New(),
		onFire:  onFire,
		timeout: commandPendingTimeout,
	}
}

// append adds wc to the back of the FIFO and re-evaluates the timeout
// alarm (invariant (ii) in spec §3: a single alarm is armed iff the
// list is non-empty).
func (r *pendingRegistry) append(wc *waitingCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.PushBack(wc)
	r.rearmLocked()
}

// removeByOpcode removes and returns the first entry matching opcode
// (invariant (iii): FIFO-by-opcode), re-evaluating the alarm afterward.
func (r *pendingRegistry) removeByOpcode(opcode Opcode) (*waitingCommand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := r.entries.Front(); e != nil; e = e.Next() {
		wc := e.Value.(*waitingCommand)
		if wc.opcode == opcode {
			r.entries.Remove(e)
			r.rearmLocked()
			return wc, true
		}
	}
	return nil, false
}

// len reports the current pending count, for tests verifying spec §8
// invariant 2.
func (r *pendingRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Len()
}

// armed reports whether the timeout alarm is currently set, for tests
// verifying spec §8 invariant 3.
func (r *pendingRegistry) armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

// rearmLocked must be called with mu held. It cancels the alarm if the
// list is empty, otherwise (re)arms it for commandPendingTimeout from
// now — spec §4.3 is explicit that this measures time since last
// activity on the oldest pending command, not a fixed per-command
// deadline.
func (r *pendingRegistry) rearmLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.entries.Len() == 0 {
		return
	}
	r.timer = time.AfterFunc(r.timeout, r.fire)
}

// fire runs on the timer's own goroutine — the "external alarm-service
// thread" of spec §5. Per the Open Question in spec §9, the mutex is
// held across the peek-and-copy so a concurrent mutation of the list
// cannot race with reading the head's opcode.
func (r *pendingRegistry) fire() {
	r.mu.Lock()
	front := r.entries.Front()
	if front == nil {
		r.mu.Unlock()
		log.Error("command timeout alarm fired with no commands pending response")
		return
	}
	opcode := front.Value.(*waitingCommand).opcode
	r.mu.Unlock()

	log.WithField("opcode", opcode).Error("hci command timeout; host restart required")
	if r.onFire != nil {
		r.onFire(opcode)
	}
}

// stop cancels any armed alarm, used at shutdown.
func (r *pendingRegistry) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// defaultFaultReporter terminates the host process after logging the
// wedged opcode, per spec §4.3's rationale: a wedged controller is not
// recoverable from within this layer.
type defaultFaultReporter struct {
	exit func(code int)
}

func newDefaultFaultReporter(exit func(code int)) *defaultFaultReporter {
	return &defaultFaultReporter{exit: exit}
}

func (r *defaultFaultReporter) Fatal(_ context.Context, opcode Opcode) {
	time.Sleep(fatalDrainPause)
	r.exit(1)
}
