package hci

import "time"

// epilogTimeout is spec §4.5's EPILOG_TIMEOUT_MS: how long the epilog
// watchdog waits for the vendor epilog-done callback before forcing the
// worker to stop anyway. A var, not a const, so tests can shrink it
// rather than waiting out a real 3-second watchdog.
var epilogTimeout = 3000 * time.Millisecond

// lifecycleState is the Lifecycle Coordinator's state enum (C5, spec
// §4.5 and §9's "callback-driven control flow → tagged work items").
type lifecycleState uint8

const (
	lsUninit lifecycleState = iota
	lsStarting
	lsPreload
	lsPostload
	lsRunning
	lsEpilog
	lsShutdown
)

func (s lifecycleState) String() string {
	switch s {
	case lsUninit:
		return "UNINIT"
	case lsStarting:
		return "STARTING"
	case lsPreload:
		return "PRELOAD"
	case lsPostload:
		return "POSTLOAD"
	case lsRunning:
		return "RUNNING"
	case lsEpilog:
		return "EPILOG"
	case lsShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// StartUp drives UNINIT→STARTING: it wires the vendor collaborator's
// callbacks, starts the worker, and opens the vendor connection. It
// returns false (and tears down anything it managed to set up) if any
// sub-step fails, per spec §7's "startup sub-step failure" policy.
//
// Opening the hardware channel itself is NOT a startup sub-step: per
// spec §4.5 that is the STARTING→PRELOAD action, driven by DoPreload
// (matching original_source/hci_layer.c, where hal->open() is only ever
// called from the worker-posted event_preload, never from start_up()).
// The worker is started here, before any collaborator call that could
// fail, so a failure always has a running reactor to post ShutDown's
// teardown onto instead of leaking the partially-opened vendor
// connection.
func (l *Layer) StartUp(localAddr [6]byte, callbacks UpperCallbacks) bool {
	if l.state != lsUninit {
		log.WithField("state", l.state).Warn("StartUp called out of sequence")
		return false
	}

	l.localAddr = localAddr
	l.upperCallbacks = callbacks
	l.state = lsStarting

	l.vendor.SetCallback(VendorConfigureFirmware, l.onFirmwareConfigured)
	l.vendor.SetCallback(VendorConfigureSCO, l.onSCOConfigured)
	l.vendor.SetCallback(VendorDoEpilog, l.onEpilogDone)

	go l.worker.run(l)

	if err := l.vendor.Open(localAddr); err != nil {
		log.WithError(err).Error("vendor open failed during startup")
		l.ShutDown()
		return false
	}

	return true
}

// DoPreload posts the STARTING→PRELOAD work item: open the hardware
// channel and request vendor firmware configuration. The firmware-ready
// callback advances the state and notifies the upper layer.
func (l *Layer) DoPreload() {
	l.worker.post(func() {
		if l.state != lsStarting {
			log.WithField("state", l.state).Warn("DoPreload called out of sequence")
			return
		}
		if err := l.hal.Open(); err != nil {
			log.WithError(err).Error("hardware open failed during preload")
			l.notifyPreloadFinished(false)
			return
		}
		if err := l.vendor.SendAsyncCommand(VendorConfigureFirmware, nil); err != nil {
			log.WithError(err).Error("vendor firmware configure failed")
			l.notifyPreloadFinished(false)
		}
	})
}

func (l *Layer) onFirmwareConfigured(ok bool) {
	l.worker.post(func() {
		l.firmwareConfigured = ok
		l.state = lsPreload
		l.notifyPreloadFinished(ok)
	})
}

func (l *Layer) notifyPreloadFinished(ok bool) {
	if l.upperCallbacks.PreloadFinished != nil {
		l.upperCallbacks.PreloadFinished(ok)
	}
}

// DoPostload posts the PRELOAD→POSTLOAD work item: request vendor SCO
// configuration. A synchronous "not applicable" result synthesizes a
// success callback rather than stalling the lifecycle (spec §4.5,
// §7).
func (l *Layer) DoPostload() {
	l.worker.post(func() {
		if l.state != lsPreload {
			log.WithField("state", l.state).Warn("DoPostload called out of sequence")
			return
		}
		err := l.vendor.SendAsyncCommand(VendorConfigureSCO, nil)
		if err == ErrNotApplicable {
			l.onSCOConfigured(true)
			return
		}
		if err != nil {
			log.WithError(err).Error("vendor SCO configure failed")
			l.onSCOConfigured(false)
		}
	})
}

func (l *Layer) onSCOConfigured(ok bool) {
	l.worker.post(func() {
		l.state = lsPostload
		log.WithField("ok", ok).Info("SCO configure complete")
		// ACL-size fetch is logged only, per spec §4.5: "its completion
		// is logged but does not gate further traffic." No dedicated
		// collaborator is named for it (§6 lists only HAL, Fragmenter,
		// Vendor, LowPower, Logger), so it is not modeled as a command
		// round trip here — see DESIGN.md.
		l.state = lsRunning
	})
}

// ShutDown drives RUNNING→EPILOG→SHUTDOWN. A second call is a logged
// no-op (spec §7).
func (l *Layer) ShutDown() {
	l.worker.post(func() {
		if l.hasShutDown {
			log.Warn("ShutDown called more than once")
			return
		}
		if l.state == lsRunning || l.state == lsPreload || l.state == lsPostload || l.state == lsStarting {
			l.state = lsEpilog
		}

		if l.firmwareConfigured {
			l.epilogTimer = time.AfterFunc(epilogTimeout, func() {
				l.worker.post(l.finishShutdown)
			})
			if err := l.vendor.SendAsyncCommand(VendorDoEpilog, nil); err != nil {
				log.WithError(err).Error("vendor epilog request failed; stopping immediately")
				l.finishShutdown()
			}
			return
		}

		l.finishShutdown()
	})
}

func (l *Layer) onEpilogDone(ok bool) {
	l.worker.post(l.finishShutdown)
}

// finishShutdown performs the EPILOG→SHUTDOWN teardown. It is
// idempotent: both the epilog-done callback and the watchdog may race
// to call it, and only the first takes effect.
func (l *Layer) finishShutdown() {
	if l.hasShutDown {
		return
	}
	l.hasShutDown = true
	l.state = lsShutdown

	if l.epilogTimer != nil {
		l.epilogTimer.Stop()
		l.epilogTimer = nil
	}
	l.registry.stop()

	for _, item := range l.cmdQueue.drainAll() {
		if wc, ok := item.(*waitingCommand); ok {
			wc.command.Release()
		}
	}
	for _, item := range l.packetQueue.drainAll() {
		if buf, ok := item.(*Packet); ok {
			buf.Release()
		}
	}

	l.frag.Cleanup()
	l.lowPower.Cleanup()
	if err := l.hal.Close(); err != nil {
		log.WithError(err).Warn("hardware close failed during shutdown")
	}
	if err := l.vendor.SendCommand(VendorChipPowerControl, false); err != nil {
		log.WithError(err).Warn("vendor chip power-off failed")
	}
	if err := l.vendor.Close(); err != nil {
		log.WithError(err).Warn("vendor close failed during shutdown")
	}

	l.worker.stop()
}

// SetChipPowerOn issues the vendor chip-power-control command directly;
// it is not gated by lifecycle state, matching the original's treatment
// of power control as an out-of-band vendor op.
func (l *Layer) SetChipPowerOn(on bool) {
	if err := l.vendor.SendCommand(VendorChipPowerControl, on); err != nil {
		log.WithError(err).WithField("on", on).Error("chip power control failed")
	}
}

// SendLowPowerCommand forwards cmd to the low-power manager, posted to
// the worker like every other mutation of shared state.
func (l *Layer) SendLowPowerCommand(cmd LowPowerCommand) {
	l.worker.post(func() {
		l.lowPower.PostCommand(cmd)
	})
}

// TurnOnLogging opens the packet logger at path.
func (l *Layer) TurnOnLogging(path string) {
	l.worker.post(func() {
		if err := l.logger.Open(path); err != nil {
			log.WithError(err).WithField("path", path).Error("failed to open packet log")
		}
	})
}

// TurnOffLogging closes the packet logger, if open.
func (l *Layer) TurnOffLogging() {
	l.worker.post(func() {
		if err := l.logger.Close(); err != nil {
			log.WithError(err).Warn("failed to close packet log")
		}
	})
}
