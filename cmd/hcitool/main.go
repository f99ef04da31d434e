//go:build linux

// hcitool wires the hci transport layer to a real Linux HCI socket, a
// fixed-MTU fragmenter, and a minimal vendor bring-up sequence, then
// issues HCI_Reset and waits for its command-complete event. It exists
// to exercise the collaborator wiring end to end, in the style of the
// teacher's examples/server.go.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pe-wip/system-bt/hci"
	"github.com/pe-wip/system-bt/internal/fragmenter"
	"github.com/pe-wip/system-bt/internal/hal"
	"github.com/pe-wip/system-bt/internal/vendor"
)

func main() {
	dev := flag.Int("dev", 0, "HCI device index (e.g. 0 for hci0)")
	aclMTU := flag.Int("acl-mtu", 1021, "outbound ACL fragment size")
	logPath := flag.String("btsnoop", "", "optional btsnoop capture path")
	flag.Parse()

	driver := hal.New(*dev)
	frag := fragmenter.New(*aclMTU)
	v := vendor.New(driver)

	layer := hci.NewLayer(driver, frag, v, noopLowPower{}, noopLogger{})

	ok := layer.StartUp([6]byte{}, hci.UpperCallbacks{
		PreloadFinished: func(ok bool) {
			logrus.WithField("ok", ok).Info("preload finished")
		},
	})
	if !ok {
		fmt.Fprintln(os.Stderr, "hcitool: start up failed")
		os.Exit(1)
	}

	if *logPath != "" {
		layer.TurnOnLogging(*logPath)
	}

	layer.DoPreload()
	layer.DoPostload()

	done := make(chan struct{})
	reset := []byte{0x03, 0x0c, 0x00} // HCI_Reset: opcode 0x0C03 LE, zero-length parameters
	cmd := hci.NewPacket(hci.TagCommand, len(reset))
	copy(cmd.Data, reset)
	cmd.Len = len(reset)
	layer.TransmitCommand(cmd, func(packet *hci.Packet, ctx interface{}) {
		logrus.Info("HCI_Reset complete")
		close(done)
	}, nil, nil)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logrus.Warn("timed out waiting for HCI_Reset complete")
	}

	layer.ShutDown()
}

type noopLowPower struct{}

func (noopLowPower) Init(func(func()))                {}
func (noopLowPower) Cleanup()                         {}
func (noopLowPower) WakeAssert()                      {}
func (noopLowPower) TransmitDone()                    {}
func (noopLowPower) PostCommand(hci.LowPowerCommand)  {}

type noopLogger struct{}

func (noopLogger) Open(string) error         { return nil }
func (noopLogger) Close() error              { return nil }
func (noopLogger) Capture(*hci.Packet, bool) {}
