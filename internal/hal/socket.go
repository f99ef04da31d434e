//go:build linux

// Package hal adapts the host's raw HCI socket to the hci.HardwareDriver
// contract. It is grounded on the teacher's linux/internal/socket
// package, which hand-rolled the handful of AF_BLUETOOTH primitives the
// standard library doesn't expose; here the same sockaddr-construction
// approach is kept but driven through golang.org/x/sys/unix instead of
// raw syscall, since x/sys carries the portability shims (errno
// handling, build-tag plumbing) the teacher's bare syscall calls lacked.
package hal

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// HCI channels, mirroring linux/internal/socket's constants: RAW exposes
// every HCI traffic class to user space, USER exclusively claims the
// controller so the kernel's own Bluetooth stack steps aside.
const (
	hciChannelRaw  = 0
	hciChannelUser = 1
)

type rawSockaddrHCI struct {
	Family  uint16
	Dev     uint16
	Channel uint16
}

const sizeofSockaddrHCI = unsafe.Sizeof(rawSockaddrHCI{})

// bindHCI opens and binds an AF_BLUETOOTH/BTPROTO_HCI raw socket to
// device dev on the given channel. golang.org/x/sys/unix does not know
// about HCI sockaddrs, so the raw struct and the bind syscall are
// constructed directly, the same shape as the teacher's hand-rolled
// socket.Bind.
func bindHCI(dev int, channel uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return -1, err
	}

	sa := rawSockaddrHCI{
		Family:  unix.AF_BLUETOOTH,
		Dev:     uint16(dev),
		Channel: channel,
	}
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), uintptr(sizeofSockaddrHCI))
	if errno != 0 {
		unix.Close(fd)
		return -1, errno
	}
	return fd, nil
}

// openHCIDevice binds HCI_CHANNEL_USER, the dedicated-access channel a
// host stack needs to own command/event/ACL/SCO framing itself; it falls
// back to HCI_CHANNEL_RAW on kernels that predate the user channel.
func openHCIDevice(dev int) (int, error) {
	fd, err := bindHCI(dev, hciChannelUser)
	if err == unix.EINVAL {
		return bindHCI(dev, hciChannelRaw)
	}
	return fd, err
}
