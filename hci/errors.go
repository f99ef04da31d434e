package hci

type sentinelError string

func newSentinelError(msg string) error { return sentinelError(msg) }

func (e sentinelError) Error() string { return string(e) }

// ErrAllocationFailed is what an Allocator returns when an inbound
// packet buffer could not be allocated. Per spec §7 this is
// never propagated to the caller of a public API; it only drives local
// degrade-and-log behavior.
var ErrAllocationFailed = newSentinelError("hci: allocation failed")
