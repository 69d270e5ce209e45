// Package devtree models the device topology of a virtual machine.
//
// A Container owns an ordered list of buses and devices. Devices declare the
// buses they plug into as Requirements and may host buses of their own.
// Inserting a device resolves every requirement against the container's
// buses, picks a free slot on each matching bus and records the placement.
// A rejected insertion leaves the container exactly as it was; a forced
// insertion always succeeds and reports every tolerated problem as a Warning.
//
// Buses come in five addressing families (single slot, dense, sparse,
// compound bus+unit and hex-dense) that share one contract: Match, FreeSlot,
// Record, ApplyAddress and Remove.
//
// The package performs no I/O. Rendering devices into hypervisor command
// fragments lives in internal/qcmd.
package devtree
