package devtree

import (
	"errors"
	"fmt"
)

// Placement failures. Every rejected Insert wraps exactly one of these and
// every forced warning carries one as its cause.
var (
	// ErrInvalidAddress reports a requested address component outside the
	// bus range, or an address parameter that cannot be parsed.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrBusIdentityMismatch reports a bus-linkage parameter naming another bus.
	ErrBusIdentityMismatch = errors.New("bus identity mismatch")
	// ErrNoFreeSlot reports that every matching slot is occupied.
	ErrNoFreeSlot = errors.New("no free slot")
	// ErrUsedSlot reports that a fully pinned address is occupied.
	ErrUsedSlot = fmt.Errorf("%w: slot already used", ErrNoFreeSlot)
	// ErrNoMatchingBus reports a requirement no bus in the container satisfies.
	ErrNoMatchingBus = errors.New("no matching bus")
	// ErrDuplicateIdentifier reports a declared id already used by another device.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

var (
	// ErrDeviceOwned is returned when inserting a device that already belongs
	// to a container.
	ErrDeviceOwned = errors.New("device already inserted")
	// ErrUnknownDevice is returned when removing a device the container does
	// not hold.
	ErrUnknownDevice = errors.New("unknown device")
)

// failureMode names the sentinel wrapped by err for warning text.
func failureMode(err error) string {
	switch {
	case errors.Is(err, ErrUsedSlot):
		return "UsedSlot"
	case errors.Is(err, ErrNoFreeSlot):
		return "NoFreeSlot"
	case errors.Is(err, ErrInvalidAddress):
		return "InvalidAddress"
	case errors.Is(err, ErrBusIdentityMismatch):
		return "BusIdentityMismatch"
	case errors.Is(err, ErrNoMatchingBus):
		return "NoMatchingBus"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "DuplicateIdentifier"
	default:
		return "Error"
	}
}
