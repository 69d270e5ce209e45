// Package define builds ready-to-insert device lists for USB controllers
// and disk images. Builders inspect the container to decide which
// controllers are missing, so each returned list must be inserted, in
// order, before the next one is built.
package define

import (
	"errors"
	"strconv"
)

// ErrDeviceNotSupported is returned when the hypervisor lacks a device or
// drive interface a definition needs.
var ErrDeviceNotSupported = errors.New("device not supported by hypervisor")

// Int returns a pointer to v, for the optional integer fields of USB and
// Image.
func Int(v int) *int {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func itoa(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
