package devtree

import (
	"fmt"
	"strings"
)

// Outcome is the overall result of Container.Insert.
type Outcome int

const (
	// Placed means every requirement was satisfied cleanly.
	Placed Outcome = iota
	// PlacedWithWarnings means a forced insertion tolerated problems.
	PlacedWithWarnings
	// Rejected means nothing changed; Result.Err holds the cause.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Placed:
		return "Placed"
	case PlacedWithWarnings:
		return "PlacedWithWarnings"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Warning is one problem tolerated by a forced insertion.
type Warning struct {
	// Requirement is the parent requirement being resolved, zero for
	// identifier warnings.
	Requirement Requirement
	// Bus is the id of the bus the device was forced onto, "" when none.
	Bus string
	// Err wraps one of the placement sentinels.
	Err error
}

// Mode names the failure that was forced: NoFreeSlot, UsedSlot,
// InvalidAddress, BusIdentityMismatch, NoMatchingBus or DuplicateIdentifier.
func (w Warning) Mode() string {
	return failureMode(w.Err)
}

func (w Warning) String() string {
	if w.Bus == "" {
		return fmt.Sprintf("%s: %s: %v", w.Mode(), w.Requirement, w.Err)
	}
	return fmt.Sprintf("%s: %s: forced onto %s: %v", w.Mode(), w.Requirement, w.Bus, w.Err)
}

// Result reports the outcome of an insertion.
type Result struct {
	Outcome  Outcome
	Warnings []Warning
	Err      error
}

// OK reports whether the device was placed.
func (r Result) OK() bool {
	return r.Outcome != Rejected
}

// Text joins the warnings in the order they were found, one per line.
func (r Result) Text() string {
	lines := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}

func (r Result) String() string {
	switch r.Outcome {
	case Rejected:
		return fmt.Sprintf("Rejected: %v", r.Err)
	case PlacedWithWarnings:
		return "PlacedWithWarnings:\n" + r.Text()
	}
	return r.Outcome.String()
}
