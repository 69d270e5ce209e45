package devtree

import (
	"fmt"
	"strings"
)

const dumpRule = "---------------"

// String is the short representation:
// "<id>(<type>/<family>): <slots>  <invalid>". Dense buses list every slot in
// address order, sparse buses list only the used ones as key:device.
func (b *Bus) String() string {
	return fmt.Sprintf("%s(%s/%s): %s  %s", b.id, b.typ, b.family, b.strSlots(), b.strInvalid())
}

func (b *Bus) dense() bool {
	switch b.family {
	case FamilyDense, FamilyHex, FamilyBusUnit:
		return true
	}
	return false
}

func (b *Bus) strSlots() string {
	var parts []string
	if b.dense() {
		b.eachAddress(func(addr Address) {
			parts = append(parts, slotText(b.slots[b.storKey(addr)]))
		})
		return "[" + strings.Join(parts, ",") + "]"
	}
	for _, e := range b.Entries() {
		parts = append(parts, e.Key+":"+slotText(b.slots[e.Key]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (b *Bus) strInvalid() string {
	var parts []string
	for _, e := range b.InvalidEntries() {
		parts = append(parts, e.Key+":"+e.Device.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// StrLong is the multi-line representation with every recorded device in
// full.
func (b *Bus) StrLong() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bus %s, type=%s, family=%s\nSlots:\n", b.id, b.typ, b.family)
	if b.dense() {
		b.eachAddress(func(addr Address) {
			key := b.storKey(addr)
			writeBlock(&sb, key, b.slots[key])
		})
	} else {
		for _, e := range b.Entries() {
			writeBlock(&sb, e.Key, b.slots[e.Key])
		}
	}
	sb.WriteString("Invalid:\n")
	for _, e := range b.InvalidEntries() {
		writeBlock(&sb, e.Key, &slotEntry{state: SlotOccupied, dev: e.Device})
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, key string, e *slotEntry) {
	fmt.Fprintf(sb, "%s< %4s >%s\n", dumpRule, key, dumpRule)
	if e == nil || e.state != SlotOccupied {
		fmt.Fprintf(sb, "  %s\n", slotText(e))
		return
	}
	sb.WriteString(indent(e.dev.StrLong(), "  "))
}

func slotText(e *slotEntry) string {
	switch {
	case e == nil:
		return "None"
	case e.state == SlotReserved:
		return "reserved"
	}
	return e.dev.String()
}

// eachAddress visits every valid address in order.
func (b *Bus) eachAddress(fn func(Address)) {
	if len(b.dims) == 0 {
		fn(Address{})
		return
	}
	pos := make([]int, len(b.dims))
	for {
		fn(Pin(pos...))
		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < b.dims[i].Length {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(line)
	}
	return sb.String()
}

// StrShort lists the devices in insertion order.
func (c *Container) StrShort() string {
	names := make([]string, len(c.devices))
	for i, d := range c.devices {
		names[i] = d.String()
	}
	return fmt.Sprintf("Devices of %s: [%s]", c.name, strings.Join(names, ","))
}

// StrBusShort lists every bus on one line each, newest first.
func (c *Container) StrBusShort() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Buses of %s", c.name)
	for _, b := range c.buses {
		sb.WriteString("\n  ")
		sb.WriteString(b.String())
	}
	return sb.String()
}

// StrBusLong dumps every bus with its devices in full.
func (c *Container) StrBusLong() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Devices of %s:\n", c.name)
	for _, b := range c.buses {
		sb.WriteString(indent(b.StrLong(), "  "))
	}
	return sb.String()
}
