package devtree

import (
	"strconv"
	"strings"
)

// Coord is one component of an address. The zero value is unspecified; a
// Coord may also hold one concrete value or a list of candidates tried in
// order.
type Coord struct {
	vals []int
}

// At returns a concrete component.
func At(v int) Coord {
	return Coord{vals: []int{v}}
}

// OneOf returns a component that accepts the first free value of vals.
// OneOf() with no values is unspecified.
func OneOf(vals ...int) Coord {
	if len(vals) == 0 {
		return Coord{}
	}
	c := Coord{vals: make([]int, len(vals))}
	copy(c.vals, vals)
	return c
}

// Any returns an unspecified component.
func Any() Coord {
	return Coord{}
}

// IsSet reports whether the component is not unspecified.
func (c Coord) IsSet() bool {
	return len(c.vals) > 0
}

// Value returns the concrete value. ok is false for unspecified components
// and candidate lists.
func (c Coord) Value() (int, bool) {
	if len(c.vals) != 1 {
		return 0, false
	}
	return c.vals[0], true
}

// Candidates returns a copy of the candidate values.
func (c Coord) Candidates() []int {
	out := make([]int, len(c.vals))
	copy(out, c.vals)
	return out
}

func (c Coord) String() string {
	switch len(c.vals) {
	case 0:
		return "*"
	case 1:
		return strconv.Itoa(c.vals[0])
	}
	parts := make([]string, len(c.vals))
	for i, v := range c.vals {
		parts[i] = strconv.Itoa(v)
	}
	return "{" + strings.Join(parts, "|") + "}"
}

// Address is a per-dimension address. Requests may leave components
// unspecified; resolved addresses returned by FreeSlot are fully concrete.
type Address []Coord

// Pin builds a fully concrete address.
func Pin(vals ...int) Address {
	a := make(Address, len(vals))
	for i, v := range vals {
		a[i] = At(v)
	}
	return a
}

// Wildcard builds an address of n unspecified components.
func Wildcard(n int) Address {
	return make(Address, n)
}

// Pinned reports whether every component is a single concrete value.
func (a Address) Pinned() bool {
	for _, c := range a {
		if _, ok := c.Value(); !ok {
			return false
		}
	}
	return true
}

// Ints returns the concrete values; unspecified components read as -1.
func (a Address) Ints() []int {
	out := make([]int, len(a))
	for i, c := range a {
		v, ok := c.Value()
		if !ok {
			v = -1
		}
		out[i] = v
	}
	return out
}

func (a Address) at(i int) Coord {
	if i < len(a) {
		return a[i]
	}
	return Coord{}
}

func (a Address) clone() Address {
	out := make(Address, len(a))
	copy(out, a)
	return out
}

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, c := range a {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// compareAddresses orders concrete addresses lexicographically.
func compareAddresses(a, b Address) int {
	ai, bi := a.Ints(), b.Ints()
	for i := 0; i < len(ai) && i < len(bi); i++ {
		if ai[i] != bi[i] {
			if ai[i] < bi[i] {
				return -1
			}
			return 1
		}
	}
	return len(ai) - len(bi)
}
