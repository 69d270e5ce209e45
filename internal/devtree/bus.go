package devtree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Family is the addressing kind of a bus.
type Family int

const (
	// FamilyAny matches every family in a Requirement.
	FamilyAny Family = iota
	// FamilySingle buses have exactly one slot.
	FamilySingle
	// FamilyDense buses have one dimension scanned from 0.
	FamilyDense
	// FamilySparse buses have any number of dimensions.
	FamilySparse
	// FamilyBusUnit buses address (bus, unit) pairs.
	FamilyBusUnit
	// FamilyHex buses are dense buses with base-16 addresses.
	FamilyHex
)

func (f Family) String() string {
	switch f {
	case FamilyAny:
		return "any"
	case FamilySingle:
		return "single"
	case FamilyDense:
		return "dense"
	case FamilySparse:
		return "sparse"
	case FamilyBusUnit:
		return "bus-unit"
	case FamilyHex:
		return "hex"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// ParseFamily parses the names returned by Family.String.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return FamilyAny, nil
	case "single":
		return FamilySingle, nil
	case "dense":
		return FamilyDense, nil
	case "sparse":
		return FamilySparse, nil
	case "bus-unit", "busunit":
		return FamilyBusUnit, nil
	case "hex":
		return FamilyHex, nil
	}
	return FamilyAny, fmt.Errorf("unknown bus family %q", s)
}

// Dim is one addressing dimension: the device param holding the component
// and the number of values it can take.
type Dim struct {
	Param  string
	Length int
	// DefaultZero reads a missing param as 0 instead of unspecified.
	DefaultZero bool
}

// SlotState is the state of one address on a bus.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotReserved
	SlotOccupied
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotReserved:
		return "reserved"
	case SlotOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// SlotStatus is the outcome of a free-slot search.
type SlotStatus int

const (
	// FoundExact means an empty slot was found.
	FoundExact SlotStatus = iota
	// FoundReserved means a reserved slot may be claimed.
	FoundReserved
	// NoFreeSlot means every candidate slot is taken.
	NoFreeSlot
	// InvalidAddress means a requested component is out of range.
	InvalidAddress
)

func (s SlotStatus) String() string {
	switch s {
	case FoundExact:
		return "FoundExact"
	case FoundReserved:
		return "FoundReserved"
	case NoFreeSlot:
		return "NoFreeSlot"
	case InvalidAddress:
		return "InvalidAddress"
	default:
		return fmt.Sprintf("SlotStatus(%d)", int(s))
	}
}

// Found reports whether the search yielded a usable slot.
func (s SlotStatus) Found() bool {
	return s == FoundExact || s == FoundReserved
}

// RecordMode selects where Record stores a device.
type RecordMode int

const (
	// RecordValid stores the device at a free or reserved valid address.
	RecordValid RecordMode = iota
	// RecordUsed stores the device in the invalid table because its
	// address is taken.
	RecordUsed
	// RecordOutOfRange stores the device in the invalid table because its
	// address lies outside the bus.
	RecordOutOfRange
)

type addrFormat int

const (
	formatDecimal addrFormat = iota
	formatHex
	formatLetter
)

type slotEntry struct {
	addr  Address
	state SlotState
	dev   *Device
	// reserved is set when dev took over a reservation; removing dev
	// reserves the slot again.
	reserved bool
}

// Bus is an address space hosting devices.
type Bus struct {
	id        string
	typ       string
	key       string
	family    Family
	linkParam string
	dims      []Dim
	format    addrFormat

	slots   map[string]*slotEntry
	invalid map[string]*Device
}

func newBus(family Family, id, typ, key, linkParam string, format addrFormat, dims ...Dim) *Bus {
	for _, d := range dims {
		if d.Length <= 0 {
			panic(fmt.Sprintf("devtree: bus %s: dimension %q has length %d", id, d.Param, d.Length))
		}
	}
	want := -1
	switch family {
	case FamilySingle:
		want = 0
	case FamilyDense, FamilyHex:
		want = 1
	case FamilyBusUnit:
		want = 2
	case FamilySparse:
	default:
		panic(fmt.Sprintf("devtree: bus %s: unsupported family %s", id, family))
	}
	if want >= 0 && len(dims) != want {
		panic(fmt.Sprintf("devtree: bus %s: %s bus needs %d dimensions, got %d", id, family, want, len(dims)))
	}
	return &Bus{
		id:        id,
		typ:       typ,
		key:       key,
		family:    family,
		linkParam: linkParam,
		dims:      append([]Dim(nil), dims...),
		format:    format,
		slots:     make(map[string]*slotEntry),
		invalid:   make(map[string]*Device),
	}
}

// NewSparseBus returns an N-dimensional bus. linkParam names the device
// param that carries the bus id ("" for none).
func NewSparseBus(id, typ, key, linkParam string, dims ...Dim) *Bus {
	return newBus(FamilySparse, id, typ, key, linkParam, formatDecimal, dims...)
}

// NewDenseBus returns a one-dimensional bus of length slots.
func NewDenseBus(id, typ, key, linkParam, param string, length int) *Bus {
	return newBus(FamilyDense, id, typ, key, linkParam, formatDecimal, Dim{Param: param, Length: length})
}

// NewHexBus returns a dense bus whose addresses are written in base 16.
func NewHexBus(id, typ, key, linkParam, param string, length int) *Bus {
	return newBus(FamilyHex, id, typ, key, linkParam, formatHex, Dim{Param: param, Length: length})
}

// NewBusUnitBus returns a compound bus of buses x units. Devices carry the
// position as bus=<id>.<bus> and unit=<unit>.
func NewBusUnitBus(id, typ, key string, buses, units int) *Bus {
	return newBus(FamilyBusUnit, id, typ, key, "bus", formatDecimal,
		Dim{Param: "bus", Length: buses}, Dim{Param: "unit", Length: units})
}

// NewDriveBus returns the single-slot bus hosted by a drive.
func NewDriveBus(id, key string) *Bus {
	return newBus(FamilySingle, id, "QDrive", key, "drive", formatDecimal)
}

// NewPCIBus returns a 32-slot PCI bus addressed by the "addr" param.
func NewPCIBus(id, typ, key string) *Bus {
	return NewHexBus(id, typ, key, "bus", "addr", 32)
}

// NewUSBBus returns a USB bus with length ports. The type is reduced to its
// controller family (uhci, ehci, ohci, xhci) when it names one.
func NewUSBBus(length int, id, typ, key string) *Bus {
	for _, family := range []string{"uhci", "ehci", "ohci", "xhci"} {
		if strings.Contains(typ, family) {
			typ = family
			break
		}
	}
	return NewDenseBus(id, typ, key, "bus", "port", length)
}

// NewSCSIBus returns a scsi_id x lun bus. A missing lun reads as 0 since
// the hypervisor never assigns luns on its own.
func NewSCSIBus(id, typ, key string) *Bus {
	if typ == "" {
		typ = "virtio-scsi-pci"
	}
	return NewSparseBus(id, typ, key, "bus",
		Dim{Param: "scsi_id", Length: 256},
		Dim{Param: "lun", Length: 16384, DefaultZero: true})
}

// NewAHCIBus returns an AHCI bus: 6 ports with 2 units each.
func NewAHCIBus(id, key string) *Bus {
	return NewBusUnitBus(id, "ahci", key, 6, 2)
}

// NewIDEBus returns an IDE bus: 2 channels with 2 units each.
func NewIDEBus(id, key string) *Bus {
	return NewBusUnitBus(id, "ide", key, 2, 2)
}

// NewFloppyBus returns the two-unit floppy controller bus. Units are written
// as driveA and driveB in the "property" param.
func NewFloppyBus(id, key string) *Bus {
	return newBus(FamilyDense, id, "floppy", key, "", formatLetter, Dim{Param: "property", Length: 2})
}

// ID returns the bus id.
func (b *Bus) ID() string { return b.id }

// Type returns the bus type.
func (b *Bus) Type() string { return b.typ }

// Key returns the correlation key.
func (b *Bus) Key() string { return b.key }

// Family returns the addressing family.
func (b *Bus) Family() Family { return b.family }

// LinkParam returns the device param that carries the bus id.
func (b *Bus) LinkParam() string { return b.linkParam }

// Dims returns a copy of the addressing dimensions.
func (b *Bus) Dims() []Dim { return append([]Dim(nil), b.dims...) }

// Capacity returns the number of valid addresses.
func (b *Bus) Capacity() int {
	n := 1
	for _, d := range b.dims {
		n *= d.Length
	}
	return n
}

// Match reports whether b satisfies req.
func (b *Bus) Match(req Requirement) bool {
	if req.Type != "" && req.Type != b.typ {
		return false
	}
	if req.Family != FamilyAny && req.Family != b.family {
		return false
	}
	if req.BusID != "" && req.BusID != b.id {
		return false
	}
	if req.Key != "" && req.Key != b.key {
		return false
	}
	return true
}

// UnitAddress decomposes a flat compound address into (bus, unit).
func (b *Bus) UnitAddress(n int) Address {
	units := b.dims[len(b.dims)-1].Length
	return Pin(n/units, n%units)
}

// FlatAddress composes a concrete (bus, unit) address into one integer.
func (b *Bus) FlatAddress(addr Address) (int, bool) {
	if b.family != FamilyBusUnit || !addr.Pinned() || len(addr) != 2 {
		return 0, false
	}
	v := addr.Ints()
	return v[0]*b.dims[1].Length + v[1], true
}

// FreeSlot searches for a slot matching pattern. Unspecified components are
// searched from 0, concrete ones are fixed and candidate lists are tried in
// order. A reserved slot is only handed out to fully pinned requests.
func (b *Bus) FreeSlot(pattern Address) (Address, SlotStatus) {
	switch b.family {
	case FamilySingle:
		e := b.slots[b.storKey(nil)]
		switch {
		case e == nil:
			return Address{}, FoundExact
		case e.state == SlotReserved:
			return Address{}, FoundReserved
		}
		return nil, NoFreeSlot
	case FamilyBusUnit:
		return b.freeUnitSlot(pattern)
	}
	return b.freeGridSlot(pattern)
}

// freeGridSlot walks the request like a mixed-radix counter, varying the
// least significant unpinned component first.
func (b *Bus) freeGridSlot(pattern Address) (Address, SlotStatus) {
	n := len(b.dims)
	domains := make([][]int, n)
	pinned := true
	for i, d := range b.dims {
		c := pattern.at(i)
		if !c.IsSet() {
			pinned = false
			continue
		}
		for _, v := range c.vals {
			if v < 0 || v >= d.Length {
				return nil, InvalidAddress
			}
		}
		if len(c.vals) > 1 {
			pinned = false
		}
		domains[i] = c.vals
	}
	size := func(i int) int {
		if domains[i] == nil {
			return b.dims[i].Length
		}
		return len(domains[i])
	}
	value := func(i, pos int) int {
		if domains[i] == nil {
			return pos
		}
		return domains[i][pos]
	}

	pos := make([]int, n)
	for {
		addr := make(Address, n)
		for i := range pos {
			addr[i] = At(value(i, pos[i]))
		}
		e := b.slots[b.storKey(addr)]
		if e == nil {
			return addr, FoundExact
		}
		if pinned && e.state == SlotReserved {
			return addr, FoundReserved
		}

		i := n - 1
		for ; i >= 0; i-- {
			if size(i) == 1 {
				continue
			}
			pos[i]++
			if pos[i] < size(i) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return nil, NoFreeSlot
		}
	}
}

// freeUnitSlot expands a (bus, unit) request into flat addresses and
// searches them in order.
func (b *Bus) freeUnitSlot(pattern Address) (Address, SlotStatus) {
	buses, units := b.dims[0].Length, b.dims[1].Length
	busVals, ok := componentValues(pattern.at(0), buses)
	if !ok {
		return nil, InvalidAddress
	}
	unitVals, ok := componentValues(pattern.at(1), units)
	if !ok {
		return nil, InvalidAddress
	}
	flat := make([]int, 0, len(busVals)*len(unitVals))
	for _, bus := range busVals {
		for _, unit := range unitVals {
			flat = append(flat, bus*units+unit)
		}
	}
	return b.freeCandidateSlot(flat, pattern.Pinned() && len(pattern) >= 2)
}

func (b *Bus) freeCandidateSlot(flat []int, pinned bool) (Address, SlotStatus) {
	for _, n := range flat {
		addr := b.UnitAddress(n)
		e := b.slots[b.storKey(addr)]
		if e == nil {
			return addr, FoundExact
		}
		if pinned && e.state == SlotReserved {
			return addr, FoundReserved
		}
	}
	return nil, NoFreeSlot
}

func componentValues(c Coord, length int) ([]int, bool) {
	if !c.IsSet() {
		out := make([]int, length)
		for i := range out {
			out[i] = i
		}
		return out, true
	}
	for _, v := range c.vals {
		if v < 0 || v >= length {
			return nil, false
		}
	}
	return c.vals, true
}

func (b *Bus) inRange(addr Address) bool {
	if len(addr) != len(b.dims) {
		return false
	}
	for i, d := range b.dims {
		v, ok := addr[i].Value()
		if !ok || v < 0 || v >= d.Length {
			return false
		}
	}
	return true
}

// Record stores dev. RecordValid requires a free or reserved in-range
// address and never overwrites an occupied slot; the other modes store dev
// in the invalid table under a key made unique with an "(Nx)" suffix.
// Record returns the key used.
func (b *Bus) Record(dev *Device, addr Address, mode RecordMode) (string, error) {
	key := b.storKey(addr)
	switch mode {
	case RecordValid:
		if !b.inRange(addr) {
			return "", fmt.Errorf("%w: %s on bus %s", ErrInvalidAddress, addr, b.id)
		}
		e := b.slots[key]
		if e != nil && e.state == SlotOccupied {
			return "", fmt.Errorf("%w: %s on bus %s", ErrUsedSlot, key, b.id)
		}
		b.slots[key] = &slotEntry{addr: addr.clone(), state: SlotOccupied, dev: dev, reserved: e != nil}
		return key, nil
	case RecordUsed:
		key = b.invalidKey(key, true)
	case RecordOutOfRange:
		key = b.invalidKey("o"+key, false)
	default:
		return "", fmt.Errorf("unknown record mode %d", int(mode))
	}
	b.invalid[key] = dev
	return key, nil
}

func (b *Bus) invalidKey(base string, suffixed bool) string {
	if !suffixed {
		if _, taken := b.invalid[base]; !taken {
			return base
		}
	}
	for i := 2; ; i++ {
		key := fmt.Sprintf("%s(%dx)", base, i)
		if _, taken := b.invalid[key]; !taken {
			return key
		}
	}
}

// Reserve marks a free, fully pinned address as reserved. A reservation is
// replaced by the first device recorded at the same address and comes back
// when that device is removed.
func (b *Bus) Reserve(addr Address) error {
	if !b.inRange(addr) {
		return fmt.Errorf("%w: %s on bus %s", ErrInvalidAddress, addr, b.id)
	}
	key := b.storKey(addr)
	if _, taken := b.slots[key]; taken {
		return fmt.Errorf("%w: %s on bus %s", ErrUsedSlot, key, b.id)
	}
	b.slots[key] = &slotEntry{addr: addr.clone(), state: SlotReserved}
	return nil
}

// Release drops a reservation.
func (b *Bus) Release(addr Address) bool {
	key := b.storKey(addr)
	if e := b.slots[key]; e != nil && e.state == SlotReserved {
		delete(b.slots, key)
		return true
	}
	return false
}

// ApplyAddress writes addr into dev's address params. In strict mode the
// link param and every dimension param are written; otherwise only params
// dev already carries are rewritten. Single-slot and floppy buses always
// write.
func (b *Bus) ApplyAddress(dev *Device, addr Address, strict bool) {
	if b.family == FamilySingle || b.format == formatLetter {
		strict = true
	}
	if b.linkParam != "" && (strict || dev.HasParam(b.linkParam)) {
		if b.family == FamilyBusUnit {
			if v, ok := addr.at(0).Value(); ok {
				dev.SetParam(b.linkParam, fmt.Sprintf("%s.%d", b.id, v))
			} else {
				dev.SetParam(b.linkParam, b.id)
			}
		} else {
			dev.SetParam(b.linkParam, b.id)
		}
	}
	for i, d := range b.dims {
		if b.family == FamilyBusUnit && i == 0 {
			continue
		}
		if !strict && !dev.HasParam(d.Param) {
			continue
		}
		v, ok := addr.at(i).Value()
		if !ok {
			dev.DelParam(d.Param)
			continue
		}
		dev.SetParam(d.Param, b.formatComponent(v, dev.Param(d.Param)))
	}
}

// Remove deletes the first record of dev, valid slots first, then the
// invalid table, each in key order. A slot dev took over from a
// reservation is reserved again.
func (b *Bus) Remove(dev *Device) bool {
	for _, key := range sortedKeys(b.slots) {
		e := b.slots[key]
		if e.state != SlotOccupied || e.dev != dev {
			continue
		}
		if e.reserved {
			b.slots[key] = &slotEntry{addr: e.addr, state: SlotReserved}
		} else {
			delete(b.slots, key)
		}
		return true
	}
	for _, key := range sortedKeys(b.invalid) {
		if b.invalid[key] == dev {
			delete(b.invalid, key)
			return true
		}
	}
	return false
}

// Lookup returns the state of addr and the device stored there.
func (b *Bus) Lookup(addr Address) (SlotState, *Device) {
	e := b.slots[b.storKey(addr)]
	if e == nil {
		return SlotEmpty, nil
	}
	return e.state, e.dev
}

// Holds reports whether dev is recorded on b, validly or not.
func (b *Bus) Holds(dev *Device) bool {
	for _, e := range b.slots {
		if e.dev == dev {
			return true
		}
	}
	for _, d := range b.invalid {
		if d == dev {
			return true
		}
	}
	return false
}

// SlotEntry is one occupied or reserved address.
type SlotEntry struct {
	Key     string
	Address Address
	State   SlotState
	Device  *Device
}

// Entries returns the occupied and reserved slots in address order.
func (b *Bus) Entries() []SlotEntry {
	out := make([]SlotEntry, 0, len(b.slots))
	for key, e := range b.slots {
		out = append(out, SlotEntry{Key: key, Address: e.addr.clone(), State: e.state, Device: e.dev})
	}
	sort.Slice(out, func(i, j int) bool {
		return compareAddresses(out[i].Address, out[j].Address) < 0
	})
	return out
}

// InvalidEntry is one record of the invalid table.
type InvalidEntry struct {
	Key    string
	Device *Device
}

// InvalidEntries returns the invalid table in key order.
func (b *Bus) InvalidEntries() []InvalidEntry {
	out := make([]InvalidEntry, 0, len(b.invalid))
	for _, key := range sortedKeys(b.invalid) {
		out = append(out, InvalidEntry{Key: key, Device: b.invalid[key]})
	}
	return out
}

// insert places dev on b. Without force any problem aborts before b or dev
// is touched. With force dev is always recorded and every tolerated
// problem is returned.
func (b *Bus) insert(dev *Device, strict, force bool) ([]error, error) {
	var warns []error
	if !b.linkMatches(dev) {
		err := fmt.Errorf("%w: %s=%q, bus is %s", ErrBusIdentityMismatch, b.linkParam, dev.Param(b.linkParam), b.id)
		if !force {
			return nil, err
		}
		warns = append(warns, err)
		dev.SetParam(b.linkParam, b.id)
	}

	pattern, perr := b.deviceAddress(dev)
	var addr Address
	status := InvalidAddress
	if perr == nil {
		addr, status = b.FreeSlot(pattern)
	}

	switch status {
	case FoundExact, FoundReserved:
		if _, err := b.Record(dev, addr, RecordValid); err != nil {
			return nil, err
		}
	case NoFreeSlot:
		sentinel := ErrNoFreeSlot
		if pattern.Pinned() {
			sentinel = ErrUsedSlot
		}
		err := fmt.Errorf("%w: %s on bus %s", sentinel, pattern, b.id)
		if !force {
			return nil, err
		}
		warns = append(warns, err)
		addr = pattern
		key := pattern
		if !pattern.Pinned() {
			// The stand-in key is not written back to dev, so a
			// re-insert sees the same unpinned request.
			key = b.lastAddress()
		}
		if _, err := b.Record(dev, key, RecordUsed); err != nil {
			return nil, err
		}
	case InvalidAddress:
		err := perr
		if err == nil {
			err = fmt.Errorf("%w: %s on bus %s", ErrInvalidAddress, pattern, b.id)
		}
		if !force {
			return nil, err
		}
		warns = append(warns, err)
		addr = pattern
		if _, err := b.Record(dev, addr, RecordOutOfRange); err != nil {
			return nil, err
		}
		if perr != nil {
			// Keep the unparsable value for diagnostics.
			return warns, nil
		}
	}
	b.ApplyAddress(dev, addr, strict)
	return warns, nil
}

func (b *Bus) lastAddress() Address {
	addr := make(Address, len(b.dims))
	for i, d := range b.dims {
		addr[i] = At(d.Length - 1)
	}
	return addr
}

// linkMatches reports whether the device's link param, if any, names b.
func (b *Bus) linkMatches(dev *Device) bool {
	if b.linkParam == "" {
		return true
	}
	v := dev.Param(b.linkParam)
	if v == "" {
		return true
	}
	if b.family == FamilyBusUnit {
		if i := strings.LastIndexByte(v, '.'); i >= 0 {
			return v[:i] == b.id
		}
		if isDigits(v) {
			return true
		}
	}
	return v == b.id
}

// deviceAddress reads the requested address out of dev's params.
func (b *Bus) deviceAddress(dev *Device) (Address, error) {
	addr := make(Address, len(b.dims))
	for i, d := range b.dims {
		v := dev.Param(d.Param)
		if b.family == FamilyBusUnit && i == 0 {
			if n, ok := unitBusIndex(v); ok {
				addr[i] = At(n)
			}
			continue
		}
		if v == "" {
			if d.DefaultZero {
				addr[i] = At(0)
			}
			continue
		}
		n, err := b.parseComponent(v)
		if err != nil {
			return addr, fmt.Errorf("%w: %s=%q on bus %s", ErrInvalidAddress, d.Param, v, b.id)
		}
		addr[i] = At(n)
	}
	return addr, nil
}

// unitBusIndex reads the bus component of a compound address: "3" or
// "<id>.3".
func unitBusIndex(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if isDigits(v) {
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	i := strings.LastIndexByte(v, '.')
	if i < 0 || !isDigits(v[i+1:]) {
		return 0, false
	}
	n, err := strconv.Atoi(v[i+1:])
	return n, err == nil
}

func (b *Bus) parseComponent(v string) (int, error) {
	switch b.format {
	case formatHex:
		if i := strings.IndexByte(v, '.'); i >= 0 {
			v = v[:i]
		}
		v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
		n, err := strconv.ParseInt(v, 16, 32)
		return int(n), err
	case formatLetter:
		if strings.HasPrefix(v, "drive") && len(v) == 6 {
			return int(strings.ToUpper(v[5:])[0]) - 'A', nil
		}
		return strconv.Atoi(v)
	}
	return strconv.Atoi(v)
}

// formatComponent renders v for a dimension param. Hex values keep the
// ".<function>" suffix of the previous value.
func (b *Bus) formatComponent(v int, prev string) string {
	switch b.format {
	case formatHex:
		out := fmt.Sprintf("0x%x", v)
		if i := strings.IndexByte(prev, '.'); i >= 0 {
			out += prev[i:]
		}
		return out
	case formatLetter:
		return letterKey(v)
	}
	return strconv.Itoa(v)
}

func letterKey(v int) string {
	if v < 0 || v >= 26 {
		return "drive#" + strconv.Itoa(v)
	}
	return "drive" + string(rune('A'+v))
}

// storKey renders addr as a map key: components joined by "-", with "*"
// for unspecified ones.
func (b *Bus) storKey(addr Address) string {
	if b.family == FamilySingle {
		if b.linkParam != "" {
			return b.linkParam
		}
		return "slot"
	}
	if b.format == formatLetter {
		v, ok := addr.at(0).Value()
		if !ok {
			return "drive*"
		}
		return letterKey(v)
	}
	if len(b.dims) == 0 {
		return "*"
	}
	parts := make([]string, len(b.dims))
	for i := range b.dims {
		c := addr.at(i)
		v, ok := c.Value()
		switch {
		case !ok:
			parts[i] = c.String()
		case b.format == formatHex:
			parts[i] = fmt.Sprintf("0x%x", v)
		default:
			parts[i] = strconv.Itoa(v)
		}
	}
	return strings.Join(parts, "-")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
