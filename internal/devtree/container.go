package devtree

import (
	"errors"
	"fmt"
	"log/slog"
)

// Capabilities answers which options and devices the target hypervisor
// supports. It is consulted by helpers building devices, never during
// placement.
type Capabilities interface {
	HasOption(name string) bool
	HasDevice(name string) bool
}

type allCapabilities struct{}

func (allCapabilities) HasOption(string) bool { return true }
func (allCapabilities) HasDevice(string) bool { return true }

// Options configures a Container.
type Options struct {
	// Name identifies the machine in dumps.
	Name string
	// StrictMode writes every address param on placement instead of only
	// the ones a device already carries.
	StrictMode bool
	// Capabilities of the hypervisor. nil reports everything as supported.
	Capabilities Capabilities
	// SystemBus replaces the default "pci.0" bus.
	SystemBus *Bus
	// NoSystemBus starts the container without any bus.
	NoSystemBus bool
}

// Container owns the buses and devices of one machine. It is not safe for
// concurrent use.
type Container struct {
	name    string
	strict  bool
	caps    Capabilities
	buses   []*Bus
	devices []*Device
}

// New returns a container holding only the system bus.
func New(opts Options) *Container {
	c := &Container{
		name:   opts.Name,
		strict: opts.StrictMode,
		caps:   opts.Capabilities,
	}
	if c.name == "" {
		c.name = "vm1"
	}
	if c.caps == nil {
		c.caps = allCapabilities{}
	}
	switch {
	case opts.SystemBus != nil:
		c.buses = []*Bus{opts.SystemBus}
	case !opts.NoSystemBus:
		c.buses = []*Bus{NewPCIBus("pci.0", "pci", "")}
	}
	return c
}

// Name returns the machine name.
func (c *Container) Name() string { return c.name }

// StrictMode reports the address back-fill policy.
func (c *Container) StrictMode() bool { return c.strict }

// HasOption reports whether the hypervisor accepts the command-line option.
func (c *Container) HasOption(name string) bool { return c.caps.HasOption(name) }

// HasDevice reports whether the hypervisor knows the device driver.
func (c *Container) HasDevice(name string) bool { return c.caps.HasDevice(name) }

// InsertOption tunes a single Insert call.
type InsertOption func(*insertConfig)

type insertConfig struct {
	force bool
}

// Force turns placement failures into warnings: the device is always
// placed, off-grid in a bus's invalid table if needed.
func Force() InsertOption {
	return func(cfg *insertConfig) { cfg.force = true }
}

// WithForce is Force when force is true.
func WithForce(force bool) InsertOption {
	return func(cfg *insertConfig) { cfg.force = force }
}

// insertTx records what an Insert changed so a rejection can undo it.
type insertTx struct {
	c      *Container
	dev    *Device
	params Params
	used   []*Bus
	added  []*Bus
}

func (tx *insertTx) rollback() {
	for i := len(tx.used) - 1; i >= 0; i-- {
		tx.used[i].Remove(tx.dev)
	}
	for _, b := range tx.added {
		tx.c.removeBus(b)
	}
	tx.dev.params = tx.params
}

func (tx *insertTx) reject(err error) Result {
	tx.rollback()
	slog.Debug("devtree: insert rejected", "vm", tx.c.name, "device", tx.dev.String(), "err", err)
	return Result{Outcome: Rejected, Err: err}
}

// Insert places dev. Every parent requirement is resolved in order against
// the buses (newest first); the buses dev hosts are registered once all
// requirements are settled; finally the declared id is checked and dev is
// appended. A rejected insert leaves the container and dev unchanged.
func (c *Container) Insert(dev *Device, opts ...InsertOption) Result {
	var cfg insertConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if dev.owner != nil {
		return Result{Outcome: Rejected, Err: fmt.Errorf("%w: %s", ErrDeviceOwned, dev)}
	}

	tx := &insertTx{c: c, dev: dev, params: dev.params.clone()}
	var warnings []Warning

	for _, req := range dev.parents {
		buses := c.Buses(req)
		if len(buses) == 0 {
			err := fmt.Errorf("%w: %s", ErrNoMatchingBus, req)
			if !cfg.force {
				return tx.reject(err)
			}
			warnings = append(warnings, Warning{Requirement: req, Err: err})
			continue
		}

		var firstErr error
		var noFree *Bus
		placed := false
		for _, b := range buses {
			_, err := b.insert(dev, c.strict, false)
			if err == nil {
				tx.used = append(tx.used, b)
				placed = true
				break
			}
			if firstErr == nil {
				firstErr = err
			}
			if noFree == nil && errors.Is(err, ErrNoFreeSlot) {
				noFree = b
			}
		}
		if placed {
			continue
		}
		if !cfg.force {
			return tx.reject(fmt.Errorf("parent bus %s: %w", req, firstErr))
		}

		target := buses[0]
		if noFree != nil {
			target = noFree
		}
		warns, err := target.insert(dev, c.strict, true)
		if err != nil {
			return tx.reject(fmt.Errorf("parent bus %s: %w", req, err))
		}
		tx.used = append(tx.used, target)
		for _, w := range warns {
			warnings = append(warnings, Warning{Requirement: req, Bus: target.id, Err: w})
		}
	}

	for _, b := range dev.hosted {
		if c.hasBus(b) {
			continue
		}
		c.buses = append([]*Bus{b}, c.buses...)
		tx.added = append(tx.added, b)
		slog.Debug("devtree: bus registered", "vm", c.name, "bus", b.id, "type", b.typ)
	}

	if id := dev.ID(); id != "" && len(c.GetByID(id)) > 0 {
		err := fmt.Errorf("%w: %q", ErrDuplicateIdentifier, id)
		if !cfg.force {
			return tx.reject(err)
		}
		warnings = append(warnings, Warning{Err: err})
	}

	dev.ref = c.uniqueRef(dev)
	dev.owner = c
	c.devices = append(c.devices, dev)

	if len(warnings) == 0 {
		return Result{Outcome: Placed}
	}
	for _, w := range warnings {
		slog.Warn("devtree: forced insert", "vm", c.name, "device", dev.String(), "mode", w.Mode(), "err", w.Err)
	}
	return Result{Outcome: PlacedWithWarnings, Warnings: warnings}
}

// uniqueRef returns the declared id when no device uses it as reference,
// otherwise the first free "<base>__<n>". Devices without an id use their
// alternative name or type as base.
func (c *Container) uniqueRef(dev *Device) string {
	base := dev.ID()
	if base != "" {
		if _, taken := c.Get(base); !taken {
			return base
		}
	} else if base = dev.AltName(); base == "" {
		base = dev.typ
	}
	for i := 0; ; i++ {
		ref := fmt.Sprintf("%s__%d", base, i)
		if _, taken := c.Get(ref); !taken {
			return ref
		}
	}
}

// Remove detaches dev from every bus record and from the device list. Buses
// hosted by dev stay registered; removing them, and whatever sits on them,
// is the caller's job.
func (c *Container) Remove(dev *Device) error {
	idx := c.indexOf(dev)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, dev)
	}
	for _, b := range c.buses {
		for b.Remove(dev) {
			// one record per requirement that resolved to b
		}
	}
	c.devices = append(c.devices[:idx], c.devices[idx+1:]...)
	dev.owner = nil
	dev.ref = ""
	return nil
}

// RemoveBus unregisters a bus. It fails while devices are still recorded on
// it.
func (c *Container) RemoveBus(b *Bus) error {
	if !c.hasBus(b) {
		return fmt.Errorf("bus %s is not registered in %s", b.id, c.name)
	}
	if len(b.slots) > 0 || len(b.invalid) > 0 {
		return fmt.Errorf("bus %s still holds devices", b.id)
	}
	c.removeBus(b)
	return nil
}

func (c *Container) removeBus(b *Bus) {
	for i, existing := range c.buses {
		if existing == b {
			c.buses = append(c.buses[:i], c.buses[i+1:]...)
			return
		}
	}
}

func (c *Container) hasBus(b *Bus) bool {
	for _, existing := range c.buses {
		if existing == b {
			return true
		}
	}
	return false
}

func (c *Container) indexOf(dev *Device) int {
	for i, d := range c.devices {
		if d == dev {
			return i
		}
	}
	return -1
}

// Get returns the device with internal reference ref.
func (c *Container) Get(ref string) (*Device, bool) {
	if ref == "" {
		return nil, false
	}
	for _, d := range c.devices {
		if d.ref == ref {
			return d, true
		}
	}
	return nil, false
}

// GetByID returns every device declaring id. Forced insertions can produce
// more than one.
func (c *Container) GetByID(id string) []*Device {
	if id == "" {
		return nil
	}
	var out []*Device
	for _, d := range c.devices {
		if d.ID() == id {
			out = append(out, d)
		}
	}
	return out
}

// Contains reports whether dev is in the container.
func (c *Container) Contains(dev *Device) bool {
	return c.indexOf(dev) >= 0
}

// ContainsRef reports whether a device with internal reference ref exists.
func (c *Container) ContainsRef(ref string) bool {
	_, ok := c.Get(ref)
	return ok
}

// Len returns the number of devices.
func (c *Container) Len() int { return len(c.devices) }

// Devices returns the devices in insertion order.
func (c *Container) Devices() []*Device {
	return append([]*Device(nil), c.devices...)
}

// AllBuses returns every bus, newest first.
func (c *Container) AllBuses() []*Bus {
	return append([]*Bus(nil), c.buses...)
}

// Buses returns the buses matching req, newest first.
func (c *Container) Buses(req Requirement) []*Bus {
	var out []*Bus
	for _, b := range c.buses {
		if b.Match(req) {
			out = append(out, b)
		}
	}
	return out
}

// FindFreeBus returns the newest bus matching req with a free slot for addr
// without recording anything.
func (c *Container) FindFreeBus(req Requirement, addr Address) (*Bus, bool) {
	for _, b := range c.Buses(req) {
		if _, status := b.FreeSlot(addr); status.Found() {
			return b, true
		}
	}
	return nil, false
}

// Reserve marks the first free slot for addr on a bus matching req as
// reserved and returns the bus and the reserved address.
func (c *Container) Reserve(req Requirement, addr Address) (*Bus, Address, error) {
	for _, b := range c.Buses(req) {
		found, status := b.FreeSlot(addr)
		if status != FoundExact {
			continue
		}
		if err := b.Reserve(found); err != nil {
			return nil, nil, err
		}
		return b, found, nil
	}
	return nil, nil, fmt.Errorf("%w: reserve %s at %s", ErrNoFreeSlot, req, addr)
}
