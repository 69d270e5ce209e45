package devtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busSnapshot struct {
	ID      string
	Slots   []string
	Invalid []string
}

type containerSnapshot struct {
	Buses   []busSnapshot
	Devices []string
}

func snapshot(c *Container) containerSnapshot {
	var s containerSnapshot
	for _, b := range c.AllBuses() {
		bs := busSnapshot{ID: b.ID()}
		for _, e := range b.Entries() {
			bs.Slots = append(bs.Slots, e.Key+"="+slotText(b.slots[e.Key]))
		}
		for _, e := range b.InvalidEntries() {
			bs.Invalid = append(bs.Invalid, e.Key+"="+e.Device.String())
		}
		s.Buses = append(s.Buses, bs)
	}
	for _, d := range c.Devices() {
		s.Devices = append(s.Devices, d.Ref()+" "+d.Params().String())
	}
	return s
}

func newMouse() *Device {
	d := NewDevice("").AddParent(Requirement{Type: "uhci"})
	d.SetParam("driver", "usb-mouse")
	return d
}

func newUSBContainer(strict bool, ports int) (*Container, *Bus) {
	usb := NewUSBBus(ports, "usb1.0", "uhci", "")
	return New(Options{StrictMode: strict, SystemBus: usb}), usb
}

func TestDenseBusFillsInInsertionOrder(t *testing.T) {
	c, usb := newUSBContainer(false, 3)
	var mice []*Device
	for i := 0; i < 3; i++ {
		m := newMouse()
		res := c.Insert(m)
		require.Equal(t, Placed, res.Outcome, "mouse %d: %v", i, res)
		mice = append(mice, m)
	}
	for i, m := range mice {
		state, got := usb.Lookup(Pin(i))
		assert.Equal(t, SlotOccupied, state)
		assert.Same(t, m, got)
	}

	before := snapshot(c)
	extra := newMouse()
	res := c.Insert(extra)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoFreeSlot)
	assert.NotErrorIs(t, res.Err, ErrUsedSlot)
	assert.Empty(t, cmp.Diff(before, snapshot(c)))
	assert.False(t, c.Contains(extra))

	res = c.Insert(extra, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "NoFreeSlot", res.Warnings[0].Mode())
	assert.Equal(t, "usb1.0", res.Warnings[0].Bus)
	invalid := usb.InvalidEntries()
	require.Len(t, invalid, 1)
	assert.Equal(t, "2(2x)", invalid[0].Key)
	assert.Same(t, extra, invalid[0].Device)
	assert.Equal(t, 4, c.Len())
}

func TestStrictAndLenientAddressParams(t *testing.T) {
	c, _ := newUSBContainer(true, 3)
	m := newMouse()
	require.True(t, c.Insert(m).OK())
	assert.Equal(t, "usb1.0", m.Param("bus"))
	assert.Equal(t, "0", m.Param("port"))

	c, usb := newUSBContainer(false, 3)
	m = newMouse()
	require.True(t, c.Insert(m).OK())
	assert.False(t, m.HasParam("bus"), "lenient mode leaves unset params unset")
	assert.False(t, m.HasParam("port"))

	pinned := newMouse()
	pinned.SetParam("port", 2)
	require.True(t, c.Insert(pinned).OK())
	assert.Equal(t, "2", pinned.Param("port"))
	_, got := usb.Lookup(Pin(2))
	assert.Same(t, pinned, got)
}

func TestRejectedInsertIsAtomic(t *testing.T) {
	c := New(Options{StrictMode: true})
	first := NewDevice("").AddParent(Requirement{Type: "pci"})
	first.SetParam("driver", "virtio-net-pci")
	first.SetParam("id", "x")
	require.True(t, c.Insert(first).OK())

	dup := NewDevice("").
		AddParent(Requirement{Type: "pci"}).
		AddHostedBus(NewUSBBus(2, "usb2.0", "ich9-usb-ehci1", ""))
	dup.SetParam("driver", "ich9-usb-ehci1")
	dup.SetParam("id", "x")

	before := snapshot(c)
	params := dup.Params().String()
	res := c.Insert(dup)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrDuplicateIdentifier)
	assert.Empty(t, cmp.Diff(before, snapshot(c)))
	assert.Equal(t, params, dup.Params().String(), "rollback restores params")
	assert.Empty(t, dup.Ref())

	res = c.Insert(dup, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "DuplicateIdentifier", res.Warnings[0].Mode())
	assert.Equal(t, "x", first.Ref())
	assert.Equal(t, "x__0", dup.Ref())
	assert.Len(t, c.GetByID("x"), 2)
	assert.Equal(t, "usb2.0", c.AllBuses()[0].ID(), "hosted buses go first")
	assert.Equal(t, "0x1", dup.Param("addr"))

	c, usb := newUSBContainer(false, 3)
	require.NoError(t, usb.Reserve(Pin(1)))
	m := newMouse().AddParent(Requirement{Type: "virtio-serial"})
	m.SetParam("port", 1)

	before = snapshot(c)
	res = c.Insert(m)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoMatchingBus)
	assert.Empty(t, cmp.Diff(before, snapshot(c)))
	state, _ := usb.Lookup(Pin(1))
	assert.Equal(t, SlotReserved, state, "reservation survives the rollback")
}

func TestRemoveRestoresReservation(t *testing.T) {
	c, usb := newUSBContainer(true, 2)
	require.NoError(t, usb.Reserve(Pin(1)))
	m := newMouse()
	m.SetParam("port", 1)
	require.Equal(t, Placed, c.Insert(m).Outcome)
	state, got := usb.Lookup(Pin(1))
	require.Equal(t, SlotOccupied, state)
	require.Same(t, m, got)

	require.NoError(t, c.Remove(m))
	state, got = usb.Lookup(Pin(1))
	assert.Equal(t, SlotReserved, state)
	assert.Nil(t, got)

	require.Equal(t, Placed, c.Insert(m).Outcome)
	_, got = usb.Lookup(Pin(1))
	assert.Same(t, m, got)
}

func TestMissingSecondRequirement(t *testing.T) {
	c, usb := newUSBContainer(false, 3)
	d := newMouse().AddParent(Requirement{Type: "virtio-serial"})

	before := snapshot(c)
	res := c.Insert(d)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoMatchingBus)
	assert.Empty(t, cmp.Diff(before, snapshot(c)))
	assert.False(t, usb.Holds(d), "first placement rolled back")

	res = c.Insert(d, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "NoMatchingBus", res.Warnings[0].Mode())
	assert.Empty(t, res.Warnings[0].Bus)
	assert.True(t, usb.Holds(d))
	assert.Contains(t, res.Text(), "NoMatchingBus: {type=virtio-serial}")
}

func TestForcePrefersBusWithoutFreeSlot(t *testing.T) {
	c, usb1 := newUSBContainer(false, 6)
	usb2 := NewUSBBus(3, "usb2.0", "uhci", "")
	require.True(t, c.Insert(NewCustomDevice("controller", "").AddHostedBus(usb2)).OK())
	require.Equal(t, []*Bus{usb2, usb1}, c.AllBuses())

	a := newMouse()
	a.SetParam("port", 5)
	require.Equal(t, Placed, c.Insert(a).Outcome)
	_, got := usb1.Lookup(Pin(5))
	require.Same(t, a, got)

	b := newMouse()
	b.SetParam("port", 5)
	require.Equal(t, Rejected, c.Insert(b).Outcome)

	res := c.Insert(b, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "UsedSlot", res.Warnings[0].Mode())
	assert.Equal(t, "usb1.0", res.Warnings[0].Bus)
	assert.Empty(t, usb2.InvalidEntries())
	require.Len(t, usb1.InvalidEntries(), 1)
	assert.Equal(t, "5(2x)", usb1.InvalidEntries()[0].Key)
}

func TestForceOutOfRangeAddress(t *testing.T) {
	c, usb := newUSBContainer(false, 3)
	d := newMouse()
	d.SetParam("port", 7)

	res := c.Insert(d)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrInvalidAddress)

	res = c.Insert(d, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	assert.Equal(t, "InvalidAddress", res.Warnings[0].Mode())
	require.Len(t, usb.InvalidEntries(), 1)
	assert.Equal(t, "o7", usb.InvalidEntries()[0].Key)
	assert.Equal(t, "7", d.Param("port"))
}

func TestBusIdentityMismatch(t *testing.T) {
	c, usb := newUSBContainer(false, 3)
	d := newMouse()
	d.SetParam("bus", "usb9.0")

	res := c.Insert(d)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrBusIdentityMismatch)
	assert.Equal(t, "usb9.0", d.Param("bus"))

	res = c.Insert(d, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "BusIdentityMismatch", res.Warnings[0].Mode())
	assert.Equal(t, "usb1.0", d.Param("bus"))
	_, got := usb.Lookup(Pin(0))
	assert.Same(t, d, got)
}

func TestRemoveThenReinsert(t *testing.T) {
	c, usb := newUSBContainer(false, 3)
	var mice []*Device
	for i := 0; i < 3; i++ {
		m := newMouse()
		require.True(t, c.Insert(m).OK())
		mice = append(mice, m)
	}
	assert.Equal(t, "usb-mouse__1", mice[1].Ref())
	buses := snapshot(c).Buses

	require.NoError(t, c.Remove(mice[1]))
	assert.ErrorIs(t, c.Remove(mice[1]), ErrUnknownDevice)
	assert.False(t, usb.Holds(mice[1]))
	assert.Equal(t, 2, c.Len())
	assert.Empty(t, mice[1].Ref())

	res := c.Insert(mice[1])
	require.Equal(t, Placed, res.Outcome)
	assert.Equal(t, "usb-mouse__1", mice[1].Ref())
	assert.Empty(t, cmp.Diff(buses, snapshot(c).Buses))
}

func TestForcedRemoveThenReinsert(t *testing.T) {
	c, usb := newUSBContainer(true, 1)
	require.True(t, c.Insert(newMouse()).OK())

	extra := newMouse()
	res := c.Insert(extra, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "NoFreeSlot", res.Warnings[0].Mode())
	assert.Equal(t, "usb1.0", extra.Param("bus"))
	assert.False(t, extra.HasParam("port"), "the stand-in slot is not written back")
	buses := snapshot(c).Buses

	require.NoError(t, c.Remove(extra))
	assert.Empty(t, usb.InvalidEntries())

	res = c.Insert(extra, Force())
	require.Equal(t, PlacedWithWarnings, res.Outcome)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "NoFreeSlot", res.Warnings[0].Mode())
	assert.Empty(t, cmp.Diff(buses, snapshot(c).Buses))
}

func TestInsertOwnedDevice(t *testing.T) {
	c, _ := newUSBContainer(false, 3)
	d := newMouse()
	require.True(t, c.Insert(d).OK())

	res := c.Insert(d, Force())
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrDeviceOwned)

	other := New(Options{})
	assert.ErrorIs(t, other.Insert(d).Err, ErrDeviceOwned)
}

func TestDriveHostsSingleSlotBus(t *testing.T) {
	c := New(Options{})
	drive := NewDrive("disk1")
	drive.SetParam("file", "/images/disk1.qcow2")
	require.Equal(t, Placed, c.Insert(drive).Outcome)

	req := Requirement{Type: "QDrive", Key: "disk1"}
	disk := NewDevice("disk1").AddParent(req)
	disk.SetParam("driver", "virtio-blk-pci")
	require.Equal(t, Placed, c.Insert(disk).Outcome)
	assert.Equal(t, "drive_disk1", disk.Param("drive"))

	_, ok := c.FindFreeBus(req, nil)
	assert.False(t, ok)

	again := NewDevice("disk1").AddParent(req)
	res := c.Insert(again)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrUsedSlot)

	got, ok := c.Get("drive_disk1")
	require.True(t, ok)
	assert.Same(t, drive, got)
}

func TestContainerReserve(t *testing.T) {
	c, usb := newUSBContainer(false, 4)
	b, addr, err := c.Reserve(Requirement{Type: "uhci"}, Pin(1))
	require.NoError(t, err)
	assert.Same(t, usb, b)
	assert.Equal(t, []int{1}, addr.Ints())

	first, second := newMouse(), newMouse()
	require.True(t, c.Insert(first).OK())
	require.True(t, c.Insert(second).OK())
	_, got := usb.Lookup(Pin(2))
	assert.Same(t, second, got, "wildcard insert skips the reservation")

	claim := newMouse()
	claim.SetParam("port", 1)
	require.Equal(t, Placed, c.Insert(claim).Outcome)
	state, got := usb.Lookup(Pin(1))
	assert.Equal(t, SlotOccupied, state)
	assert.Same(t, claim, got)

	_, _, err = c.Reserve(Requirement{Type: "ehci"}, nil)
	assert.ErrorIs(t, err, ErrNoFreeSlot)
}

func TestFindFreeBus(t *testing.T) {
	c, usb := newUSBContainer(false, 1)
	b, ok := c.FindFreeBus(Requirement{Type: "uhci"}, nil)
	require.True(t, ok)
	assert.Same(t, usb, b)

	require.True(t, c.Insert(newMouse()).OK())
	_, ok = c.FindFreeBus(Requirement{Type: "uhci"}, nil)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "FindFreeBus records nothing")
}

func TestRemoveBus(t *testing.T) {
	c, usb := newUSBContainer(false, 2)
	d := newMouse()
	require.True(t, c.Insert(d).OK())
	assert.Error(t, c.RemoveBus(usb))
	require.NoError(t, c.Remove(d))
	require.NoError(t, c.RemoveBus(usb))
	assert.Empty(t, c.AllBuses())
	assert.Error(t, c.RemoveBus(usb))
}

func TestNamedBuses(t *testing.T) {
	c := New(Options{})
	hba := NewDevice("").
		AddParent(Requirement{Type: "pci"}).
		AddHostedBus(NewSCSIBus("virtio_scsi_pci1.0", "virtio-scsi-pci", ""))
	require.True(t, c.Insert(hba).OK())

	missing := c.ListMissingNamedBuses("virtio_scsi_pci%d.0", "virtio-scsi-pci", 3)
	assert.Equal(t, []string{"virtio_scsi_pci0.0", "virtio_scsi_pci2.0"}, missing)
	assert.Equal(t, 0, c.NextNamedBusIndex("virtio_scsi_pci%d.0"))
	assert.Equal(t, 1, c.NextNamedBusIndex("pci."))
}

func TestContainerDumps(t *testing.T) {
	c, _ := newUSBContainer(false, 2)
	kbd := newMouse()
	kbd.SetParam("driver", "usb-kbd")
	kbd.SetParam("id", "kbd")
	require.True(t, c.Insert(newMouse()).OK())
	require.True(t, c.Insert(kbd).OK())

	assert.Equal(t, "Devices of vm1: [a'usb-mouse',kbd]", c.StrShort())
	assert.Equal(t, "Buses of vm1\n  usb1.0(uhci/dense): [a'usb-mouse',kbd]  {}", c.StrBusShort())

	long := c.StrBusLong()
	assert.Contains(t, long, "Devices of vm1:\n  Bus usb1.0, type=uhci, family=dense\n")
	assert.Contains(t, long, "---------------<    0 >---------------")
	assert.Contains(t, long, "driver = usb-kbd")
}
