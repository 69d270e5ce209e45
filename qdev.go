// Package qdev places the devices of a virtual machine onto the buses that
// host them and renders the result as hypervisor command-line fragments.
// A Container tracks every bus and device of one machine; Insert resolves a
// device's bus requirements, picks free slots and writes the chosen
// addresses back into the device's params.
package qdev

import (
	"context"

	"github.com/tinyrange/qdev/internal/capability"
	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/qcmd"
	"github.com/tinyrange/qdev/internal/topology"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from internal/devtree
// -----------------------------------------------------------------------------

// Container holds the buses and devices of one machine.
type Container = devtree.Container

// Options configures a new Container.
type Options = devtree.Options

// Device is a single hypervisor device, drive, global or raw argument.
type Device = devtree.Device

// Bus is a typed, addressable set of slots hosted by a device.
type Bus = devtree.Bus

// Requirement describes one bus a device must plug into.
type Requirement = devtree.Requirement

// Templates holds the renderings of a string device.
type Templates = devtree.Templates

// Result reports the outcome of an Insert.
type Result = devtree.Result

// Warning is one problem tolerated by a forced insertion.
type Warning = devtree.Warning

// Capabilities answers option and device support questions.
type Capabilities = devtree.Capabilities

// InsertOption tunes a single Insert call.
type InsertOption = devtree.InsertOption

// Address is a requested slot address, one component per bus dimension.
type Address = devtree.Address

// Dim describes one dimension of a sparse bus.
type Dim = devtree.Dim

// Probe answers capability checks from captured hypervisor help output.
type Probe = capability.Probe

// Topology is a decoded machine description.
type Topology = topology.Document

// Placement is the result of inserting one device of a Topology.
type Placement = topology.Placement

// Insert outcomes.
const (
	Placed             = devtree.Placed
	PlacedWithWarnings = devtree.PlacedWithWarnings
	Rejected           = devtree.Rejected
)

// Placement failures. Use errors.Is to classify Result.Err and Warning.Err.
var (
	ErrInvalidAddress       = devtree.ErrInvalidAddress
	ErrBusIdentityMismatch  = devtree.ErrBusIdentityMismatch
	ErrNoFreeSlot           = devtree.ErrNoFreeSlot
	ErrUsedSlot             = devtree.ErrUsedSlot
	ErrNoMatchingBus        = devtree.ErrNoMatchingBus
	ErrDuplicateIdentifier  = devtree.ErrDuplicateIdentifier
	ErrDeviceOwned          = devtree.ErrDeviceOwned
	ErrUnknownDevice        = devtree.ErrUnknownDevice
	ErrUnsupportedRendering = qcmd.ErrUnsupported
	ErrMissingParam         = qcmd.ErrMissingParam
)

// -----------------------------------------------------------------------------
// Containers and Devices
// -----------------------------------------------------------------------------

// New creates a Container with a root PCI bus unless opts say otherwise.
func New(opts Options) *Container { return devtree.New(opts) }

// Force turns placement failures into warnings.
func Force() InsertOption { return devtree.Force() }

// NewDevice creates a plain "-device" device.
func NewDevice(key string) *Device { return devtree.NewDevice(key) }

// NewDrive creates a "-drive" backend whose id is derived from key.
func NewDrive(key string) *Device { return devtree.NewDrive(key) }

// NewStringDevice creates a device rendered from text templates.
func NewStringDevice(typ string, tmpl Templates, key string) *Device {
	return devtree.NewStringDevice(typ, tmpl, key)
}

// NewCustomDevice creates a device rendered as "-typ k=v,...".
func NewCustomDevice(typ, key string) *Device { return devtree.NewCustomDevice(typ, key) }

// NewGlobal creates a "-global driver.property=value" device.
func NewGlobal(driver, property, value, key string) *Device {
	return devtree.NewGlobal(driver, property, value, key)
}

// NewUSBBus creates a dense USB bus with length ports. Its type is reduced
// to the controller family, so "piix3-usb-uhci" hosts a "uhci" bus.
func NewUSBBus(length int, id, typ, key string) *Bus { return devtree.NewUSBBus(length, id, typ, key) }

// NewSCSIBus creates a sparse SCSI bus addressed by scsi-id and lun.
func NewSCSIBus(id, typ, key string) *Bus { return devtree.NewSCSIBus(id, typ, key) }

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

// Cmdline renders d as a command-line fragment.
func Cmdline(d *Device) (string, error) { return qcmd.Cmdline(d) }

// Hotplug renders d as a monitor command adding it to a running machine.
func Hotplug(d *Device) (string, error) { return qcmd.Hotplug(d) }

// Unplug renders d as a monitor command removing it from a running machine.
func Unplug(d *Device) (string, error) { return qcmd.Unplug(d) }

// ReadConfig renders d as a -readconfig block, empty when it has none.
func ReadConfig(d *Device) (string, error) { return qcmd.ReadConfig(d) }

// ContainerCmdline renders every device of c in insertion order.
func ContainerCmdline(c *Container) (string, error) { return qcmd.ContainerCmdline(c) }

// -----------------------------------------------------------------------------
// Capabilities and Topologies
// -----------------------------------------------------------------------------

// ProbeBinary captures the help output of a hypervisor binary.
func ProbeBinary(ctx context.Context, binary string) (*Probe, error) {
	return capability.Load(ctx, binary)
}

// ProbeFiles reads previously captured help output.
func ProbeFiles(helpPath, devicesPath string) (*Probe, error) {
	return capability.FromFiles(helpPath, devicesPath)
}

// LoadTopology decodes a YAML or HCL machine description.
func LoadTopology(path string) (*Topology, error) { return topology.Load(path) }
