// Package topology loads machine descriptions from YAML or HCL files and
// places their devices into a container.
package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyrange/qdev/internal/define"
	"github.com/tinyrange/qdev/internal/devtree"
)

// Document describes one machine. USB controllers are inserted first, then
// images, then the remaining devices, each in document order.
type Document struct {
	Name       string         `yaml:"name"`
	StrictMode bool           `yaml:"strict_mode"`
	USBs       []define.USB   `yaml:"usbs"`
	Images     []define.Image `yaml:"images"`
	Devices    []Device       `yaml:"devices"`
}

// Device is a free-form device entry.
type Device struct {
	// Kind is device (the default), drive, custom, global, floppy or string.
	Kind      string    `yaml:"kind"`
	Type      string    `yaml:"type"`
	Key       string    `yaml:"key"`
	Params    Params    `yaml:"params"`
	Parents   []Parent  `yaml:"parents"`
	Buses     []Bus     `yaml:"buses"`
	Templates Templates `yaml:"templates"`
	Force     bool      `yaml:"force"`
}

// Parent is a parent bus requirement. Empty fields match any bus.
type Parent struct {
	Type   string `yaml:"type" hcl:"type,optional"`
	Family string `yaml:"family" hcl:"family,optional"`
	BusID  string `yaml:"bus_id" hcl:"bus_id,optional"`
	Key    string `yaml:"key" hcl:"key,optional"`
}

// Bus is a bus hosted by a device.
type Bus struct {
	// Kind is pci, usb, scsi, ahci, ide, floppy, drive, dense, hex, sparse
	// or bus-unit.
	Kind string `yaml:"kind" hcl:"kind,label"`
	ID   string `yaml:"id" hcl:"id"`
	Type string `yaml:"type" hcl:"type,optional"`
	Key  string `yaml:"key" hcl:"key,optional"`
	// Link names the device param carrying the bus id on generic buses.
	Link string `yaml:"link" hcl:"link,optional"`
	// Ports sizes usb buses.
	Ports int   `yaml:"ports" hcl:"ports,optional"`
	Dims  []Dim `yaml:"dims" hcl:"dim,block"`
	// Reserved addresses are marked reserved as soon as the bus is built.
	Reserved [][]int `yaml:"reserved" hcl:"reserved,optional"`
}

// Dim is one dimension of a generic bus.
type Dim struct {
	Param       string `yaml:"param" hcl:"param,label"`
	Length      int    `yaml:"length" hcl:"length"`
	DefaultZero bool   `yaml:"default_zero" hcl:"default_zero,optional"`
}

// Templates are the renderings of a string device.
type Templates struct {
	Create  string `yaml:"create" hcl:"create,optional"`
	Hotplug string `yaml:"hotplug" hcl:"hotplug,optional"`
	Unplug  string `yaml:"unplug" hcl:"unplug,optional"`
	Config  string `yaml:"config" hcl:"config,optional"`
}

// Param is one device parameter. Value is a string, bool, int or nil and
// follows devtree.Device.SetParam normalisation.
type Param struct {
	Key   string
	Value any
}

// Params keeps device parameters in the order they were written.
type Params []Param

// Load reads a document, choosing the decoder by file extension: .yaml and
// .yml for YAML, .hcl for HCL.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".hcl":
		return DecodeHCL(data, path)
	}
	return nil, fmt.Errorf("topology %s: unknown file type %q", path, filepath.Ext(path))
}

// Placement is the outcome of inserting one device of a document.
type Placement struct {
	// Source names the document entry the device came from.
	Source string
	Device *devtree.Device
	devtree.Result
}

// Apply builds a container for the document and inserts every device.
// Definition errors abort; placement failures are reported per device.
func (d *Document) Apply(caps devtree.Capabilities) (*devtree.Container, []Placement, error) {
	c := devtree.New(devtree.Options{
		Name:         d.Name,
		StrictMode:   d.StrictMode,
		Capabilities: caps,
	})
	var placements []Placement
	insert := func(source string, devices []*devtree.Device, opts ...devtree.InsertOption) {
		for _, dev := range devices {
			placements = append(placements, Placement{
				Source: source,
				Device: dev,
				Result: c.Insert(dev, opts...),
			})
		}
	}

	usbs := define.NewUSBs(c)
	for _, u := range d.USBs {
		devices, err := usbs.Define(u)
		if err != nil {
			return nil, nil, fmt.Errorf("usb %s: %w", u.ID, err)
		}
		insert("usb "+u.ID, devices)
	}

	images := define.NewImages(c)
	for _, img := range d.Images {
		devices, err := images.Define(img)
		if err != nil {
			return nil, nil, fmt.Errorf("image %s: %w", img.Name, err)
		}
		insert("image "+img.Name, devices)
	}

	for i, spec := range d.Devices {
		dev, err := spec.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("device %d: %w", i, err)
		}
		insert(fmt.Sprintf("device %d", i), []*devtree.Device{dev}, devtree.WithForce(spec.Force))
	}
	return c, placements, nil
}

// Build constructs the device described by d.
func (d Device) Build() (*devtree.Device, error) {
	var dev *devtree.Device
	switch d.Kind {
	case "", "device":
		dev = devtree.NewDevice(d.Key)
	case "drive":
		dev = devtree.NewDrive(d.Key)
	case "custom":
		if d.Type == "" {
			return nil, fmt.Errorf("custom device needs a type")
		}
		dev = devtree.NewCustomDevice(d.Type, d.Key)
	case "global":
		dev = devtree.NewGlobal("", "", "", d.Key)
	case "floppy":
		dev = devtree.NewFloppy("", "", d.Key)
	case "string":
		if d.Type == "" {
			return nil, fmt.Errorf("string device needs a type")
		}
		dev = devtree.NewStringDevice(d.Type, devtree.Templates(d.Templates), d.Key)
	default:
		return nil, fmt.Errorf("unknown device kind %q", d.Kind)
	}

	for _, p := range d.Params {
		dev.SetParam(p.Key, p.Value)
	}
	for _, p := range d.Parents {
		family, err := devtree.ParseFamily(p.Family)
		if err != nil {
			return nil, err
		}
		dev.AddParent(devtree.Requirement{Type: p.Type, Family: family, BusID: p.BusID, Key: p.Key})
	}
	for _, b := range d.Buses {
		bus, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("bus %s: %w", b.ID, err)
		}
		dev.AddHostedBus(bus)
	}
	return dev, nil
}

// Build constructs the bus described by b.
func (b Bus) Build() (*devtree.Bus, error) {
	if b.ID == "" {
		return nil, fmt.Errorf("%s bus needs an id", b.Kind)
	}
	for _, d := range b.Dims {
		if d.Length <= 0 {
			return nil, fmt.Errorf("dimension %q: length must be positive, got %d", d.Param, d.Length)
		}
	}
	dims := make([]devtree.Dim, len(b.Dims))
	for i, d := range b.Dims {
		dims[i] = devtree.Dim(d)
	}
	needDims := func(n int) error {
		if len(dims) != n {
			return fmt.Errorf("%s bus needs %d dims, got %d", b.Kind, n, len(dims))
		}
		return nil
	}

	var bus *devtree.Bus
	switch b.Kind {
	case "pci":
		bus = devtree.NewPCIBus(b.ID, orDefault(b.Type, "pci"), b.Key)
	case "usb":
		ports := b.Ports
		if ports == 0 {
			ports = define.DefaultUSBPorts
		}
		if ports < 0 {
			return nil, fmt.Errorf("usb bus needs a positive port count, got %d", ports)
		}
		bus = devtree.NewUSBBus(ports, b.ID, b.Type, b.Key)
	case "scsi":
		bus = devtree.NewSCSIBus(b.ID, b.Type, b.Key)
	case "ahci":
		bus = devtree.NewAHCIBus(b.ID, b.Key)
	case "ide":
		bus = devtree.NewIDEBus(b.ID, b.Key)
	case "floppy":
		bus = devtree.NewFloppyBus(b.ID, b.Key)
	case "drive":
		bus = devtree.NewDriveBus(b.ID, b.Key)
	case "dense", "hex":
		if err := needDims(1); err != nil {
			return nil, err
		}
		if b.Kind == "hex" {
			bus = devtree.NewHexBus(b.ID, b.Type, b.Key, b.Link, dims[0].Param, dims[0].Length)
		} else {
			bus = devtree.NewDenseBus(b.ID, b.Type, b.Key, b.Link, dims[0].Param, dims[0].Length)
		}
	case "sparse":
		if len(dims) == 0 {
			return nil, fmt.Errorf("sparse bus needs at least one dim")
		}
		bus = devtree.NewSparseBus(b.ID, b.Type, b.Key, b.Link, dims...)
	case "bus-unit":
		if err := needDims(2); err != nil {
			return nil, err
		}
		bus = devtree.NewBusUnitBus(b.ID, b.Type, b.Key, dims[0].Length, dims[1].Length)
	default:
		return nil, fmt.Errorf("unknown bus kind %q", b.Kind)
	}

	for _, addr := range b.Reserved {
		if err := bus.Reserve(devtree.Pin(addr...)); err != nil {
			return nil, err
		}
	}
	return bus, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
