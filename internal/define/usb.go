package define

import (
	"fmt"

	"github.com/tinyrange/qdev/internal/devtree"
)

// DefaultUSBPorts is the port count of a USB controller when USB.MaxPorts
// is zero.
const DefaultUSBPorts = 6

// USB describes one USB controller.
type USB struct {
	// ID names the controller; its bus is "<ID>.0".
	ID string `yaml:"id" hcl:"id,label"`
	// Type is the controller driver, e.g. "ich9-usb-uhci1" or "nec-usb-xhci".
	Type          string `yaml:"type" hcl:"type"`
	Multifunction bool   `yaml:"multifunction" hcl:"multifunction,optional"`
	MasterBus     string `yaml:"masterbus" hcl:"masterbus,optional"`
	FirstPort     *int   `yaml:"firstport" hcl:"firstport,optional"`
	Freq          *int   `yaml:"freq" hcl:"freq,optional"`
	MaxPorts      int    `yaml:"max_ports" hcl:"max_ports,optional"`
	PCIAddr       string `yaml:"pci_addr" hcl:"pci_addr,optional"`
}

// USBs defines USB controllers for one container.
type USBs struct {
	c *devtree.Container
}

// NewUSBs returns a USB builder for c.
func NewUSBs(c *devtree.Container) *USBs {
	return &USBs{c: c}
}

// Define returns the devices making up the controller. ich9-usb-ehci1 comes
// with its three uhci companions as functions of PCI slot 0x1d. Without
// -device support the result is a single "-usb" controller hosting usb.0.
func (u *USBs) Define(spec USB) ([]*devtree.Device, error) {
	ports := spec.MaxPorts
	if ports == 0 {
		ports = DefaultUSBPorts
	}

	if !u.c.HasOption("device") {
		old := devtree.NewStringDevice("oldusb", devtree.Templates{Create: "-usb"}, spec.ID).
			AddHostedBus(devtree.NewUSBBus(2, "usb.0", "uhci", spec.ID))
		return []*devtree.Device{old}, nil
	}
	if !u.c.HasDevice(spec.Type) {
		return nil, fmt.Errorf("%w: %s (usb %s)", ErrDeviceNotSupported, spec.Type, spec.ID)
	}

	busID := spec.ID + ".0"
	ctrl := devtree.NewDevice(spec.ID).
		AddParent(devtree.Requirement{Type: "pci"}).
		AddHostedBus(devtree.NewUSBBus(ports, busID, spec.Type, spec.ID))
	ctrl.SetParam("driver", spec.Type)
	ctrl.SetParam("id", spec.ID)
	ctrl.SetParam("masterbus", spec.MasterBus)
	ctrl.SetParam("multifunction", spec.Multifunction)
	ctrl.SetParam("firstport", spec.FirstPort)
	ctrl.SetParam("freq", spec.Freq)
	ctrl.SetParam("addr", spec.PCIAddr)

	devices := []*devtree.Device{ctrl}
	if spec.Type != "ich9-usb-ehci1" {
		return devices, nil
	}

	// The master owns slot 0x1d; companions are further functions of it
	// and take no bus slot of their own.
	ctrl.SetParam("addr", "1d.7")
	ctrl.SetParam("multifunction", "on")
	for i := 0; i < 3; i++ {
		companion := devtree.NewDevice(spec.ID)
		companion.SetParam("driver", fmt.Sprintf("ich9-usb-uhci%d", i+1))
		companion.SetParam("id", fmt.Sprintf("%s.%d", spec.ID, i))
		companion.SetParam("multifunction", "on")
		companion.SetParam("masterbus", busID)
		companion.SetParam("addr", fmt.Sprintf("1d.%d", i))
		companion.SetParam("firstport", 2*i)
		devices = append(devices, companion)
	}
	return devices, nil
}
