package define

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyrange/qdev/internal/devtree"
)

// DefaultSCSIHBA is the controller created for scsi-* images without an
// explicit SCSIHBA.
const DefaultSCSIHBA = "virtio-scsi-pci"

// Image describes one disk image. Nil pointers and empty strings leave the
// option unset. Flag fields accept yes/on/true and no/off/false.
type Image struct {
	Name string `yaml:"name" hcl:"name,label"`
	File string `yaml:"file" hcl:"file"`
	// Format is the drive interface: ide, ahci, scsi-hd, scsi-cd,
	// scsi-block, virtio, usb1, usb2, usb3, floppy, or the deprecated scsi.
	Format string `yaml:"format" hcl:"format,optional"`

	Index    *int   `yaml:"index" hcl:"index,optional"`
	Cache    string `yaml:"cache" hcl:"cache,optional"`
	WError   string `yaml:"werror" hcl:"werror,optional"`
	RError   string `yaml:"rerror" hcl:"rerror,optional"`
	Serial   string `yaml:"serial" hcl:"serial,optional"`
	Snapshot string `yaml:"snapshot" hcl:"snapshot,optional"`
	Boot     string `yaml:"boot" hcl:"boot,optional"`
	Readonly string `yaml:"readonly" hcl:"readonly,optional"`
	Blkdebug string `yaml:"blkdebug" hcl:"blkdebug,optional"`
	AIO      string `yaml:"aio" hcl:"aio,optional"`
	Media    string `yaml:"media" hcl:"media,optional"`
	// ImageFormat is the file format (qcow2, raw, ...).
	ImageFormat string `yaml:"image_format" hcl:"image_format,optional"`

	// Bus, Unit and Port are the three levels of the disk location: the
	// controller index, then unit/scsi_id, then port/lun.
	Bus  *int `yaml:"bus" hcl:"bus,optional"`
	Unit *int `yaml:"unit" hcl:"unit,optional"`
	Port *int `yaml:"port" hcl:"port,optional"`
	// SCSIID and LUN are deprecated spellings of Unit and Port.
	SCSIID *int `yaml:"scsiid" hcl:"scsiid,optional"`
	LUN    *int `yaml:"lun" hcl:"lun,optional"`

	BootIndex         *int   `yaml:"bootindex" hcl:"bootindex,optional"`
	Removable         string `yaml:"removable" hcl:"removable,optional"`
	MinIOSize         *int   `yaml:"min_io_size" hcl:"min_io_size,optional"`
	OptIOSize         *int   `yaml:"opt_io_size" hcl:"opt_io_size,optional"`
	PhysicalBlockSize *int   `yaml:"physical_block_size" hcl:"physical_block_size,optional"`
	LogicalBlockSize  *int   `yaml:"logical_block_size" hcl:"logical_block_size,optional"`
	PCIAddr           string `yaml:"pci_addr" hcl:"pci_addr,optional"`

	// StrictMode overrides the container policy when set.
	StrictMode *bool  `yaml:"strict_mode" hcl:"strict_mode,optional"`
	SCSIHBA    string `yaml:"scsi_hba" hcl:"scsi_hba,optional"`
}

// Images defines disk images for one container.
type Images struct {
	c *devtree.Container
}

// NewImages returns an image builder for c.
func NewImages(c *devtree.Container) *Images {
	return &Images{c: c}
}

var legacyInterfaces = map[string]bool{
	"ide": true, "scsi": true, "sd": true, "mtd": true,
	"floppy": true, "pflash": true, "virtio": true,
}

// usbControllers maps usb disk formats to the controller family they plug
// into.
var usbControllers = map[string]string{"usb1": "uhci", "usb2": "ehci", "usb3": "xhci"}

// Define returns the devices for img in insertion order: any missing host
// adapters, the drive, then the guest device. Hypervisors without -device
// get a single "-drive if=<format>".
func (im *Images) Define(img Image) ([]*devtree.Device, error) {
	var devices []*devtree.Device
	format := img.Format

	supportsDevice := im.c.HasOption("device")
	if format == "scsi" {
		slog.Warn("define: drive format scsi is deprecated, use lsi_scsi", "image", img.Name)
		supportsDevice = false
	}

	strict := im.c.StrictMode()
	if img.StrictMode != nil {
		strict = *img.StrictMode
	}
	if strict {
		img.Cache = orDefault(img.Cache, "none")
		img.Removable = orDefault(img.Removable, "yes")
		img.AIO = orDefault(img.AIO, "native")
		img.Media = orDefault(img.Media, "disk")
	}

	bus, unit, port := img.Bus, img.Unit, img.Port
	if unit == nil && img.SCSIID != nil {
		slog.Warn("define: scsiid is deprecated, use unit", "image", img.Name)
		unit = img.SCSIID
	}
	if port == nil && img.LUN != nil {
		slog.Warn("define: lun is deprecated, use port", "image", img.Name)
		port = img.LUN
	}

	var busParam string
	var parent devtree.Requirement
	switch {
	case !supportsDevice:
	case format == "ide":
		if bus != nil && *bus != 0 {
			slog.Warn("define: ide has a single adapter, use unit to pick the channel", "image", img.Name)
		}
		busParam = itoa(unit)
		parent = devtree.Requirement{Type: "ide"}
	case format == "ahci":
		hbas, b, req, err := im.defineHBAs("ahci", bus, unit, port, true)
		if err != nil {
			return nil, err
		}
		devices = append(devices, hbas...)
		busParam, parent = b, req
	case strings.HasPrefix(format, "scsi-"):
		if img.SCSIHBA == "" {
			img.SCSIHBA = DefaultSCSIHBA
		}
		hbas, b, req, err := im.defineHBAs(img.SCSIHBA, bus, unit, port, false)
		if err != nil {
			return nil, err
		}
		devices = append(devices, hbas...)
		busParam, parent = b, req
	case usbControllers[format] != "":
		if bus != nil {
			slog.Warn("define: usb disks do not take a bus index", "image", img.Name)
		}
		parent = devtree.Requirement{Type: usbControllers[format]}
	case format == "virtio":
		parent = devtree.Requirement{Type: "pci"}
	default:
		parent = devtree.Requirement{Type: format}
	}

	drive := devtree.NewDrive(img.Name)
	drive.SetParam("if", "none")
	drive.SetParam("cache", img.Cache)
	drive.SetParam("rerror", img.RError)
	drive.SetParam("werror", img.WError)
	drive.SetParam("serial", img.Serial)
	drive.SetFlag("boot", img.Boot)
	drive.SetFlag("snapshot", img.Snapshot)
	drive.SetFlag("readonly", img.Readonly)
	drive.SetParam("aio", img.AIO)
	drive.SetParam("media", img.Media)
	drive.SetParam("format", img.ImageFormat)
	if img.Blkdebug != "" {
		drive.SetParam("file", fmt.Sprintf("blkdebug:%s:%s", img.Blkdebug, img.File))
	} else {
		drive.SetParam("file", img.File)
	}
	devices = append(devices, drive)

	if !supportsDevice {
		if strings.HasPrefix(format, "scsi-") && img.SCSIHBA == "lsi53c895a" {
			format = "scsi"
		}
		if !legacyInterfaces[format] {
			return nil, fmt.Errorf("%w: drive interface %q (image %s)", ErrDeviceNotSupported, format, img.Name)
		}
		drive.SetParam("if", format)
		drive.SetParam("index", img.Index)
		switch format {
		case "ide", "scsi", "floppy":
			drive.AddParent(devtree.Requirement{Type: format})
		case "virtio":
			drive.SetParam("addr", img.PCIAddr)
			drive.AddParent(devtree.Requirement{Type: "pci"})
		}
		return devices, nil
	}

	driveReq := devtree.Requirement{BusID: devtree.DriveID(img.Name)}
	if format == "floppy" {
		floppy := devtree.NewFloppy(itoa(unit), devtree.DriveID(img.Name), img.Name).
			AddParent(driveReq, devtree.Requirement{Type: "floppy"})
		return append(devices, floppy), nil
	}

	dev := devtree.NewDevice(img.Name).AddParent(driveReq, parent)
	dev.SetParam("id", img.Name)
	dev.SetParam("bus", busParam)
	dev.SetParam("drive", devtree.DriveID(img.Name))
	dev.SetParam("logical_block_size", img.LogicalBlockSize)
	dev.SetParam("physical_block_size", img.PhysicalBlockSize)
	dev.SetParam("min_io_size", img.MinIOSize)
	dev.SetParam("opt_io_size", img.OptIOSize)
	dev.SetParam("bootindex", img.BootIndex)
	if format != "virtio" {
		dev.SetParam("serial", img.Serial)
		dev.SetFlag("removable", img.Removable)
	}
	switch {
	case format == "ide" || format == "ahci":
		dev.SetParam("driver", "ide-drive")
		dev.SetParam("unit", port)
	case strings.HasPrefix(format, "scsi-"):
		dev.SetParam("driver", format)
		dev.SetParam("scsi_id", unit)
		dev.SetParam("lun", port)
		if strict {
			dev.SetParam("channel", 0)
		}
	case usbControllers[format] != "":
		dev.SetParam("driver", "usb-storage")
		dev.SetParam("port", unit)
	case format == "virtio":
		dev.SetParam("driver", "virtio-blk-pci")
		dev.SetParam("addr", img.PCIAddr)
	}
	return append(devices, dev), nil
}

// defineHBAs picks the host adapter bus for a disk and returns the adapters
// that must be created first. Without an explicit bus index the first
// adapter with room for (unit, port) is reused, else a new one is added.
func (im *Images) defineHBAs(hba string, bus, unit, port *int, ahci bool) ([]*devtree.Device, string, devtree.Requirement, error) {
	req := devtree.Requirement{Type: hba}
	pattern := strings.ReplaceAll(hba, "-", "_") + "%d.0"
	if ahci {
		pattern = "ahci%d"
	}

	var busParam string
	var devices []*devtree.Device
	idx := -1
	if bus != nil {
		idx = *bus
	} else if b, ok := im.c.FindFreeBus(req, devtree.Address{coord(unit), coord(port)}); ok {
		busParam = b.ID()
	} else {
		idx = im.c.NextNamedBusIndex(pattern)
	}

	if idx >= 0 {
		for _, name := range im.c.ListMissingNamedBuses(pattern, hba, idx+1) {
			if !im.c.HasDevice(hba) {
				return nil, "", req, fmt.Errorf("%w: %s", ErrDeviceNotSupported, hba)
			}
			var hosted *devtree.Bus
			if ahci {
				hosted = devtree.NewAHCIBus(name, "")
			} else {
				hosted = devtree.NewSCSIBus(name, hba, "")
			}
			ctrl := devtree.NewDevice("").
				AddParent(devtree.Requirement{Type: "pci"}).
				AddHostedBus(hosted)
			ctrl.SetParam("driver", hba)
			ctrl.SetParam("id", strings.TrimSuffix(name, ".0"))
			devices = append(devices, ctrl)
			slog.Debug("define: adding host adapter", "driver", hba, "bus", name)
		}
		busParam = fmt.Sprintf(pattern, idx)
	}
	if ahci && unit != nil {
		busParam += fmt.Sprintf(".%d", *unit)
	}
	return devices, busParam, req, nil
}

func coord(v *int) devtree.Coord {
	if v == nil {
		return devtree.Any()
	}
	return devtree.At(*v)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
