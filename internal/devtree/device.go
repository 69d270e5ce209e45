package devtree

import (
	"fmt"
	"log/slog"
	"strings"
)

// Kind selects how a device is rendered and which renderings it supports.
type Kind int

const (
	// KindString renders from caller-supplied templates.
	KindString Kind = iota
	// KindCustom renders as "-<type> k=v,...".
	KindCustom
	// KindDevice renders as "-device k=v,..." and supports hotplug.
	KindDevice
	// KindDrive renders as "-drive k=v,..." and hosts a drive bus.
	KindDrive
	// KindGlobal renders as "-global driver.property=value".
	KindGlobal
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindCustom:
		return "custom"
	case KindDevice:
		return "device"
	case KindDrive:
		return "drive"
	case KindGlobal:
		return "global"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Requirement selects the buses a device may plug into. Empty fields match
// anything.
type Requirement struct {
	Type   string
	Family Family
	BusID  string
	Key    string
}

func (r Requirement) String() string {
	var parts []string
	if r.Type != "" {
		parts = append(parts, "type="+r.Type)
	}
	if r.Family != FamilyAny {
		parts = append(parts, "family="+r.Family.String())
	}
	if r.BusID != "" {
		parts = append(parts, "busid="+r.BusID)
	}
	if r.Key != "" {
		parts = append(parts, "key="+r.Key)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Templates hold the text/template sources used by KindString devices.
// Templates see the device params as a map.
type Templates struct {
	Create  string
	Hotplug string
	Unplug  string
	Config  string
}

// Device is a node of the topology.
type Device struct {
	kind      Kind
	typ       string
	key       string
	ref       string
	floppy    bool
	params    Params
	parents   []Requirement
	hosted    []*Bus
	templates Templates
	owner     *Container
}

// NewDevice returns a "-device" device correlated with key.
func NewDevice(key string) *Device {
	return &Device{kind: KindDevice, typ: "device", key: key}
}

// NewStringDevice returns a device rendered from templates.
func NewStringDevice(typ string, tmpl Templates, key string) *Device {
	return &Device{kind: KindString, typ: typ, key: key, templates: tmpl}
}

// NewCustomDevice returns a "-<typ>" device such as a chardev or netdev.
func NewCustomDevice(typ, key string) *Device {
	return &Device{kind: KindCustom, typ: typ, key: key}
}

// NewDrive returns a "-drive" device for key. Its id is always
// "drive_<key>" and it hosts a single-slot drive bus of the same name.
func NewDrive(key string) *Device {
	d := &Device{kind: KindDrive, typ: "drive", key: key}
	id := DriveID(key)
	d.params.set("id", id)
	d.hosted = []*Bus{NewDriveBus(id, key)}
	return d
}

// DriveID returns the id NewDrive assigns for key.
func DriveID(key string) string {
	return "drive_" + key
}

// NewGlobal returns a "-global driver.property=value" override.
func NewGlobal(driver, property, value, key string) *Device {
	d := &Device{kind: KindGlobal, typ: "global", key: key}
	d.SetParam("driver", driver)
	d.SetParam("property", property)
	d.SetParam("value", value)
	return d
}

// NewFloppy returns the isa-fdc global that attaches drive as floppy unit.
// unit may be empty, a digit, or driveA/driveB. The "unit" and "drive"
// params are aliases of "property" and "value".
func NewFloppy(unit, drive, key string) *Device {
	d := &Device{kind: KindGlobal, typ: "global", key: key, floppy: true}
	d.SetParam("driver", "isa-fdc")
	d.SetParam("unit", unit)
	d.SetParam("drive", drive)
	return d
}

// AddParent appends parent requirements and returns d.
func (d *Device) AddParent(reqs ...Requirement) *Device {
	d.parents = append(d.parents, reqs...)
	return d
}

// SetParents replaces the parent requirements and returns d.
func (d *Device) SetParents(reqs ...Requirement) *Device {
	d.parents = append([]Requirement(nil), reqs...)
	return d
}

// AddHostedBus appends buses this device exposes and returns d.
func (d *Device) AddHostedBus(buses ...*Bus) *Device {
	d.hosted = append(d.hosted, buses...)
	return d
}

// Kind returns the rendering kind.
func (d *Device) Kind() Kind { return d.kind }

// Type returns the device type ("device", "drive", "global" or the name
// given to string and custom devices).
func (d *Device) Type() string { return d.typ }

// Key returns the correlation key.
func (d *Device) Key() string { return d.key }

// Ref returns the internal reference assigned at insertion.
func (d *Device) Ref() string { return d.ref }

// ID returns the declared id, the "id" param.
func (d *Device) ID() string { return d.params.Value("id") }

// IsFloppy reports whether d was built by NewFloppy.
func (d *Device) IsFloppy() bool { return d.floppy }

// Templates returns the templates of a KindString device.
func (d *Device) Templates() Templates { return d.templates }

// Params returns the device parameters. Callers must not modify them
// other than through SetParam and SetFlag.
func (d *Device) Params() *Params { return &d.params }

// Param returns the value of key or "".
func (d *Device) Param(key string) string { return d.params.Value(d.alias(key)) }

// HasParam reports whether key is set.
func (d *Device) HasParam(key string) bool { return d.params.Has(d.alias(key)) }

// Parents returns a copy of the parent requirements.
func (d *Device) Parents() []Requirement {
	return append([]Requirement(nil), d.parents...)
}

// HostedBuses returns a copy of the buses this device exposes.
func (d *Device) HostedBuses() []*Bus {
	return append([]*Bus(nil), d.hosted...)
}

func (d *Device) alias(key string) string {
	if !d.floppy {
		return key
	}
	switch key {
	case "drive":
		return "value"
	case "unit":
		return "property"
	}
	return key
}

// SetParam stores value under key. true is stored as "on"; nil, false and
// "" remove the key; integers are stored in decimal.
func (d *Device) SetParam(key string, value any) {
	key = d.alias(key)
	if d.kind == KindDrive && key == "id" {
		slog.Warn("devtree: drive id is derived from its key", "key", d.key, "value", value)
		return
	}
	text, ok := normalizeValue(value)
	if !ok {
		d.params.del(key)
		return
	}
	d.params.set(key, text)
}

// SetFlag stores a boolean-typed option. yes/on/true store "on", no/off/false
// store "off", nil and "" remove the key. Other values are ignored.
func (d *Device) SetFlag(key string, value any) {
	key = d.alias(key)
	text, remove, changed := normalizeFlag(value)
	if !changed {
		return
	}
	if remove {
		d.params.del(key)
		return
	}
	d.params.set(key, text)
}

// DelParam removes key.
func (d *Device) DelParam(key string) {
	d.params.del(d.alias(key))
}

// AltName returns the display name used when the device has no id.
func (d *Device) AltName() string {
	switch {
	case d.floppy:
		return "floppy-" + d.params.Value("property")
	case d.kind == KindDevice:
		return d.params.Value("driver")
	}
	return ""
}

// String is the short representation: the internal reference when the
// device declares an id, else q'<id>', a'<alternative>' or t'<type>'.
func (d *Device) String() string {
	if id := d.ID(); id != "" {
		if d.ref != "" {
			return d.ref
		}
		return "q'" + id + "'"
	}
	if alt := d.AltName(); alt != "" {
		return "a'" + alt + "'"
	}
	return "t'" + d.typ + "'"
}

// StrLong is the multi-line representation with every param.
func (d *Device) StrLong() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", d.typ)
	fmt.Fprintf(&sb, "  ref = %s\n", d.ref)
	fmt.Fprintf(&sb, "  key = %s\n", d.key)
	parents := make([]string, len(d.parents))
	for i, p := range d.parents {
		parents[i] = p.String()
	}
	fmt.Fprintf(&sb, "  parents = [%s]\n", strings.Join(parents, ", "))
	hosted := make([]string, len(d.hosted))
	for i, b := range d.hosted {
		hosted[i] = b.ID()
	}
	fmt.Fprintf(&sb, "  hosted = [%s]\n", strings.Join(hosted, ", "))
	sb.WriteString("  params:")
	d.params.Each(func(k, v string) {
		fmt.Fprintf(&sb, "\n    %s = %s", k, v)
	})
	sb.WriteByte('\n')
	return sb.String()
}
