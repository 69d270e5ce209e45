package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHelp = `QEMU emulator version 1.5.3 (qemu-kvm-1.5.3-60.el7), Copyright (c) 2003-2008 Fabrice Bellard
usage: qemu [options] [disk_image]

Standard options:
-h or -help     display this help and exit
-device driver[,prop[=value][,...]]
                add device (based on driver)
-drive [file=file][,if=type][,bus=n][,unit=m][,media=d][,index=i]
-usb            enable the USB driver (will be the default soon)
-nodefaults     don't create default devices
`

const sampleDevices = `Controller/Bridge/Hub devices:
name "pci-bridge", bus PCI
name "usb-host", bus usb-bus
name "ich9-usb-ehci1", bus PCI
name "ich9-usb-uhci1", bus PCI

Storage devices:
name "virtio-blk-pci", bus PCI, alias "virtio-blk"
name "ide-hd", bus IDE
`

func TestHasOption(t *testing.T) {
	p := New(sampleHelp, sampleDevices)
	for _, tc := range []struct {
		name string
		want bool
	}{
		{"device", true},
		{"drive", true},
		{"usb", true},
		{"nodefaults", true},
		{"h", true},
		{"dev", false},
		{"usbdevice", false},
		{"readconfig", false},
		{"help", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.HasOption(tc.name))
		})
	}
}

func TestHasDevice(t *testing.T) {
	p := New(sampleHelp, sampleDevices)
	assert.True(t, p.HasDevice("ich9-usb-ehci1"))
	assert.True(t, p.HasDevice("ide-hd"))
	assert.False(t, p.HasDevice("ide"))
	assert.False(t, p.HasDevice("virtio-blk"), "aliases are not driver names")
	assert.False(t, p.HasDevice("nec-usb-xhci"))
}

func TestVersion(t *testing.T) {
	p := New(sampleHelp, "")
	assert.Equal(t, "v1.5.3", p.Version())
	assert.True(t, p.AtLeast("1.5"))
	assert.True(t, p.AtLeast("v1.5.3"))
	assert.False(t, p.AtLeast("1.6.0"))
	assert.False(t, p.AtLeast("garbage"))

	short := New("QEMU emulator version 2.1, Copyright (c)", "")
	assert.Equal(t, "v2.1.0", short.Version())

	unknown := New("usage: qemu", "")
	assert.Empty(t, unknown.Version())
	assert.False(t, unknown.AtLeast("0.1"))
}

func TestFromFiles(t *testing.T) {
	dir := t.TempDir()
	helpPath := filepath.Join(dir, "help.txt")
	require.NoError(t, os.WriteFile(helpPath, []byte(sampleHelp), 0o644))

	p, err := FromFiles(helpPath, "")
	require.NoError(t, err)
	assert.True(t, p.HasOption("device"))
	assert.False(t, p.HasDevice("ide-hd"))

	_, err = FromFiles(filepath.Join(dir, "missing.txt"), "")
	assert.Error(t, err)
}

func TestLoadMissingBinary(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "no-such-qemu"))
	assert.Error(t, err)
}
