package devtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetParamNormalisation(t *testing.T) {
	d := NewDevice("dev1")
	d.SetParam("driver", "usb-mouse")
	d.SetParam("multifunction", true)
	d.SetParam("port", 0)
	d.SetParam("serial", "")
	d.SetParam("masterbus", nil)
	d.SetParam("freq", false)

	assert.Equal(t, []string{"driver", "multifunction", "port"}, d.Params().Keys())
	assert.Equal(t, "on", d.Param("multifunction"))
	assert.Equal(t, "0", d.Param("port"))

	d.SetParam("driver", "usb-tablet")
	assert.Equal(t, []string{"driver", "multifunction", "port"}, d.Params().Keys(), "replacing keeps position")

	d.SetParam("multifunction", nil)
	assert.False(t, d.HasParam("multifunction"))
}

func TestSetFlag(t *testing.T) {
	d := NewDevice("")
	for _, tc := range []struct {
		in   any
		want string
		set  bool
	}{
		{"yes", "on", true},
		{"on", "on", true},
		{true, "on", true},
		{"no", "off", true},
		{"off", "off", true},
		{false, "off", true},
		{"", "", false},
		{nil, "", false},
	} {
		d.SetFlag("snapshot", tc.in)
		assert.Equal(t, tc.set, d.HasParam("snapshot"), "input %v", tc.in)
		assert.Equal(t, tc.want, d.Param("snapshot"), "input %v", tc.in)
	}

	d.SetFlag("readonly", "on")
	d.SetFlag("readonly", "maybe")
	assert.Equal(t, "on", d.Param("readonly"), "unrecognised text is ignored")
}

func TestDriveIDIsFixed(t *testing.T) {
	d := NewDrive("disk1")
	require.Equal(t, "drive_disk1", d.ID())
	d.SetParam("id", "other")
	assert.Equal(t, "drive_disk1", d.ID())

	hosted := d.HostedBuses()
	require.Len(t, hosted, 1)
	assert.Equal(t, "drive_disk1", hosted[0].ID())
	assert.Equal(t, FamilySingle, hosted[0].Family())
}

func TestFloppyAliases(t *testing.T) {
	d := NewFloppy("driveB", "drive_fd", "fd")
	assert.Equal(t, "isa-fdc", d.Param("driver"))
	assert.Equal(t, "driveB", d.Param("property"))
	assert.Equal(t, "drive_fd", d.Param("value"))
	assert.Equal(t, "driveB", d.Param("unit"))
	assert.Equal(t, "a'floppy-driveB'", d.String())
}

func TestDeviceShortNames(t *testing.T) {
	d := NewDevice("")
	assert.Equal(t, "t'device'", d.String())
	d.SetParam("driver", "usb-mouse")
	assert.Equal(t, "a'usb-mouse'", d.String())
	d.SetParam("id", "mouse1")
	assert.Equal(t, "q'mouse1'", d.String())
	d.ref = "mouse1__0"
	assert.Equal(t, "mouse1__0", d.String())
}
