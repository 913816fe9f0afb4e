package sysinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseSnapshot() *Snapshot {
	return &Snapshot{
		System: SystemCore{
			DirectXVersion: "DirectX 12",
			OSVersion:      "Microsoft Windows 11 Pro",
			MemoryMB:       16384,
		},
		PCIDevices: []PCIDevice{{ID: "00:02.0", Type: "display"}},
		Network:    Network{LocalIP: "192.168.1.10", PublicIP: "203.0.113.7"},
		VideoCards: []VideoCard{{Name: "UHD Graphics"}},
		Monitors:   []Monitor{{Model: "DELL U2720Q"}},
		USBInputDevices: []USBDevice{
			{Name: "USB Keyboard"},
			{Name: "USB Mouse"},
		},
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	old := baseSnapshot()
	cur := baseSnapshot()
	if diff := Diff(old, cur); diff != "" {
		t.Fatalf("expected empty diff, got %q", diff)
	}
}

func TestDiffSingleFieldChange(t *testing.T) {
	old := baseSnapshot()
	cur := baseSnapshot()
	cur.Network.PublicIP = "198.51.100.4"

	assert.Equal(t, "Public IP changed: 203.0.113.7 -> 198.51.100.4", Diff(old, cur))
}

func TestDiffMemoryChange(t *testing.T) {
	old := baseSnapshot()
	cur := baseSnapshot()
	cur.System.MemoryMB = 32768

	assert.Equal(t, "Memory changed: 16384 MB -> 32768 MB", Diff(old, cur))
}

func TestDiffMultipleChangesJoinedByNewline(t *testing.T) {
	old := baseSnapshot()
	cur := baseSnapshot()
	cur.System.OSVersion = "Microsoft Windows 11 Enterprise"
	cur.USBInputDevices = append(cur.USBInputDevices, USBDevice{Name: "USB Headset"})
	cur.Monitors = nil

	diff := Diff(old, cur)
	lines := strings.Split(diff, "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines, "OS version changed: Microsoft Windows 11 Pro -> Microsoft Windows 11 Enterprise")
	assert.Contains(t, lines, "USB devices count changed: 2 -> 3")
	assert.Contains(t, lines, "Monitor count changed: 1 -> 0")
}

func TestDiffIgnoresDeviceReordering(t *testing.T) {
	old := baseSnapshot()
	cur := baseSnapshot()
	cur.USBInputDevices = []USBDevice{
		{Name: "USB Mouse"},
		{Name: "USB Keyboard"},
	}

	assert.Empty(t, Diff(old, cur))
}

func TestFormatIsIndentedJSON(t *testing.T) {
	out := baseSnapshot().Format()
	assert.True(t, strings.HasPrefix(out, "{\n"), "expected indented JSON, got %q", out)
	assert.Contains(t, out, `"system_info"`)
	assert.Contains(t, out, `"usb_input_devices"`)
}
