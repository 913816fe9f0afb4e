package sysinfo

import (
	"fmt"
	"strings"
)

// Diff reports the human-readable changes between two snapshots, one
// line per changed field. An empty string means nothing tracked moved.
// Counts are compared rather than element identity so that device
// re-enumeration order does not produce noise.
func Diff(old, cur *Snapshot) string {
	var lines []string

	if old.System.DirectXVersion != cur.System.DirectXVersion {
		lines = append(lines, fmt.Sprintf("DirectX version changed: %s -> %s",
			old.System.DirectXVersion, cur.System.DirectXVersion))
	}
	if old.System.OSVersion != cur.System.OSVersion {
		lines = append(lines, fmt.Sprintf("OS version changed: %s -> %s",
			old.System.OSVersion, cur.System.OSVersion))
	}
	if old.System.MemoryMB != cur.System.MemoryMB {
		lines = append(lines, fmt.Sprintf("Memory changed: %d MB -> %d MB",
			old.System.MemoryMB, cur.System.MemoryMB))
	}
	if old.Network.LocalIP != cur.Network.LocalIP {
		lines = append(lines, fmt.Sprintf("Local IP changed: %s -> %s",
			old.Network.LocalIP, cur.Network.LocalIP))
	}
	if old.Network.PublicIP != cur.Network.PublicIP {
		lines = append(lines, fmt.Sprintf("Public IP changed: %s -> %s",
			old.Network.PublicIP, cur.Network.PublicIP))
	}
	if len(old.USBInputDevices) != len(cur.USBInputDevices) {
		lines = append(lines, fmt.Sprintf("USB devices count changed: %d -> %d",
			len(old.USBInputDevices), len(cur.USBInputDevices)))
	}
	if len(old.Monitors) != len(cur.Monitors) {
		lines = append(lines, fmt.Sprintf("Monitor count changed: %d -> %d",
			len(old.Monitors), len(cur.Monitors)))
	}
	if len(old.VideoCards) != len(cur.VideoCards) {
		lines = append(lines, fmt.Sprintf("Video cards count changed: %d -> %d",
			len(old.VideoCards), len(cur.VideoCards)))
	}
	if len(old.PCIDevices) != len(cur.PCIDevices) {
		lines = append(lines, fmt.Sprintf("PCI devices count changed: %d -> %d",
			len(old.PCIDevices), len(cur.PCIDevices)))
	}

	return strings.Join(lines, "\n")
}
