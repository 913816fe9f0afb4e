//go:build linux

package sysinfo

import (
	"os"
	"path/filepath"
	"strings"
)

func directXVersion() string {
	// DirectX does not exist here; the field stays a sentinel so diffs
	// against Windows-collected snapshots still line up.
	return Unknown
}

func (c *Collector) physicalModel() string {
	vendor := readDMIField("sys_vendor")
	product := readDMIField("product_name")
	serial := readDMIField("product_serial")

	model := strings.TrimSpace(strings.Join([]string{vendor, product, serial}, " "))
	if model == "" {
		return Unknown
	}
	return model
}

func readDMIField(name string) string {
	data, err := os.ReadFile(filepath.Join("/sys/class/dmi/id", name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// collectPCIDevices parses lspci output. Each line looks like
// "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics".
func (c *Collector) collectPCIDevices() []PCIDevice {
	out, err := c.run("lspci")
	if err != nil {
		return []PCIDevice{{ID: Unknown, Type: "unknown"}}
	}

	var devices []PCIDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		slot, rest, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		class, name, found := strings.Cut(rest, ": ")
		if !found {
			continue
		}
		devices = append(devices, PCIDevice{
			ID:   slot,
			Type: pciClassType(class),
			Name: name,
		})
	}
	if len(devices) == 0 {
		return []PCIDevice{{ID: Unknown, Type: "unknown"}}
	}
	return devices
}

func pciClassType(class string) string {
	lower := strings.ToLower(class)
	switch {
	case strings.Contains(lower, "vga"), strings.Contains(lower, "display"), strings.Contains(lower, "3d"):
		return "display"
	case strings.Contains(lower, "network"), strings.Contains(lower, "ethernet"):
		return "network"
	case strings.Contains(lower, "sata"), strings.Contains(lower, "ide"), strings.Contains(lower, "storage"), strings.Contains(lower, "nvme"), strings.Contains(lower, "raid"):
		return "storage"
	default:
		return "unknown"
	}
}

func (c *Collector) collectDrives() []Drive {
	out, err := c.run("lsblk", "-d", "-n", "-o", "SERIAL")
	if err != nil {
		return []Drive{{Serial: Unknown}}
	}

	var drives []Drive
	for _, line := range strings.Split(out, "\n") {
		serial := strings.TrimSpace(line)
		if serial != "" {
			drives = append(drives, Drive{Serial: serial})
		}
	}
	if len(drives) == 0 {
		return []Drive{{Serial: Unknown}}
	}
	return drives
}

func (c *Collector) collectVideoCards() []VideoCard {
	out, err := c.run("lspci")
	if err != nil {
		return nil
	}

	var cards []VideoCard
	for _, line := range strings.Split(out, "\n") {
		_, rest, found := strings.Cut(strings.TrimSpace(line), " ")
		if !found {
			continue
		}
		class, name, found := strings.Cut(rest, ": ")
		if !found || pciClassType(class) != "display" {
			continue
		}
		cards = append(cards, VideoCard{Name: name})
	}
	return cards
}

// collectMonitors scans DRM connector state; a connected connector is one
// attached display.
func (c *Collector) collectMonitors() []Monitor {
	statuses, _ := filepath.Glob("/sys/class/drm/card*-*/status")

	var monitors []Monitor
	for _, path := range statuses {
		data, err := os.ReadFile(path)
		if err != nil || strings.TrimSpace(string(data)) != "connected" {
			continue
		}
		connector := filepath.Base(filepath.Dir(path))
		if _, name, found := strings.Cut(connector, "-"); found {
			monitors = append(monitors, Monitor{Model: name})
		}
	}
	if len(monitors) == 0 {
		return []Monitor{{Model: Unknown}}
	}
	return monitors
}

// collectUSBDevices parses lsusb output. Each line looks like
// "Bus 001 Device 003: ID 046d:c52b Logitech, Inc. Unifying Receiver".
func (c *Collector) collectUSBDevices() []USBDevice {
	out, err := c.run("lsusb")
	if err != nil {
		return nil
	}

	var devices []USBDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		_, rest, found := strings.Cut(line, ": ID ")
		if !found {
			continue
		}
		ids, name, _ := strings.Cut(rest, " ")
		vendor, product, _ := strings.Cut(ids, ":")
		if name == "" {
			name = "USB Device"
		}
		devices = append(devices, USBDevice{
			Name:      name,
			VendorID:  vendor,
			ProductID: product,
		})
	}
	return devices
}
