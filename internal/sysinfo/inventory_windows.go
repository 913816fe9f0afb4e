//go:build windows

package sysinfo

import "strings"

func directXVersion() string {
	// Windows 10 and later ship DirectX 12; querying dxdiag is slow
	// enough to stall a snapshot, so report the shipped version.
	return "DirectX 12"
}

func (c *Collector) physicalModel() string {
	out, err := c.run("wmic", "computersystem", "get", "Manufacturer,Model", "/format:list")
	if err != nil {
		return Unknown
	}
	blocks := parseListBlocks(out)
	if len(blocks) == 0 {
		return Unknown
	}

	parts := []string{blocks[0]["Manufacturer"], blocks[0]["Model"]}
	if serial, err := c.run("wmic", "bios", "get", "SerialNumber", "/format:list"); err == nil {
		parts = append(parts, listValues(parseListBlocks(serial), "SerialNumber")...)
	}

	model := strings.TrimSpace(strings.Join(parts, " "))
	if model == "" {
		return Unknown
	}
	return model
}

func (c *Collector) collectPCIDevices() []PCIDevice {
	out, err := c.run("wmic", "path", "win32_pnpentity",
		"where", "DeviceID like 'PCI%'",
		"get", "DeviceID,Name", "/format:list")
	if err != nil {
		return []PCIDevice{{ID: Unknown, Type: "unknown"}}
	}

	var devices []PCIDevice
	for _, block := range parseListBlocks(out) {
		id := block["DeviceID"]
		if id == "" {
			continue
		}
		devices = append(devices, PCIDevice{
			ID:   id,
			Type: pnpDeviceType(block["Name"]),
			Name: block["Name"],
		})
	}
	if len(devices) == 0 {
		return []PCIDevice{{ID: Unknown, Type: "unknown"}}
	}
	return devices
}

func pnpDeviceType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "graphics"), strings.Contains(lower, "display"), strings.Contains(lower, "video"):
		return "display"
	case strings.Contains(lower, "ethernet"), strings.Contains(lower, "network"), strings.Contains(lower, "wi-fi"), strings.Contains(lower, "wireless"):
		return "network"
	case strings.Contains(lower, "sata"), strings.Contains(lower, "nvme"), strings.Contains(lower, "storage"), strings.Contains(lower, "raid"):
		return "storage"
	default:
		return "unknown"
	}
}

func (c *Collector) collectDrives() []Drive {
	out, err := c.run("wmic", "diskdrive", "get", "SerialNumber", "/format:list")
	if err != nil {
		return []Drive{{Serial: Unknown}}
	}

	var drives []Drive
	for _, serial := range listValues(parseListBlocks(out), "SerialNumber") {
		drives = append(drives, Drive{Serial: serial})
	}
	if len(drives) == 0 {
		return []Drive{{Serial: Unknown}}
	}
	return drives
}

func (c *Collector) collectVideoCards() []VideoCard {
	out, err := c.run("wmic", "path", "win32_videocontroller",
		"get", "Name,DriverVersion", "/format:list")
	if err != nil {
		return nil
	}

	var cards []VideoCard
	for _, block := range parseListBlocks(out) {
		if block["Name"] == "" {
			continue
		}
		cards = append(cards, VideoCard{
			Name:          block["Name"],
			DriverVersion: block["DriverVersion"],
		})
	}
	return cards
}

func (c *Collector) collectMonitors() []Monitor {
	out, err := c.run("wmic", "desktopmonitor", "get", "Name", "/format:list")
	if err != nil {
		return []Monitor{{Model: Unknown}}
	}

	var monitors []Monitor
	for _, name := range listValues(parseListBlocks(out), "Name") {
		monitors = append(monitors, Monitor{Model: name})
	}
	if len(monitors) == 0 {
		return []Monitor{{Model: Unknown}}
	}
	return monitors
}

func (c *Collector) collectUSBDevices() []USBDevice {
	out, err := c.run("wmic", "path", "win32_pnpentity",
		"where", "DeviceID like 'USB%'",
		"get", "DeviceID,Name", "/format:list")
	if err != nil {
		return nil
	}

	var devices []USBDevice
	for _, block := range parseListBlocks(out) {
		name := block["Name"]
		if name == "" {
			continue
		}
		vendor, product := parseUSBDeviceID(block["DeviceID"])
		devices = append(devices, USBDevice{
			Name:      name,
			VendorID:  vendor,
			ProductID: product,
		})
	}
	return devices
}

// parseUSBDeviceID pulls VID/PID out of an ID like
// "USB\VID_046D&PID_C52B\5&2A...".
func parseUSBDeviceID(id string) (vendor, product string) {
	for _, part := range strings.Split(id, "\\") {
		for _, field := range strings.Split(part, "&") {
			if rest, ok := strings.CutPrefix(field, "VID_"); ok {
				vendor = rest
			}
			if rest, ok := strings.CutPrefix(field, "PID_"); ok {
				product = rest
			}
		}
	}
	return vendor, product
}
