//go:build !linux && !windows

package sysinfo

func directXVersion() string { return Unknown }

func (c *Collector) physicalModel() string { return Unknown }

func (c *Collector) collectPCIDevices() []PCIDevice {
	return []PCIDevice{{ID: Unknown, Type: "unknown"}}
}

func (c *Collector) collectDrives() []Drive {
	return []Drive{{Serial: Unknown}}
}

func (c *Collector) collectVideoCards() []VideoCard { return nil }

func (c *Collector) collectMonitors() []Monitor {
	return []Monitor{{Model: Unknown}}
}

func (c *Collector) collectUSBDevices() []USBDevice { return nil }
