// Package sysinfo collects best-effort host telemetry snapshots.
//
// A snapshot is assembled from gopsutil readings plus platform inventory
// commands. Individual collectors degrade to sentinel values instead of
// failing the snapshot: a host with no readable PCI bus still produces a
// complete Snapshot with "Unknown" placeholders.
package sysinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Unknown is the sentinel for fields whose collector failed.
const Unknown = "Unknown"

// Snapshot is one point-in-time capture of host telemetry.
type Snapshot struct {
	System          SystemCore  `json:"system_info"`
	PCIDevices      []PCIDevice `json:"pci_devices"`
	Drives          []Drive     `json:"drives"`
	Network         Network     `json:"network_info"`
	VideoCards      []VideoCard `json:"video_cards"`
	Monitors        []Monitor   `json:"monitors"`
	USBInputDevices []USBDevice `json:"usb_input_devices"`
	Processor       Processor   `json:"processor_info"`
}

// SystemCore holds the host identity fields.
type SystemCore struct {
	DirectXVersion   string `json:"directx_version"`
	OSVersion        string `json:"os_version"`
	RealOS           string `json:"real_os"`
	MemoryMB         uint64 `json:"memory_mb"`
	PhysicalModel    string `json:"physical_model"`
	MachineSignature string `json:"machine_signature"`
	User             string `json:"user"`
	MonitorStartTime string `json:"monitor_start_time"`
}

// PCIDevice describes one PCI bus entry.
type PCIDevice struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Drive holds a disk drive serial number.
type Drive struct {
	Serial string `json:"serial"`
}

// Network holds the host's addresses.
type Network struct {
	LocalIP  string `json:"local_ip"`
	PublicIP string `json:"public_ip"`
}

// VideoCard describes one display adapter.
type VideoCard struct {
	Name          string `json:"name"`
	DriverVersion string `json:"driver_version"`
}

// Monitor describes one attached display.
type Monitor struct {
	Model string `json:"model"`
}

// USBDevice describes one USB device.
type USBDevice struct {
	Name      string `json:"name"`
	VendorID  string `json:"vendor_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

// Processor summarises the CPU.
type Processor struct {
	CPUModel string `json:"cpu_model"`
	CPUCores int    `json:"cpu_cores"`
}

// Format renders the snapshot as indented JSON for the baseline event.
func (s *Snapshot) Format() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "failed to serialize system info"
	}
	return string(data)
}

// Provider produces snapshots. The telemetry monitor depends only on this
// contract, not on how the inventory is gathered.
type Provider interface {
	Collect() (*Snapshot, error)
}

// Collector is the real inventory provider.
type Collector struct {
	// CommandTimeout bounds each inventory command individually; one
	// hung utility must not stall the whole snapshot.
	CommandTimeout time.Duration

	// LookupPublicIP enables the external resolver query for the
	// public address. Disabled deployments report Unknown.
	LookupPublicIP bool
}

// NewCollector returns a collector with default settings.
func NewCollector() *Collector {
	return &Collector{
		CommandTimeout: 3 * time.Second,
		LookupPublicIP: true,
	}
}

// Collect assembles a fresh snapshot. It returns an error only when the
// core host readings are unavailable; inventory sub-collectors degrade
// to sentinels on their own.
func (c *Collector) Collect() (*Snapshot, error) {
	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("read host info: %w", err)
	}

	snap := &Snapshot{
		System: SystemCore{
			DirectXVersion:   directXVersion(),
			OSVersion:        info.PlatformVersion,
			RealOS:           platformCaption(info),
			MemoryMB:         c.memoryMB(),
			PhysicalModel:    c.physicalModel(),
			MachineSignature: machineSignature(info),
			User:             currentUser(),
			MonitorStartTime: time.Now().UTC().Format(time.RFC3339),
		},
		PCIDevices: c.collectPCIDevices(),
		Drives:     c.collectDrives(),
		Network: Network{
			LocalIP:  localIP(),
			PublicIP: c.publicIP(),
		},
		VideoCards:      c.collectVideoCards(),
		Monitors:        c.collectMonitors(),
		USBInputDevices: c.collectUSBDevices(),
		Processor:       processorInfo(),
	}

	if snap.System.OSVersion == "" {
		snap.System.OSVersion = Unknown
	}
	return snap, nil
}

func platformCaption(info *host.InfoStat) string {
	caption := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if caption == "" {
		return Unknown
	}
	return caption
}

func machineSignature(info *host.InfoStat) string {
	if info.HostID == "" {
		return "{Unknown-Machine-ID}"
	}
	return "{" + info.HostID + "}"
}

func (c *Collector) memoryMB() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total / 1024 / 1024
}

func processorInfo() Processor {
	p := Processor{CPUModel: Unknown}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		p.CPUModel = infos[0].ModelName
	}
	if count, err := cpu.Counts(true); err == nil {
		p.CPUCores = count
	}
	return p
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return Unknown
	}
	return u.Username
}

// localIP returns the first non-loopback, non-link-local IPv4 address.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return Unknown
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return ip.String()
	}
	return Unknown
}

// publicIP resolves the host's public address through OpenDNS. Failures
// and disabled lookup both degrade to Unknown.
func (c *Collector) publicIP() string {
	if !c.LookupPublicIP {
		return Unknown
	}
	out, err := c.run("nslookup", "myip.opendns.com", "resolver1.opendns.com")
	if err != nil {
		return Unknown
	}
	return parseNslookupAddress(out)
}

// parseNslookupAddress extracts the answer address from nslookup output,
// skipping the resolver's own address line.
func parseNslookupAddress(out string) string {
	sawAnswer := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Name:") {
			sawAnswer = true
			continue
		}
		if !sawAnswer {
			continue
		}
		value, found := strings.CutPrefix(line, "Address:")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if ip := net.ParseIP(value); ip != nil && ip.To4() != nil {
			return value
		}
	}
	return Unknown
}

// run executes one inventory command under the collector's timeout.
func (c *Collector) run(name string, args ...string) (string, error) {
	timeout := c.CommandTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
