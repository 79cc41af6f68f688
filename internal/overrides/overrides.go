// Package overrides reads and writes the Bakery's external override file:
// a small hand-edited (or API-edited) JSON document that layers persistent
// devices and ad-hoc speed/parentage adjustments on top of whatever the
// scheduler's own CSV import produced. The Bakery itself only consumes this
// file; ownership of writing scheduler-facing state lives elsewhere.
package overrides

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/lqos-tc/bakery/internal/logging"
	"github.com/lqos-tc/bakery/internal/metrics"
)

// ErrOverrideIO wraps any failure reading, writing, or locking the override
// file.
var ErrOverrideIO = errors.New("override file io")

const fileName = "lqos_overrides.json"

// ShapedDevice is a persistent device entry that the scheduler should fold
// into its generated device list on every run, independent of whatever the
// upstream CSV/API source currently reports.
type ShapedDevice struct {
	CircuitID   string   `json:"circuit_id"`
	CircuitName string   `json:"circuit_name,omitempty"`
	DeviceID    string   `json:"device_id"`
	DeviceName  string   `json:"device_name,omitempty"`
	ParentNode  string   `json:"parent_node,omitempty"`
	MACAddress  string   `json:"mac_address,omitempty"`
	IPv4        []string `json:"ipv4,omitempty"`
	IPv6        []string `json:"ipv6,omitempty"`
	DownloadMin float32  `json:"download_min_mbps"`
	DownloadMax float32  `json:"download_max_mbps"`
	UploadMin   float32  `json:"upload_min_mbps"`
	UploadMax   float32  `json:"upload_max_mbps"`
}

// AdjustmentKind tags the variant of a CircuitAdjustment, matching the
// original's internally-tagged JSON enum.
type AdjustmentKind string

const (
	CircuitAdjustSpeed AdjustmentKind = "circuit_adjust_speed"
	DeviceAdjustSpeed  AdjustmentKind = "device_adjust_speed"
	RemoveCircuit      AdjustmentKind = "remove_circuit"
	RemoveDevice       AdjustmentKind = "remove_device"
	ReparentCircuit    AdjustmentKind = "reparent_circuit"
)

// CircuitAdjustment is one entry in the override file's circuit_adjustments
// list. Only the fields relevant to Type are populated; callers switch on
// Type rather than relying on zero values.
type CircuitAdjustment struct {
	Type AdjustmentKind `json:"type"`

	CircuitID string `json:"circuit_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`

	MinDownloadBandwidth *float32 `json:"min_download_bandwidth,omitempty"`
	MaxDownloadBandwidth *float32 `json:"max_download_bandwidth,omitempty"`
	MinUploadBandwidth   *float32 `json:"min_upload_bandwidth,omitempty"`
	MaxUploadBandwidth   *float32 `json:"max_upload_bandwidth,omitempty"`

	// ReparentCircuit only.
	ParentNode string `json:"parent_node,omitempty"`
}

// NetworkAdjustmentKind tags the variant of a NetworkAdjustment.
type NetworkAdjustmentKind string

// AdjustSiteSpeed is currently the only network adjustment kind.
const AdjustSiteSpeed NetworkAdjustmentKind = "adjust_site_speed"

// NetworkAdjustment is one entry in the override file's network_adjustments
// list; it overrides a site's configured bandwidth in network.json.
type NetworkAdjustment struct {
	Type                  NetworkAdjustmentKind `json:"type"`
	SiteName              string                `json:"site_name"`
	DownloadBandwidthMbps *uint32               `json:"download_bandwidth_mbps,omitempty"`
	UploadBandwidthMbps   *uint32               `json:"upload_bandwidth_mbps,omitempty"`
}

// File is the override file's in-memory form.
type File struct {
	PersistentDevices  []ShapedDevice      `json:"persistent_devices"`
	CircuitAdjustments []CircuitAdjustment `json:"circuit_adjustments"`
	NetworkAdjustments []NetworkAdjustment `json:"network_adjustments"`
}

// Load reads the override file from lqosDirectory, creating an empty one if
// it doesn't exist yet. The read happens under an exclusive advisory lock so
// a concurrent writer (e.g. an API handler) can't be observed mid-write.
func Load(lqosDirectory string) (*File, error) {
	lock, err := acquireLock(lqosDirectory)
	if err != nil {
		metrics.Get().OverrideIOErrors.WithLabelValues("lock").Inc()
		return nil, fmt.Errorf("%w: acquire lock: %v", ErrOverrideIO, err)
	}
	defer lock.Release()

	path := filepath.Join(lqosDirectory, fileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		empty := &File{}
		if err := writeFile(path, empty); err != nil {
			return nil, err
		}
		metrics.Get().OverrideReloads.Inc()
		return empty, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		metrics.Get().OverrideIOErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("%w: read %s: %v", ErrOverrideIO, path, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		metrics.Get().OverrideIOErrors.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("%w: parse %s: %v", ErrOverrideIO, path, err)
	}
	metrics.Get().OverrideReloads.Inc()
	logging.OverrideLog("info", "loaded %d persistent devices, %d circuit adjustments, %d network adjustments from %s",
		len(f.PersistentDevices), len(f.CircuitAdjustments), len(f.NetworkAdjustments), path)
	return &f, nil
}

// Save writes the override file back to lqosDirectory under an exclusive
// advisory lock.
func (f *File) Save(lqosDirectory string) error {
	lock, err := acquireLock(lqosDirectory)
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrOverrideIO, err)
	}
	defer lock.Release()

	return writeFile(filepath.Join(lqosDirectory, fileName), f)
}

func writeFile(path string, f *File) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		metrics.Get().OverrideIOErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("%w: encode %s: %v", ErrOverrideIO, path, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		metrics.Get().OverrideIOErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("%w: write %s: %v", ErrOverrideIO, path, err)
	}
	return nil
}

// AddPersistentDevice adds or replaces a device by DeviceID. Reports whether
// anything changed.
func (f *File) AddPersistentDevice(d ShapedDevice) bool {
	for _, existing := range f.PersistentDevices {
		if existing.DeviceID == d.DeviceID && reflect.DeepEqual(existing, d) {
			return false
		}
	}
	f.removePersistentDeviceByDeviceID(d.DeviceID)
	f.PersistentDevices = append(f.PersistentDevices, d)
	return true
}

// RemovePersistentDevicesByCircuit removes every device on circuitID and
// reports how many were removed.
func (f *File) RemovePersistentDevicesByCircuit(circuitID string) int {
	before := len(f.PersistentDevices)
	f.PersistentDevices = filterDevices(f.PersistentDevices, func(d ShapedDevice) bool {
		return d.CircuitID != circuitID
	})
	return before - len(f.PersistentDevices)
}

// RemovePersistentDevicesByDevice removes every device matching deviceID and
// reports how many were removed.
func (f *File) RemovePersistentDevicesByDevice(deviceID string) int {
	before := len(f.PersistentDevices)
	f.PersistentDevices = filterDevices(f.PersistentDevices, func(d ShapedDevice) bool {
		return d.DeviceID != deviceID
	})
	return before - len(f.PersistentDevices)
}

func (f *File) removePersistentDeviceByDeviceID(deviceID string) {
	f.PersistentDevices = filterDevices(f.PersistentDevices, func(d ShapedDevice) bool {
		return d.DeviceID != deviceID
	})
}

func filterDevices(in []ShapedDevice, keep func(ShapedDevice) bool) []ShapedDevice {
	out := in[:0]
	for _, d := range in {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// AddCircuitAdjustment appends a circuit adjustment entry.
func (f *File) AddCircuitAdjustment(a CircuitAdjustment) {
	f.CircuitAdjustments = append(f.CircuitAdjustments, a)
}

// RemoveCircuitAdjustment removes the entry at index. Reports whether it
// existed.
func (f *File) RemoveCircuitAdjustment(index int) bool {
	if index < 0 || index >= len(f.CircuitAdjustments) {
		return false
	}
	f.CircuitAdjustments = append(f.CircuitAdjustments[:index], f.CircuitAdjustments[index+1:]...)
	return true
}

// AddNetworkAdjustment appends a network adjustment entry.
func (f *File) AddNetworkAdjustment(a NetworkAdjustment) {
	f.NetworkAdjustments = append(f.NetworkAdjustments, a)
}

// RemoveNetworkAdjustment removes the entry at index. Reports whether it
// existed.
func (f *File) RemoveNetworkAdjustment(index int) bool {
	if index < 0 || index >= len(f.NetworkAdjustments) {
		return false
	}
	f.NetworkAdjustments = append(f.NetworkAdjustments[:index], f.NetworkAdjustments[index+1:]...)
	return true
}
