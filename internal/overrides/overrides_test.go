package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesEmptyFileWhenMissing(t *testing.T) {
	dir := t.TempDir()

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, f.PersistentDevices)
	assert.Empty(t, f.CircuitAdjustments)
	assert.Empty(t, f.NetworkAdjustments)

	_, err = os.Stat(filepath.Join(dir, fileName))
	assert.NoError(t, err, "expected override file to be created")
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()

	f := &File{}
	maxDown := float32(50.0)
	f.AddCircuitAdjustment(CircuitAdjustment{
		Type:                 CircuitAdjustSpeed,
		CircuitID:            "c1",
		MaxDownloadBandwidth: &maxDown,
	})
	f.AddNetworkAdjustment(NetworkAdjustment{
		Type:     AdjustSiteSpeed,
		SiteName: "Tower1",
	})

	require.NoError(t, f.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded.CircuitAdjustments, 1)

	adj := loaded.CircuitAdjustments[0]
	assert.Equal(t, CircuitAdjustSpeed, adj.Type)
	assert.Equal(t, "c1", adj.CircuitID)
	require.NotNil(t, adj.MaxDownloadBandwidth)
	assert.Equal(t, float32(50.0), *adj.MaxDownloadBandwidth)

	require.Len(t, loaded.NetworkAdjustments, 1)
	assert.Equal(t, "Tower1", loaded.NetworkAdjustments[0].SiteName)
}

func TestAddPersistentDevice_ReplacesExisting(t *testing.T) {
	f := &File{}
	d1 := ShapedDevice{DeviceID: "dev1", CircuitID: "c1", DownloadMax: 10}
	d2 := ShapedDevice{DeviceID: "dev1", CircuitID: "c1", DownloadMax: 20}

	assert.True(t, f.AddPersistentDevice(d1), "expected first add to report a change")
	assert.True(t, f.AddPersistentDevice(d2), "expected replacing add to report a change")
	require.Len(t, f.PersistentDevices, 1)
	assert.Equal(t, float32(20), f.PersistentDevices[0].DownloadMax)

	assert.False(t, f.AddPersistentDevice(d2), "expected identical add to report no change")
}

func TestRemovePersistentDevicesByCircuitAndDevice(t *testing.T) {
	f := &File{}
	f.AddPersistentDevice(ShapedDevice{DeviceID: "d1", CircuitID: "c1"})
	f.AddPersistentDevice(ShapedDevice{DeviceID: "d2", CircuitID: "c1"})
	f.AddPersistentDevice(ShapedDevice{DeviceID: "d3", CircuitID: "c2"})

	assert.Equal(t, 2, f.RemovePersistentDevicesByCircuit("c1"))
	require.Len(t, f.PersistentDevices, 1)
	assert.Equal(t, "d3", f.PersistentDevices[0].DeviceID)

	assert.Equal(t, 1, f.RemovePersistentDevicesByDevice("d3"))
	assert.Empty(t, f.PersistentDevices)
}

func TestRemoveCircuitAdjustment_OutOfRange(t *testing.T) {
	f := &File{}
	f.AddCircuitAdjustment(CircuitAdjustment{Type: RemoveCircuit, CircuitID: "c1"})

	assert.False(t, f.RemoveCircuitAdjustment(5), "expected out-of-range remove to report false")
	assert.True(t, f.RemoveCircuitAdjustment(0), "expected in-range remove to report true")
	assert.Empty(t, f.CircuitAdjustments)
}

func TestRemoveNetworkAdjustment_OutOfRange(t *testing.T) {
	f := &File{}
	f.AddNetworkAdjustment(NetworkAdjustment{Type: AdjustSiteSpeed, SiteName: "s1"})

	assert.False(t, f.RemoveNetworkAdjustment(-1), "expected negative index remove to report false")
	assert.True(t, f.RemoveNetworkAdjustment(0), "expected in-range remove to report true")
}
