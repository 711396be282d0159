package integration_tests

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml"

	"github.com/foundriesio/fwup/pkg/api"
	cfg "github.com/foundriesio/fwup/pkg/config"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/plugin/emulated"
	"github.com/foundriesio/fwup/pkg/release"
)

// The suite runs entirely through the disk surfaces a deployment uses:
// a config directory, an emulated device spec file and a release index,
// with every operation going through the pkg/api verbs.
type integrationTest struct {
	t       *testing.T
	tempDir string
	config  *cfg.Config
	ctx     context.Context
	specs   []emulated.DeviceSpec
}

func newIntegrationTest(t *testing.T) *integrationTest {
	tempDir := t.TempDir()
	it := &integrationTest{t: t, tempDir: tempDir, ctx: context.Background()}

	tree, err := toml.TreeFromMap(nil)
	checkErr(t, err)
	tree.Set(cfg.StorageDirKey, tempDir)
	tree.Set(cfg.BusRetryDelayKey, "1")
	tree.Set(emulated.DevicesPathKey, it.devicesPath())
	raw, err := toml.Marshal(tree)
	checkErr(t, err)
	checkErr(t, os.WriteFile(filepath.Join(tempDir, "fwup.toml"), raw, 0644))

	config, err := cfg.NewConfig([]string{tempDir})
	if err != nil {
		t.Fatalf("Unable to create config: %v", err)
	}
	it.config = config
	return it
}

func (it *integrationTest) devicesPath() string {
	return filepath.Join(it.tempDir, "devices.json")
}

// setDevices declares the emulated fleet. The specs are kept around so
// tests can advance a device after a successful install, the way real
// hardware re-enumerates running the firmware it was given.
func (it *integrationTest) setDevices(specs ...emulated.DeviceSpec) {
	it.specs = specs
	it.writeDevices()
}

func (it *integrationTest) writeDevices() {
	raw, err := json.Marshal(it.specs)
	checkErr(it.t, err)
	checkErr(it.t, os.WriteFile(it.devicesPath(), raw, 0644))
}

func (it *integrationTest) advanceDevice(physicalID, version string) {
	for i := range it.specs {
		if it.specs[i].PhysicalID == physicalID {
			it.specs[i].Version = version
			it.writeDevices()
			return
		}
	}
	it.t.Fatalf("No spec for device %s", physicalID)
}

func (it *integrationTest) rescriptDevice(physicalID string, b emulated.Behavior) {
	for i := range it.specs {
		if it.specs[i].PhysicalID == physicalID {
			it.specs[i].Behavior = b
			it.writeDevices()
			return
		}
	}
	it.t.Fatalf("No spec for device %s", physicalID)
}

func (it *integrationTest) deviceSpec(name, physicalID, version string) emulated.DeviceSpec {
	return emulated.DeviceSpec{
		PhysicalID:    physicalID,
		Name:          name,
		VendorID:      "0x1234",
		InstanceIDs:   []string{"TEST\\" + physicalID},
		Version:       version,
		VersionFormat: "triplet",
	}
}

func (it *integrationTest) setReleases(rels ...*release.Release) {
	raw, err := json.Marshal(map[string][]*release.Release{"releases": rels})
	checkErr(it.t, err)
	checkErr(it.t, os.WriteFile(filepath.Join(it.tempDir, "releases.json"), raw, 0644))
}

// newRelease publishes a payload whose bytes are the version string,
// which is what the emulated writer expects, and returns a release
// reaching it through a location relative to the index file.
func (it *integrationTest) newRelease(version, physicalID string, reqs ...release.Requirement) *release.Release {
	name := fmt.Sprintf("fw-%s-%s.bin", physicalID, version)
	checkErr(it.t, os.WriteFile(filepath.Join(it.tempDir, name), []byte(version), 0644))
	sum := sha256.Sum256([]byte(version))
	return &release.Release{
		ID:           "rel-" + physicalID + "-" + version,
		Version:      version,
		GUIDs:        []string{device.GUIDFromInstanceID("TEST\\" + physicalID)},
		Locations:    []string{name},
		Checksums:    []string{hex.EncodeToString(sum[:])},
		Requirements: reqs,
	}
}

func (it *integrationTest) history() []api.Record {
	recs, err := api.GetHistory(it.ctx, it.config)
	checkErr(it.t, err)
	return recs
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectErr(t *testing.T, err error, matches func(error) bool, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if !matches(err) {
		t.Fatalf("expected %s error, got: %v", want, err)
	}
}
