package integration_tests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/release"
)

type bundleComponent struct {
	ID      string           `json:"id"`
	Release *release.Release `json:"release"`
	Payload []byte           `json:"payload"`
}

func (it *integrationTest) writeBundle(name string, comps ...bundleComponent) string {
	raw, err := json.Marshal(map[string][]bundleComponent{"components": comps})
	checkErr(it.t, err)
	path := filepath.Join(it.tempDir, name)
	checkErr(it.t, os.WriteFile(path, raw, 0644))
	return path
}

// TestBundleUpdate installs a multi-component bundle across a composite
// dock, with one member already running its component's version.
func TestBundleUpdate(t *testing.T) {
	it := newIntegrationTest(t)

	hub := it.deviceSpec("Dock Hub", "usb:10", "1.0.0")
	hub.CompositeID = "dock0"
	audio := it.deviceSpec("Dock Audio", "usb:11", "3.0.0")
	audio.CompositeID = "dock0"
	audio.ParentPhysicalID = "usb:10"
	nic := it.deviceSpec("Dock NIC", "usb:12", "5.0.0")
	nic.CompositeID = "dock0"
	nic.ParentPhysicalID = "usb:10"
	it.setDevices(hub, audio, nic)

	path := it.writeBundle("dock-refresh.fwbundle",
		bundleComponent{ID: "audio", Release: it.newRelease("3.1.0", "usb:11"), Payload: []byte("3.1.0")},
		bundleComponent{ID: "hub", Release: it.newRelease("2.0.0", "usb:10"), Payload: []byte("2.0.0")},
		bundleComponent{ID: "nic", Release: it.newRelease("5.0.0", "usb:12"), Payload: []byte("5.0.0")},
	)
	checkErr(t, api.InstallBundle(it.ctx, it.config, path))

	recs := it.history()
	if len(recs) != 2 {
		t.Fatalf("Number of history records (%d) does not match expected (2)", len(recs))
	}
	for _, rec := range recs {
		assert.Equal(t, history.OutcomeSuccess, rec.Outcome)
	}

	res, err := api.GetResults(it.ctx, it.config, device.NewID("usb:10"))
	checkErr(t, err)
	assert.Equal(t, "2.0.0", res.NewVersion)
	res, err = api.GetResults(it.ctx, it.config, device.NewID("usb:11"))
	checkErr(t, err)
	assert.Equal(t, "3.1.0", res.NewVersion)

	// The member already at its component's version was skipped
	_, err = api.GetResults(it.ctx, it.config, device.NewID("usb:12"))
	expectErr(t, err, errdefs.IsNotFound, "not-found")

	// A bundle for hardware that is not present refuses cleanly
	path = it.writeBundle("other-dock.fwbundle",
		bundleComponent{ID: "hub", Release: it.newRelease("9.0.0", "usb:99"), Payload: []byte("9.0.0")},
	)
	err = api.InstallBundle(it.ctx, it.config, path)
	expectErr(t, err, errdefs.IsNothingToDo, "nothing-to-do")
}
