package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/progress"
)

// TestInstallFlow walks one emulated device through the whole verb
// surface: enumeration, upgrade discovery, install with progress
// reporting, history, and the reinstall guard.
func TestInstallFlow(t *testing.T) {
	it := newIntegrationTest(t)
	it.setDevices(it.deviceSpec("Example Hub", "usb:01", "1.0.0"))
	it.setReleases(it.newRelease("1.1.0", "usb:01"))

	devs, err := api.GetDevices(it.ctx, it.config)
	checkErr(t, err)
	if len(devs) != 1 {
		t.Fatalf("Number of devices (%d) does not match expected (1)", len(devs))
	}
	hub := devs[0]
	assert.Equal(t, device.NewID("usb:01"), hub.ID)
	assert.Equal(t, "Example Hub", hub.Name)
	assert.True(t, hub.HasFlag(device.FlagUpdatable))
	assert.True(t, hub.HasFlag(device.FlagSupported))

	updates, err := api.GetUpdates(it.ctx, it.config)
	checkErr(t, err)
	if len(updates) != 1 {
		t.Fatalf("Number of upgradable devices (%d) does not match expected (1)", len(updates))
	}
	assert.Equal(t, hub.ID, updates[0].Device.ID)
	assert.Equal(t, "1.1.0", updates[0].Releases[0].Version)

	var lastPct uint
	sawWriting := false
	err = api.Install(it.ctx, it.config, hub.ID, "1.1.0",
		api.WithProgress(func(status progress.Status, pct uint) {
			if status == progress.StatusWriting {
				sawWriting = true
			}
			lastPct = pct
		}))
	checkErr(t, err)
	assert.True(t, sawWriting)
	assert.Equal(t, uint(100), lastPct)

	recs := it.history()
	if len(recs) != 1 {
		t.Fatalf("Number of history records (%d) does not match expected (1)", len(recs))
	}
	assert.Equal(t, history.OutcomeSuccess, recs[0].Outcome)
	assert.Equal(t, "Example Hub", recs[0].DeviceName)
	assert.Equal(t, "1.0.0", recs[0].OldVersion)
	assert.Equal(t, "1.1.0", recs[0].NewVersion)

	res, err := api.GetResults(it.ctx, it.config, hub.ID)
	checkErr(t, err)
	assert.Equal(t, recs[0].ID, res.ID)

	// The hub now runs the new firmware, so there is nothing to offer
	it.advanceDevice("usb:01", "1.1.0")

	updates, err = api.GetUpdates(it.ctx, it.config)
	checkErr(t, err)
	assert.Empty(t, updates)

	// The release is still published, just not an upgrade anymore
	rels, err := api.GetReleases(it.ctx, it.config, hub.ID)
	checkErr(t, err)
	if len(rels) != 1 {
		t.Fatalf("Number of releases (%d) does not match expected (1)", len(rels))
	}
	assert.Equal(t, "1.1.0", rels[0].Version)

	err = api.Install(it.ctx, it.config, hub.ID, "")
	expectErr(t, err, errdefs.IsNothingToDo, "nothing-to-do")

	// Reinstalling the running version is an explicit decision
	err = api.Install(it.ctx, it.config, hub.ID, "1.1.0", api.WithAllowReinstall(true))
	checkErr(t, err)
	recs = it.history()
	if len(recs) != 2 {
		t.Fatalf("Number of history records (%d) does not match expected (2)", len(recs))
	}

	// Reporting hands over both attempts exactly once
	reported, err := api.ReportHistory(it.ctx, it.config)
	checkErr(t, err)
	assert.Len(t, reported, 2)
	for _, rec := range it.history() {
		assert.True(t, rec.Reported)
	}
	reported, err = api.ReportHistory(it.ctx, it.config)
	checkErr(t, err)
	assert.Empty(t, reported)

	checkErr(t, api.ClearHistory(it.ctx, it.config))
	assert.Empty(t, it.history())
}
