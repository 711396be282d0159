package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/plugin/emulated"
)

// TestUpdatePasses runs the update-everything pass a daemon performs,
// advancing the emulated fleet between passes the way re-enumerated
// hardware reports the firmware it was given. One device later turns
// sour and must not drag the rest of the fleet down with it.
func TestUpdatePasses(t *testing.T) {
	it := newIntegrationTest(t)
	it.setDevices(
		it.deviceSpec("Example Dock", "usb:01", "1.0.0"),
		it.deviceSpec("Example Mouse", "usb:02", "2.0.0"),
		it.deviceSpec("Example Webcam", "usb:03", "5.1.0"),
	)
	it.setReleases(
		it.newRelease("1.2.0", "usb:01"),
		it.newRelease("2.1.0", "usb:02"),
	)

	// First pass updates the dock and the mouse; nothing is published
	// for the webcam
	summary := it.updatePass()
	assert.Len(t, summary.Updated, 2)
	assert.Empty(t, summary.UpToDate)
	assert.Len(t, summary.NoUpdate, 1)
	assert.Empty(t, summary.Failed)
	it.advanceUpdated(summary)

	// Second pass finds everything current
	summary = it.updatePass()
	assert.Empty(t, summary.Updated)
	assert.Len(t, summary.UpToDate, 2)
	assert.Len(t, summary.NoUpdate, 1)

	// A newer dock release appears, but now its flash misbehaves
	it.setReleases(
		it.newRelease("1.2.0", "usb:01"),
		it.newRelease("1.4.0", "usb:01"),
		it.newRelease("2.1.0", "usb:02"),
	)
	it.rescriptDevice("usb:01", emulated.Behavior{FailWrite: "flash bank refused the write"})

	summary = it.updatePass()
	assert.Empty(t, summary.Updated)
	assert.Len(t, summary.UpToDate, 1)
	assert.Len(t, summary.Failed, 1)
	assert.Equal(t, "Example Dock", summary.Failed[0].DeviceName)
	assert.Equal(t, "1.4.0", summary.Failed[0].NewVersion)

	res, err := api.GetResults(it.ctx, it.config, device.NewID("usb:01"))
	checkErr(t, err)
	assert.Equal(t, history.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, "flash bank refused the write")

	// The dock recovers and the next pass picks it back up
	it.rescriptDevice("usb:01", emulated.Behavior{})
	summary = it.updatePass()
	assert.Len(t, summary.Updated, 1)
	assert.Equal(t, "Example Dock", summary.Updated[0].DeviceName)
	it.advanceUpdated(summary)

	summary = it.updatePass()
	assert.Empty(t, summary.Updated)
	assert.Empty(t, summary.Failed)
	assert.Len(t, summary.UpToDate, 2)
}

func (it *integrationTest) updatePass() *api.UpdateSummary {
	summary, err := api.Update(it.ctx, it.config)
	checkErr(it.t, err)
	return summary
}

// advanceUpdated moves every updated device's spec to the version it
// was just given, as re-enumerating hardware would.
func (it *integrationTest) advanceUpdated(summary *api.UpdateSummary) {
	for _, res := range summary.Updated {
		for i := range it.specs {
			if device.NewID(it.specs[i].PhysicalID) == res.DeviceID {
				it.specs[i].Version = res.NewVersion
			}
		}
	}
	it.writeDevices()
}
