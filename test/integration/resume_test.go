package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
)

// TestInterruptedInstallRecovery seeds the kind of pending record a
// crash mid-write leaves behind and verifies the next engine to come up
// closes it, without touching attempts that completed normally.
func TestInterruptedInstallRecovery(t *testing.T) {
	it := newIntegrationTest(t)
	it.setDevices(it.deviceSpec("Example Hub", "usb:01", "1.0.0"))
	it.setReleases(it.newRelease("1.1.0", "usb:01"))

	hubID := device.NewID("usb:01")
	checkErr(t, api.Install(it.ctx, it.config, hubID, "1.1.0"))
	it.advanceDevice("usb:01", "1.1.0")

	// A crash between opening the attempt and closing it leaves a
	// pending row
	_, err := history.Begin(it.config.GetSqlDbPath(), &history.Record{
		DeviceID:   hubID,
		DeviceName: "Example Hub",
		OldVersion: "1.1.0",
		NewVersion: "1.2.0",
		ReleaseID:  "rel-usb:01-1.2.0",
	})
	checkErr(t, err)

	// Any verb brings up an engine, and engine startup sweeps leftovers
	_, err = api.GetDevices(it.ctx, it.config)
	checkErr(t, err)

	res, err := api.GetResults(it.ctx, it.config, hubID)
	checkErr(t, err)
	assert.Equal(t, history.OutcomeFailed, res.Outcome)
	assert.Equal(t, history.InterruptedError, res.Error)
	assert.False(t, res.CompletedAt.IsZero())

	pending, err := history.Pending(it.config.GetSqlDbPath())
	checkErr(t, err)
	assert.Empty(t, pending)

	// The attempt that completed before the crash is untouched
	recs := it.history()
	if len(recs) != 2 {
		t.Fatalf("Number of history records (%d) does not match expected (2)", len(recs))
	}
	assert.Equal(t, history.OutcomeSuccess, recs[0].Outcome)
	assert.Equal(t, "1.1.0", recs[0].NewVersion)
}
