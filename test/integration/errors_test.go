package integration_tests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/api"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/plugin/emulated"
	"github.com/foundriesio/fwup/pkg/release"
)

// TestErrors verifies the error kinds callers branch on in specific
// refusal situations.
func TestErrors(t *testing.T) {
	it := newIntegrationTest(t)
	reader := it.deviceSpec("Example Reader", "usb:02", "4.0.0")
	reader.Flags = "updatable,locked"
	it.setDevices(it.deviceSpec("Example Hub", "usb:01", "1.2.0"), reader)
	it.setReleases()

	hubID := device.NewID("usb:01")

	_, err := api.GetDevice(it.ctx, it.config, "no-such-device")
	expectErr(t, err, errdefs.IsNotFound, "not-found")

	err = api.Install(it.ctx, it.config, "no-such-device", "")
	expectErr(t, err, errdefs.IsNotFound, "not-found")

	// Nothing published for the hub yet
	err = api.Install(it.ctx, it.config, hubID, "")
	expectErr(t, err, errdefs.IsNotFound, "not-found")

	foreign := it.newRelease("2.0.0", "usb:01", release.Requirement{
		Kind: release.KindVendorID, Op: release.OpEQ, Value: "0xbeef",
	})
	it.setReleases(
		it.newRelease("1.2.0", "usb:01"),
		it.newRelease("1.0.0", "usb:01"),
		foreign,
		it.newRelease("4.1.0", "usb:02"),
	)

	// Version that was never published
	err = api.Install(it.ctx, it.config, hubID, "3.0.0")
	expectErr(t, err, errdefs.IsNotFound, "not-found")

	// Same version without the reinstall flag
	err = api.Install(it.ctx, it.config, hubID, "1.2.0")
	expectErr(t, err, errdefs.IsNothingToDo, "nothing-to-do")

	// Downgrade without the allow-older flag
	err = api.Install(it.ctx, it.config, hubID, "1.0.0")
	expectErr(t, err, errdefs.IsNotSupported, "not-supported")

	// Vendor identity never matches, not even with force
	err = api.Install(it.ctx, it.config, hubID, "2.0.0", api.WithForce(true))
	expectErr(t, err, errdefs.IsNotSupported, "not-supported")

	// Locked device refuses to install
	err = api.Install(it.ctx, it.config, device.NewID("usb:02"), "4.1.0")
	expectErr(t, err, errdefs.IsNotSupported, "not-supported")

	// Blob install from a payload that is not there
	err = api.InstallBlob(it.ctx, it.config, hubID, filepath.Join(it.tempDir, "no-such.bin"))
	if err == nil {
		t.Fatal("InstallBlob succeeded but was expected to fail")
	}

	// Bundle that is not a bundle
	path := filepath.Join(it.tempDir, "garbage.fwbundle")
	checkErr(t, os.WriteFile(path, []byte("not a manifest"), 0644))
	err = api.InstallBundle(it.ctx, it.config, path)
	expectErr(t, err, errdefs.IsInvalidData, "invalid-data")

	// Refused installs never reach the write path, so none of the
	// attempts above left a record behind
	_, err = api.GetResults(it.ctx, it.config, hubID)
	expectErr(t, err, errdefs.IsNotFound, "not-found")
	assert.Empty(t, it.history())
}

// TestVerificationFailure scripts a device that comes back from a write
// running something other than what was flashed. The install must fail
// with the verification kind and the record must show the version the
// device actually reports.
func TestVerificationFailure(t *testing.T) {
	it := newIntegrationTest(t)
	it.setDevices(it.deviceSpec("Example Hub", "usb:01", "1.0.0"))
	it.setReleases(it.newRelease("1.1.0", "usb:01"))
	it.rescriptDevice("usb:01", emulated.Behavior{ReadbackVersion: "0.9.9"})

	hubID := device.NewID("usb:01")
	err := api.Install(it.ctx, it.config, hubID, "1.1.0")
	expectErr(t, err, errdefs.IsVerificationFailed, "verification-failed")

	res, err := api.GetResults(it.ctx, it.config, hubID)
	checkErr(t, err)
	assert.Equal(t, history.OutcomeFailed, res.Outcome)
	assert.Equal(t, "1.0.0", res.OldVersion)
	assert.Equal(t, "0.9.9", res.NewVersion)
	assert.Contains(t, res.Error, "reports version 0.9.9")
}
