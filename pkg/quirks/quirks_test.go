// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package quirks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fwup/pkg/device"
)

func writeQuirk(t *testing.T, dir, name, content string) {
	t.Helper()
	require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestQuirks_ApplyByInstanceID(t *testing.T) {
	dir := t.TempDir()
	writeQuirk(t, dir, "example.quirk", `
[USB\VID_273F&PID_1004]
Name = Example Touchpad
Plugin = emulated
Flags = updatable,supported
VersionFormat = triplet
CompositeId = dock0
`)
	db, err := Load(dir)
	require.Nil(t, err)
	require.Equal(t, 1, db.Len())

	dev := device.New("usb:01:04", "Unknown Device", "", `USB\VID_273F&PID_1004`)
	db.Apply(dev)

	require.Equal(t, "Example Touchpad", dev.Name)
	require.Equal(t, "emulated", dev.Plugin)
	require.Equal(t, device.VersionFormatTriplet, dev.VersionFormat)
	require.Equal(t, "dock0", dev.CompositeID)
	require.True(t, dev.HasFlag(device.FlagUpdatable))
	require.True(t, dev.HasFlag(device.FlagSupported))
}

func TestQuirks_ApplyByGUID(t *testing.T) {
	dir := t.TempDir()
	guid := device.GUIDFromInstanceID(`USB\VID_273F&PID_1004`)
	writeQuirk(t, dir, "guid.quirk", "["+guid+"]\nBranch = lts\n")

	db, err := Load(dir)
	require.Nil(t, err)

	dev := device.New("usb:01:04", "Example", "emulated", `USB\VID_273F&PID_1004`)
	db.Apply(dev)
	require.Equal(t, "lts", dev.Branch)
}

func TestQuirks_LaterDirOverridesAndNegatesFlags(t *testing.T) {
	base := t.TempDir()
	site := t.TempDir()
	writeQuirk(t, base, "a.quirk", `
[USB\VID_273F&PID_1004]
Plugin = emulated
Flags = updatable,internal
`)
	writeQuirk(t, site, "b.quirk", `
[USB\VID_273F&PID_1004]
Flags = ~internal
`)
	db, err := Load(base, site)
	require.Nil(t, err)

	plugin, ok := db.Lookup(`USB\VID_273F&PID_1004`, KeyPlugin)
	require.True(t, ok)
	require.Equal(t, "emulated", plugin)

	dev := device.New("usb:01:04", "Example", "", `USB\VID_273F&PID_1004`)
	db.Apply(dev)
	require.Equal(t, "emulated", dev.Plugin)
	require.True(t, dev.HasFlag(device.FlagUpdatable))
	require.False(t, dev.HasFlag(device.FlagInternal), "site quirk must clear the flag")
}

func TestQuirks_MissingDirIsFine(t *testing.T) {
	db, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Nil(t, err)
	require.Equal(t, 0, db.Len())

	// Applying an empty DB changes nothing.
	dev := device.New("usb:01:04", "Example", "emulated")
	db.Apply(dev)
	require.Equal(t, "Example", dev.Name)
}
