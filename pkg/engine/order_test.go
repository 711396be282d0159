// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

func topoDevice(name, physical, parentPhysical string) *device.Device {
	dev := device.New(physical, name, "emulated", "USB\\"+physical)
	if parentPhysical != "" {
		dev.ParentID = device.NewID(parentPhysical)
	}
	return dev
}

func names(devs []*device.Device) []string {
	out := make([]string, len(devs))
	for i, dev := range devs {
		out[i] = dev.Name
	}
	return out
}

func TestSortByTopology_ParentsFirst(t *testing.T) {
	hub := topoDevice("hub", "usb:00", "")
	audio := topoDevice("audio", "usb:00:01", "usb:00")
	mcu := topoDevice("mcu", "usb:00:02", "usb:00")
	nested := topoDevice("cam", "usb:00:01:01", "usb:00:01")

	ordered, err := SortByTopology([]*device.Device{nested, mcu, audio, hub})
	require.Nil(t, err)
	require.Equal(t, []string{"hub", "audio", "mcu", "cam"}, names(ordered))
}

func TestSortByTopology_ExternalParentIgnored(t *testing.T) {
	// The parent is not part of the install set, so its edge is not a
	// constraint.
	child := topoDevice("child", "usb:01:01", "usb:01")
	other := topoDevice("aaa", "usb:02", "")

	ordered, err := SortByTopology([]*device.Device{child, other})
	require.Nil(t, err)
	require.Equal(t, []string{"aaa", "child"}, names(ordered))
}

func TestSortByTopology_CycleIsConfigError(t *testing.T) {
	a := topoDevice("a", "usb:0a", "usb:0b")
	b := topoDevice("b", "usb:0b", "usb:0a")
	solo := topoDevice("solo", "usb:0c", "")

	_, err := SortByTopology([]*device.Device{a, b, solo})
	require.True(t, errdefs.IsInternal(err))
	require.Contains(t, err.Error(), "cycle")
}

func TestSortByTopology_EmptyAndSingle(t *testing.T) {
	ordered, err := SortByTopology(nil)
	require.Nil(t, err)
	require.Empty(t, ordered)

	solo := topoDevice("solo", "usb:0c", "")
	ordered, err = SortByTopology([]*device.Device{solo})
	require.Nil(t, err)
	require.Equal(t, []string{"solo"}, names(ordered))
}
