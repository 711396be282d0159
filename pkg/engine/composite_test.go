// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fwup/pkg/device"
)

// hookPlugin counts composite hook invocations.
type hookPlugin struct {
	prepares int
	cleanups int
}

func (p *hookPlugin) Name() string                                       { return "hooks" }
func (p *hookPlugin) Coldplug(context.Context) ([]*device.Device, error) { return nil, nil }
func (p *hookPlugin) CompositePrepare(context.Context, []*device.Device) error {
	p.prepares++
	return nil
}
func (p *hookPlugin) CompositeCleanup(context.Context, []*device.Device) error {
	p.cleanups++
	return nil
}

func compositePair() (*device.Registry, *device.Device, *device.Device) {
	reg := device.NewRegistry()
	a := device.New("usb:00", "hub", "hooks", "USB\\VID_1&PID_1")
	a.CompositeID = "dock0"
	b := device.New("usb:00:01", "audio", "hooks", "USB\\VID_1&PID_2")
	b.CompositeID = "dock0"
	reg.Add(a)
	reg.Add(b)
	return reg, a, b
}

func TestCoordinator_OncePerPlannedBatch(t *testing.T) {
	reg, a, b := compositePair()
	plug := &hookPlugin{}
	coord := NewCoordinator(reg)
	ctx := context.Background()

	coord.Plan([]*device.Device{a, b})

	require.Nil(t, coord.Enter(ctx, a, plug))
	require.Equal(t, 1, plug.prepares)
	// Second member joins an already prepared group.
	require.Nil(t, coord.Enter(ctx, b, plug))
	require.Equal(t, 1, plug.prepares)

	// Cleanup waits for the last member.
	require.Nil(t, coord.Leave(ctx, a, plug))
	require.Equal(t, 0, plug.cleanups)
	require.Nil(t, coord.Leave(ctx, b, plug))
	require.Equal(t, 1, plug.cleanups)

	// A later batch prepares again.
	require.Nil(t, coord.Enter(ctx, a, plug))
	require.Equal(t, 2, plug.prepares)
	require.Nil(t, coord.Leave(ctx, a, plug))
	require.Equal(t, 2, plug.cleanups)
}

func TestCoordinator_UnplannedSingleInstall(t *testing.T) {
	reg, a, _ := compositePair()
	plug := &hookPlugin{}
	coord := NewCoordinator(reg)
	ctx := context.Background()

	require.Nil(t, coord.Enter(ctx, a, plug))
	require.Nil(t, coord.Leave(ctx, a, plug))
	require.Equal(t, 1, plug.prepares)
	require.Equal(t, 1, plug.cleanups)
}

func TestCoordinator_DiscardReleasesTheGroup(t *testing.T) {
	reg, a, b := compositePair()
	plug := &hookPlugin{}
	coord := NewCoordinator(reg)
	ctx := context.Background()

	coord.Plan([]*device.Device{a, b})
	require.Nil(t, coord.Enter(ctx, a, plug))
	require.Nil(t, coord.Leave(ctx, a, plug))
	require.Equal(t, 0, plug.cleanups)

	// b never installs; withdrawing it must trigger the cleanup.
	coord.Discard(ctx, b, plug)
	require.Equal(t, 1, plug.cleanups)
	// Withdrawing again is harmless.
	coord.Discard(ctx, b, plug)
	require.Equal(t, 1, plug.cleanups)
}

func TestCoordinator_SoloDeviceActsAsOwnGroup(t *testing.T) {
	reg := device.NewRegistry()
	solo := device.New("usb:05", "solo", "hooks", "USB\\VID_9&PID_9")
	reg.Add(solo)
	plug := &hookPlugin{}
	coord := NewCoordinator(reg)
	ctx := context.Background()

	require.Nil(t, coord.Enter(ctx, solo, plug))
	require.Nil(t, coord.Leave(ctx, solo, plug))
	require.Equal(t, 1, plug.prepares)
	require.Equal(t, 1, plug.cleanups)
}
