// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/plugin"
)

// Coordinator makes composite prepare and cleanup hooks run exactly
// once per group for a batch, no matter how many member devices are
// installed individually. Entering an already-prepared group is a
// no-op, so the single-device path shares the hooks safely.
type Coordinator struct {
	registry *device.Registry

	mu     sync.Mutex
	groups map[string]*groupState
}

// groupState serializes hook execution within one group. Two members
// of the same group never run prepare or cleanup concurrently.
type groupState struct {
	mu       sync.Mutex
	prepared bool
	pending  int
	planned  map[string]bool
}

func NewCoordinator(registry *device.Registry) *Coordinator {
	return &Coordinator{registry: registry, groups: map[string]*groupState{}}
}

// groupKey treats a device without a composite ID as its own group of
// one, so the hooks still bracket single-device installs.
func groupKey(dev *device.Device) string {
	if dev.CompositeID != "" {
		return dev.CompositeID
	}
	return dev.ID
}

func (c *Coordinator) group(key string) *groupState {
	c.mu.Lock()
	defer c.mu.Unlock()
	gs, ok := c.groups[key]
	if !ok {
		gs = &groupState{planned: map[string]bool{}}
		c.groups[key] = gs
	}
	return gs
}

// members resolves the current group membership from the registry.
func (c *Coordinator) members(dev *device.Device) []*device.Device {
	if dev.CompositeID != "" {
		if devs := c.registry.Composite(dev.CompositeID); len(devs) > 0 {
			return devs
		}
	}
	return []*device.Device{dev}
}

// Plan declares the members a batch is about to install, so cleanup
// waits for the last of them. Unplanned single installs skip this and
// get a group lifetime of exactly one member.
func (c *Coordinator) Plan(devs []*device.Device) {
	for _, dev := range devs {
		gs := c.group(groupKey(dev))
		gs.mu.Lock()
		if !gs.planned[dev.ID] {
			gs.planned[dev.ID] = true
			gs.pending++
		}
		gs.mu.Unlock()
	}
}

// Enter joins the device's group, running the plugin's prepare hook if
// this is the first member to arrive.
func (c *Coordinator) Enter(ctx context.Context, dev *device.Device, plug plugin.Plugin) error {
	gs := c.group(groupKey(dev))
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.planned[dev.ID] {
		delete(gs.planned, dev.ID)
	} else {
		gs.pending++
	}
	if gs.prepared {
		return nil
	}
	if preparer, ok := plug.(plugin.CompositePreparer); ok {
		if err := preparer.CompositePrepare(ctx, c.members(dev)); err != nil {
			gs.pending--
			return err
		}
	}
	gs.prepared = true
	return nil
}

// Leave marks the device's install finished. The cleanup hook runs
// once the group has no pending members left, after which the group
// resets so a later batch prepares again. Group states are kept
// around; a stale one costs a few bytes, while dropping one mid-cleanup
// would let a concurrent Enter race the hook.
func (c *Coordinator) Leave(ctx context.Context, dev *device.Device, plug plugin.Plugin) error {
	gs := c.group(groupKey(dev))
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.pending > 0 {
		gs.pending--
	}
	if gs.pending > 0 || !gs.prepared {
		return nil
	}
	gs.prepared = false
	if cleaner, ok := plug.(plugin.CompositeCleaner); ok {
		return cleaner.CompositeCleanup(ctx, c.members(dev))
	}
	return nil
}

// Discard withdraws a planned member that will never install, e.g.
// because an earlier member of the batch failed. Cleanup still runs
// when the withdrawal empties the group.
func (c *Coordinator) Discard(ctx context.Context, dev *device.Device, plug plugin.Plugin) {
	key := groupKey(dev)
	gs := c.group(key)
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.planned[dev.ID] {
		delete(gs.planned, dev.ID)
		gs.pending--
	}
	if gs.pending > 0 || !gs.prepared {
		return
	}
	gs.prepared = false
	if cleaner, ok := plug.(plugin.CompositeCleaner); ok {
		if err := cleaner.CompositeCleanup(ctx, c.members(dev)); err != nil {
			log.Warn().Err(err).Str("group", key).Msg("Composite cleanup failed for discarded group")
		}
	}
}
