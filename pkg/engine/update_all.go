// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/progress"
	"github.com/foundriesio/fwup/pkg/release"
)

type (
	// DeviceResult is one device's line in a batch summary.
	DeviceResult struct {
		DeviceID   string `json:"device_id"`
		DeviceName string `json:"device_name"`
		Version    string `json:"version,omitempty"`
		NewVersion string `json:"new_version,omitempty"`
		Error      string `json:"error,omitempty"`
	}

	// UpdateSummary buckets every considered device by what happened to
	// it, so one failing device never hides the rest of the batch.
	UpdateSummary struct {
		Updated     []DeviceResult `json:"updated,omitempty"`
		UpToDate    []DeviceResult `json:"up_to_date,omitempty"`
		NoUpdate    []DeviceResult `json:"no_update,omitempty"`
		NeedsAction []DeviceResult `json:"needs_action,omitempty"`
		Failed      []DeviceResult `json:"failed,omitempty"`
	}
)

// UpdateAll updates every updatable device that has a newer installable
// release, or only the named devices when deviceIDs narrows the batch.
// Device failures are collected, not fatal; the returned error is
// reserved for problems with the batch itself, such as a cycle in the
// declared device topology or an unknown device ID.
func (e *Engine) UpdateAll(ctx context.Context, flags InstallFlags, cb progress.Callback, deviceIDs ...string) (*UpdateSummary, error) {
	summary := &UpdateSummary{}

	only := map[string]bool{}
	for _, id := range deviceIDs {
		if _, err := e.registry.Get(id); err != nil {
			return nil, err
		}
		only[id] = true
	}

	var candidates []*device.Device
	relByID := map[string]*release.Release{}

	for _, dev := range e.registry.List() {
		if len(only) > 0 && !only[dev.ID] {
			continue
		}
		if flags.Has(InstallOnlyEmulated) && !dev.HasFlag(device.FlagEmulated) {
			continue
		}
		version, _ := dev.GetVersion()
		result := DeviceResult{DeviceID: dev.ID, DeviceName: dev.Name, Version: version}
		if dev.HasFlag(device.FlagLocked) {
			result.Error = "device is locked"
			summary.NeedsAction = append(summary.NeedsAction, result)
			continue
		}
		if !dev.HasFlag(device.FlagUpdatable) {
			continue
		}
		rel, err := e.pickNewest(dev, flags)
		switch {
		case err == nil:
			candidates = append(candidates, dev)
			relByID[dev.ID] = rel
		case errdefs.IsNothingToDo(err):
			summary.UpToDate = append(summary.UpToDate, result)
		case errdefs.IsNeedsUserAction(err):
			result.Error = err.Error()
			summary.NeedsAction = append(summary.NeedsAction, result)
		default:
			result.Error = err.Error()
			summary.NoUpdate = append(summary.NoUpdate, result)
		}
	}

	// Parents install before children. A declared cycle aborts the whole
	// batch up front, before any device is written.
	ordered, err := SortByTopology(candidates)
	if err != nil {
		return nil, err
	}
	e.coord.Plan(ordered)

	for _, dev := range ordered {
		rel := relByID[dev.ID]
		version, _ := dev.GetVersion()
		result := DeviceResult{DeviceID: dev.ID, DeviceName: dev.Name, Version: version, NewVersion: rel.Version}

		payload, err := rel.LoadPayload(flags.Has(InstallForce))
		if err == nil {
			err = e.installRelease(ctx, dev, rel, payload, flags, cb)
		}
		switch {
		case err == nil:
			summary.Updated = append(summary.Updated, result)
		case errdefs.IsNothingToDo(err):
			e.coord.Discard(ctx, dev, e.plugins[dev.Plugin])
			summary.UpToDate = append(summary.UpToDate, result)
		case errdefs.IsNeedsUserAction(err):
			e.coord.Discard(ctx, dev, e.plugins[dev.Plugin])
			result.Error = err.Error()
			summary.NeedsAction = append(summary.NeedsAction, result)
		default:
			e.coord.Discard(ctx, dev, e.plugins[dev.Plugin])
			result.Error = err.Error()
			summary.Failed = append(summary.Failed, result)
			log.Warn().Err(err).Str("device", dev.ID).Msg("Device update failed, continuing with the batch")
		}
	}
	return summary, nil
}
