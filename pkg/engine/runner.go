// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/internal/history"
	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/progress"
)

// InstallRunner drives one install attempt through its states. A state
// failure is terminal for the attempt; the device is left flagged with
// whatever mode it is actually in and the attempt is recorded, never
// rolled back by re-writing flash.
type InstallRunner struct {
	states []ActionState
}

func NewInstallRunner() *InstallRunner {
	return &InstallRunner{
		states: []ActionState{&Prepare{}, &Detach{}, &Write{}, &Attach{}, &Reload{}},
	}
}

func (sm *InstallRunner) Run(ctx context.Context, installCtx *InstallContext) error {
	dev := installCtx.Device
	installCtx.OldVersion, _ = dev.GetVersion()

	prog := installCtx.Progress
	prog.AddStep(progress.StatusLoading, 2, "prepare")
	prog.AddStep(progress.StatusDetaching, 5, "detach")
	prog.AddStep(progress.StatusWriting, 78, "write")
	prog.AddStep(progress.StatusRestarting, 5, "attach")
	prog.AddStep(progress.StatusVerifying, 10, "verify")

	if !installCtx.Flags.Has(InstallNoHistory) {
		id, err := history.Begin(installCtx.DbPath, &history.Record{
			DeviceID:   dev.ID,
			DeviceName: dev.Name,
			GUIDs:      dev.GUIDList(),
			Plugin:     dev.Plugin,
			OldVersion: installCtx.OldVersion,
			NewVersion: installCtx.Release.Version,
			ReleaseID:  installCtx.Release.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to open history record: %w", err)
		}
		installCtx.RecordID = id
	}

	dev.SetUpdateState(device.UpdateStatePending)

	var runErr error
	for _, s := range sm.states {
		// Cancellation is honored between states only; a state already
		// executing finishes on its own terms.
		if err := ctx.Err(); err != nil {
			runErr = errdefs.Wrapf(errdefs.ErrCancelled,
				"install of %s stopped before state %s", dev.Name, s.Name())
			break
		}
		log.Debug().Str("device", dev.ID).Str("state", string(s.Name())).Msg("Entering install state")
		if err := s.Execute(ctx, installCtx); err != nil {
			runErr = fmt.Errorf("failed at state %s: %w", s.Name(), err)
			break
		}
		installCtx.Progress.StepDone()
	}

	if installCtx.entered {
		if err := installCtx.Coordinator.Leave(ctx, installCtx.Device, installCtx.Plugin); err != nil {
			if runErr == nil {
				runErr = fmt.Errorf("failed at composite cleanup: %w", err)
			} else {
				log.Warn().Err(err).Str("device", dev.ID).Msg("Composite cleanup failed")
			}
		}
	}

	if runErr == nil {
		sm.finishSuccess(installCtx)
		return nil
	}
	sm.finishFailure(installCtx, runErr)
	return runErr
}

func (sm *InstallRunner) finishSuccess(installCtx *InstallContext) {
	dev := installCtx.Device
	if dev.HasFlag(device.FlagNeedsReboot) || dev.HasFlag(device.FlagNeedsShutdown) {
		dev.SetUpdateState(device.UpdateStateNeedsReboot)
	} else {
		dev.SetUpdateState(device.UpdateStateSuccess)
	}
	if installCtx.RecordID != "" {
		if err := history.Complete(installCtx.DbPath, installCtx.RecordID,
			history.OutcomeSuccess, "", installCtx.FinalVersion); err != nil {
			log.Warn().Err(err).Str("record", installCtx.RecordID).Msg("Failed to close history record")
		}
	}
	installCtx.Progress.Finish()
	installCtx.Registry.NotifyChanged(dev)
}

func (sm *InstallRunner) finishFailure(installCtx *InstallContext, runErr error) {
	dev := installCtx.Device
	dev.SetUpdateError(runErr.Error())
	if errdefs.IsBusy(runErr) || errdefs.IsTimeout(runErr) || errdefs.IsCancelled(runErr) {
		dev.SetUpdateState(device.UpdateStateFailedTransient)
	} else {
		dev.SetUpdateState(device.UpdateStateFailed)
	}
	if installCtx.RecordID != "" {
		final := installCtx.FinalVersion
		if final == "" {
			// The device never visibly changed, so the attempt ends at
			// the version it started with.
			final = installCtx.OldVersion
		}
		if err := history.Complete(installCtx.DbPath, installCtx.RecordID,
			history.OutcomeFailed, runErr.Error(), final); err != nil {
			log.Warn().Err(err).Str("record", installCtx.RecordID).Msg("Failed to close history record")
		}
	}
	installCtx.Progress.SetStatus(progress.StatusIdle)
	installCtx.Registry.NotifyChanged(dev)
}
