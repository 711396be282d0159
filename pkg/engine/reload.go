// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

type Reload struct{}

func (s *Reload) Name() ActionName { return "Verifying" }
func (s *Reload) Execute(ctx context.Context, installCtx *InstallContext) error {
	dev := installCtx.Device
	if dev.HasFlag(device.FlagNeedsActivation) ||
		dev.HasFlag(device.FlagNeedsReboot) ||
		dev.HasFlag(device.FlagNeedsShutdown) {
		// The new firmware is staged and invisible until activation or a
		// reboot, so there is nothing truthful to verify yet.
		log.Debug().Str("device", dev.ID).Msg("Verification deferred until the update takes effect")
		return nil
	}

	expected := installCtx.Release.Version
	reloader, ok := dev.Drv().(device.Reloader)
	if !ok {
		if expected != "" {
			// No way to read the device back; trust the write.
			dev.SetVersion(expected)
			installCtx.FinalVersion = expected
		}
		return nil
	}

	got, err := reloader.Reload(ctx, dev)
	if err != nil {
		return err
	}
	installCtx.FinalVersion = got
	_, format := dev.GetVersion()
	if expected != "" && device.CompareVersions(got, expected, format) != 0 {
		return errdefs.Wrapf(errdefs.ErrVerificationFailed,
			"device %s reports version %s after writing %s", dev.Name, got, expected)
	}
	dev.SetVersion(got)
	return nil
}
