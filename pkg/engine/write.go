// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"context"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

type Write struct{}

func (s *Write) Name() ActionName { return "Writing" }
func (s *Write) Execute(ctx context.Context, installCtx *InstallContext) error {
	drv := installCtx.Device.Drv()
	writer, ok := drv.(device.FirmwareWriter)
	if !ok {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"plugin %s cannot write firmware to device %s",
			installCtx.Device.Plugin, installCtx.Device.Name)
	}
	// A write in flight must finish or fail on its own terms; cancelling
	// mid-flash risks bricking the device, so cancellation is honored at
	// the surrounding state boundaries instead.
	wctx := context.WithoutCancel(ctx)
	if err := writer.WriteFirmware(wctx, installCtx.Device, installCtx.Payload, installCtx.Progress.Child()); err != nil {
		// Failed writes are never retried here: firmware writes are not
		// assumed idempotent. The caller may retry explicitly.
		return err
	}
	return installCtx.awaitReplug(ctx)
}
