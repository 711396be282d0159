// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package engine sequences firmware installs: it checks a release
// against a device, runs the detach/write/attach/reload state machine,
// coordinates composite groups, and records every attempt in history.
package engine

import (
	"context"
	"time"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/plugin"
	"github.com/foundriesio/fwup/pkg/progress"
	"github.com/foundriesio/fwup/pkg/release"
)

type (
	// ActionName names one state of the install state machine.
	ActionName string

	// ActionState is one state of the install state machine.
	ActionState interface {
		Name() ActionName
		Execute(ctx context.Context, installCtx *InstallContext) error
	}

	// InstallFlags are the caller-resolved policy switches of one
	// install attempt.
	InstallFlags uint32

	// InstallContext binds exactly one device to exactly one release
	// for the lifetime of one install attempt.
	InstallContext struct {
		Device  *device.Device
		Release *release.Release
		Payload []byte
		Flags   InstallFlags

		Progress      *progress.Progress
		Registry      *device.Registry
		Coordinator   *Coordinator
		Plugin        plugin.Plugin
		DbPath        string
		ReplugTimeout time.Duration
		EngineVersion string

		// RecordID is the history record opened for this attempt, empty
		// when InstallNoHistory is set.
		RecordID string
		// OldVersion is the device version captured before any state ran.
		OldVersion string
		// FinalVersion is what the device reported after the install,
		// filled in by the verify state.
		FinalVersion string

		entered bool
	}
)

const (
	InstallNone InstallFlags = 0
	// InstallForce relaxes soft declared requirements and checksum
	// enforcement. Physical-identity checks stay in force.
	InstallForce InstallFlags = 1 << iota
	// InstallAllowOlder permits downgrades.
	InstallAllowOlder
	// InstallAllowReinstall permits reinstalling the current version.
	InstallAllowReinstall
	// InstallAllowBranchSwitch permits moving to a release from another
	// firmware branch.
	InstallAllowBranchSwitch
	// InstallNoHistory skips the durable history record.
	InstallNoHistory
	// InstallOnlyEmulated refuses to touch real hardware.
	InstallOnlyEmulated
)

// Has reports whether every bit of x is set.
func (f InstallFlags) Has(x InstallFlags) bool {
	return f&x == x
}

// awaitReplug suspends until the device re-enumerates whenever the
// previous hook flagged it as about to drop off the bus. The replugged
// device keeps its logical identity, so the context keeps pointing at
// the same object.
func (ic *InstallContext) awaitReplug(ctx context.Context) error {
	if !ic.Device.HasFlag(device.FlagWaitForReplug) {
		return nil
	}
	dev, err := ic.Registry.WaitForReplug(ctx, ic.Device, ic.ReplugTimeout)
	if err != nil {
		return err
	}
	ic.Device = dev
	return nil
}
