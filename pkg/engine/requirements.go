// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"strings"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
	"github.com/foundriesio/fwup/pkg/release"
)

// CheckRequest carries everything the requirements checker may consult.
// The registry resolves parent and sibling lookups; it is optional and
// requirements needing it fail when it is absent.
type CheckRequest struct {
	Device        *device.Device
	Release       *release.Release
	Flags         InstallFlags
	Registry      *device.Registry
	EngineVersion string
}

// Check decides whether the release may be installed on the device.
// Checks run in a fixed order and the first failure is returned
// verbatim; nothing is aggregated. The force flag relaxes soft declared
// requirements but never the physical-identity ones. Check mutates no
// install state.
func Check(req *CheckRequest) error {
	dev, rel := req.Device, req.Release
	force := req.Flags.Has(InstallForce)

	if dev.HasFlag(device.FlagLocked) {
		return errdefs.Wrapf(errdefs.ErrNotSupported, "device %s is locked; unlock it first", dev.Name)
	}
	if !dev.HasFlag(device.FlagUpdatable) {
		return errdefs.Wrapf(errdefs.ErrNotSupported, "device %s is not updatable", dev.Name)
	}
	if req.Registry != nil && req.Registry.Installing(dev.ID) {
		return errdefs.Wrapf(errdefs.ErrBusy, "an install is already running for device %s", dev.Name)
	}
	if dev.GetUpdateState() == device.UpdateStateNeedsReboot && !force {
		return errdefs.Wrap(errdefs.ErrNeedsUserAction,
			"an earlier update is pending; reboot before installing again")
	}
	if problems := dev.CurrentProblems(); problems != device.ProblemNone && !force {
		return errdefs.Wrapf(errdefs.ErrNeedsUserAction, "device %s cannot update now: %s",
			dev.Name, strings.Join(problems.Describe(), ", "))
	}

	// Physical identity. Nothing relaxes these two.
	if !rel.Matches(dev.GUIDList()) {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"release %s does not target device %s", rel.Version, dev.Name)
	}
	if dev.HasFlag(device.FlagIsBootloader) && !rel.HasTag("bootloader") {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"device %s is in bootloader mode and only accepts bootloader firmware", dev.Name)
	}

	devVersion, format := dev.GetVersion()
	if rel.Version != "" && !force {
		if err := device.ValidateVersion(rel.Version, format); err != nil {
			return errdefs.Wrapf(errdefs.ErrInvalidData,
				"release version %q is not comparable under the device's %s format",
				rel.Version, format)
		}
	}

	for _, r := range rel.Requirements {
		if force && !r.Hard() {
			continue
		}
		if err := checkRequirement(req, r, devVersion, format); err != nil {
			return err
		}
	}

	if rel.Branch != dev.Branch && !req.Flags.Has(InstallAllowBranchSwitch) {
		return errdefs.Wrapf(errdefs.ErrNotSupported,
			"release follows branch %q but device %s runs %q; branch switching must be requested explicitly",
			rel.Branch, dev.Name, dev.Branch)
	}

	if rel.Version != "" && devVersion != "" {
		switch cmp := device.CompareVersions(rel.Version, devVersion, format); {
		case cmp == 0 && !req.Flags.Has(InstallAllowReinstall):
			return errdefs.Wrapf(errdefs.ErrNothingToDo,
				"device %s is already at version %s", dev.Name, rel.Version)
		case cmp < 0 && !req.Flags.Has(InstallAllowOlder):
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"release %s is older than the installed %s; downgrades must be requested explicitly",
				rel.Version, devVersion)
		}
	}
	return nil
}

// checkRequirement evaluates one declared requirement against the live
// device topology.
func checkRequirement(req *CheckRequest, r release.Requirement, devVersion string, format device.VersionFormat) error {
	dev := req.Device
	switch r.Kind {
	case release.KindFirmwareVersion:
		if !r.Satisfied(devVersion, format) {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"firmware version requirement \"%s\" not met by installed %s", r, devVersion)
		}
	case release.KindVendorID:
		if !r.Satisfied(dev.VendorID, device.VersionFormatPlain) {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"vendor-id mismatch: device reports %q, release requires %s %s",
				dev.VendorID, r.Op, r.Value)
		}
	case release.KindParentVersion:
		if req.Registry == nil || dev.ParentID == "" {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"requirement \"%s\" needs a parent device, none present", r)
		}
		parent, err := req.Registry.Get(dev.ParentID)
		if err != nil {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"requirement \"%s\" needs a parent device, none present", r)
		}
		pv, pf := parent.GetVersion()
		if !r.Satisfied(pv, pf) {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"parent %s runs %s, which fails requirement \"%s\"", parent.Name, pv, r)
		}
	case release.KindSiblingVersion:
		if req.Registry == nil || dev.CompositeID == "" {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"requirement \"%s\" needs composite siblings, none present", r)
		}
		var checked int
		for _, sib := range req.Registry.Composite(dev.CompositeID) {
			if sib.ID == dev.ID {
				continue
			}
			checked++
			sv, sf := sib.GetVersion()
			if !r.Satisfied(sv, sf) {
				return errdefs.Wrapf(errdefs.ErrNotSupported,
					"sibling %s runs %s, which fails requirement \"%s\"", sib.Name, sv, r)
			}
		}
		if checked == 0 {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"requirement \"%s\" needs composite siblings, none present", r)
		}
	case release.KindEngineVersion:
		if !r.Satisfied(req.EngineVersion, device.VersionFormatPlain) {
			return errdefs.Wrapf(errdefs.ErrNotSupported,
				"engine %s does not satisfy requirement \"%s\"", req.EngineVersion, r)
		}
	default:
		return errdefs.Wrapf(errdefs.ErrInvalidData, "unknown requirement kind %q", r.Kind)
	}
	return nil
}
