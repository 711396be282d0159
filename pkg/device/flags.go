// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package device

import "strings"

// Flag is a capability or lifecycle bit set on a device, either by the
// owning plugin or by a quirk override.
type Flag uint64

const (
	FlagNone Flag = 0
	// FlagUpdatable means the device can accept firmware installs at all.
	FlagUpdatable Flag = 1 << iota
	// FlagLocked means the device must be unlocked before it is updatable.
	FlagLocked
	// FlagSupported means release metadata exists for this device.
	FlagSupported
	// FlagNeedsReboot means a system reboot completes the pending update.
	FlagNeedsReboot
	// FlagNeedsShutdown means a system shutdown completes the pending update.
	FlagNeedsShutdown
	// FlagNeedsActivation means the written firmware takes effect only
	// after an explicit activate call.
	FlagNeedsActivation
	// FlagIsBootloader means the device is currently in bootloader mode
	// and only accepts bootloader-stage payloads.
	FlagIsBootloader
	// FlagWaitForReplug means the device is expected to drop off the bus
	// and re-enumerate before the next install phase may run.
	FlagWaitForReplug
	// FlagEmulated marks a synthetic device backed by no real hardware.
	FlagEmulated
	// FlagHasMultipleBranches means alternate firmware branches exist.
	FlagHasMultipleBranches
	// FlagInternal hides the device from default listings.
	FlagInternal
	// FlagRequireAC means installs are refused on battery power.
	FlagRequireAC
)

var flagNames = map[Flag]string{
	FlagUpdatable:           "updatable",
	FlagLocked:              "locked",
	FlagSupported:           "supported",
	FlagNeedsReboot:         "needs-reboot",
	FlagNeedsShutdown:       "needs-shutdown",
	FlagNeedsActivation:     "needs-activation",
	FlagIsBootloader:        "is-bootloader",
	FlagWaitForReplug:       "wait-for-replug",
	FlagEmulated:            "emulated",
	FlagHasMultipleBranches: "has-multiple-branches",
	FlagInternal:            "internal",
	FlagRequireAC:           "require-ac",
}

// ParseFlag maps a single quirk-file token to its flag, or FlagNone.
func ParseFlag(s string) Flag {
	for f, name := range flagNames {
		if name == s {
			return f
		}
	}
	return FlagNone
}

// ParseFlags maps a comma-separated quirk value to a flag set; unknown
// tokens are ignored rather than failing the whole quirk entry.
func ParseFlags(s string) Flag {
	var flags Flag
	for _, tok := range strings.Split(s, ",") {
		flags |= ParseFlag(strings.TrimSpace(tok))
	}
	return flags
}

func (f Flag) String() string {
	if f == FlagNone {
		return "none"
	}
	var names []string
	for bit := Flag(1); bit != 0; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		if name, ok := flagNames[bit]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// Problem is a transient reason an otherwise-updatable device cannot
// proceed right now.
type Problem uint64

const (
	ProblemNone Problem = 0
	// ProblemPowerTooLow blocks installs until the battery charges.
	ProblemPowerTooLow Problem = 1 << iota
	// ProblemUnreachable means the device cannot currently be contacted.
	ProblemUnreachable
	// ProblemUpdatePending means an earlier install awaits a reboot.
	ProblemUpdatePending
	// ProblemLidClosed blocks laptop-internal devices while the lid is shut.
	ProblemLidClosed
	// ProblemRequireACPower blocks installs until mains power is attached.
	ProblemRequireACPower
)

var problemDescs = map[Problem]string{
	ProblemPowerTooLow:    "system power is too low",
	ProblemUnreachable:    "device is unreachable",
	ProblemUpdatePending:  "an update is pending a reboot",
	ProblemLidClosed:      "lid is closed",
	ProblemRequireACPower: "AC power is required",
}

// Describe returns the human-readable reasons for every set problem bit.
func (p Problem) Describe() []string {
	var descs []string
	for bit := Problem(1); bit != 0; bit <<= 1 {
		if p&bit == 0 {
			continue
		}
		if d, ok := problemDescs[bit]; ok {
			descs = append(descs, d)
		}
	}
	return descs
}

func (p Problem) String() string {
	if p == ProblemNone {
		return "none"
	}
	return strings.Join(p.Describe(), "; ")
}

// UpdateState is the outcome of the most recent install attempt.
type UpdateState int

const (
	UpdateStateUnknown UpdateState = iota
	UpdateStatePending
	UpdateStateSuccess
	UpdateStateFailed
	UpdateStateNeedsReboot
	UpdateStateFailedTransient
)

func (s UpdateState) String() string {
	switch s {
	case UpdateStatePending:
		return "pending"
	case UpdateStateSuccess:
		return "success"
	case UpdateStateFailed:
		return "failed"
	case UpdateStateNeedsReboot:
		return "needs-reboot"
	case UpdateStateFailedTransient:
		return "failed-transient"
	default:
		return "unknown"
	}
}
