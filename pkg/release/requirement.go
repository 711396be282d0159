// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package release

import (
	"fmt"
	"path"
	"strings"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

type (
	// RequirementKind names the device-side value a requirement is
	// evaluated against.
	RequirementKind string

	// CompareOp is the operator applied between the device-side value
	// and the requirement's declared value.
	CompareOp string

	// Requirement is one declared constraint of a release. Requirements
	// are evaluated in declaration order and the first failure is the
	// rejection reason.
	Requirement struct {
		Kind  RequirementKind `json:"kind"`
		Op    CompareOp       `json:"op"`
		Value string          `json:"value"`
	}
)

const (
	// KindFirmwareVersion compares against the device's current version.
	KindFirmwareVersion RequirementKind = "firmware"
	// KindVendorID compares against the device's vendor ID. This one is
	// a hard physical-identity check that no flag relaxes.
	KindVendorID RequirementKind = "vendor-id"
	// KindParentVersion compares against the device's parent's version.
	KindParentVersion RequirementKind = "parent-version"
	// KindSiblingVersion compares against every sibling in the same
	// composite group; all must satisfy it.
	KindSiblingVersion RequirementKind = "sibling-version"
	// KindEngineVersion compares against the running engine version.
	KindEngineVersion RequirementKind = "engine"
)

const (
	OpLT   CompareOp = "lt"
	OpLE   CompareOp = "le"
	OpEQ   CompareOp = "eq"
	OpGE   CompareOp = "ge"
	OpGT   CompareOp = "gt"
	OpGlob CompareOp = "glob"
)

// Hard reports whether the requirement is a physical-identity safety
// check that force and ignore-requirements never relax.
func (r Requirement) Hard() bool {
	return r.Kind == KindVendorID
}

// Satisfied evaluates the requirement against the extracted device-side
// value. Version kinds compare under the given format; glob matches the
// declared value as a pattern.
func (r Requirement) Satisfied(current string, format device.VersionFormat) bool {
	if r.Op == OpGlob {
		ok, err := path.Match(r.Value, current)
		return err == nil && ok
	}
	c := device.CompareVersions(current, r.Value, format)
	switch r.Op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpEQ:
		return c == 0
	case OpGE:
		return c >= 0
	case OpGT:
		return c > 0
	default:
		return false
	}
}

// Validate checks the requirement's kind and operator are known.
func (r Requirement) Validate() error {
	switch r.Kind {
	case KindFirmwareVersion, KindVendorID, KindParentVersion, KindSiblingVersion, KindEngineVersion:
	default:
		return errdefs.Wrapf(errdefs.ErrInvalidData, "unknown requirement kind %q", r.Kind)
	}
	switch r.Op {
	case OpLT, OpLE, OpEQ, OpGE, OpGT, OpGlob:
	default:
		return errdefs.Wrapf(errdefs.ErrInvalidData, "unknown requirement operator %q", r.Op)
	}
	if r.Value == "" {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "requirement %s has no value", r.Kind)
	}
	return nil
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s %s %s", r.Kind, r.Op, r.Value)
}

// ParseRequirement parses the compact "kind op value" form, e.g.
// "firmware ge 0.9.0" or "vendor-id eq 0x1234".
func ParseRequirement(s string) (Requirement, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Requirement{}, errdefs.Wrapf(errdefs.ErrInvalidArgs,
			"requirement %q is not of the form \"kind op value\"", s)
	}
	req := Requirement{
		Kind:  RequirementKind(parts[0]),
		Op:    CompareOp(parts[1]),
		Value: parts[2],
	}
	if err := req.Validate(); err != nil {
		return Requirement{}, err
	}
	return req, nil
}
