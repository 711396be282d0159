// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package device

import (
	"strconv"
	"strings"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

// VersionFormat declares how a device's version string is structured so
// release comparisons order correctly.
type VersionFormat int

const (
	VersionFormatUnknown VersionFormat = iota
	// VersionFormatPlain compares dot-separated segments, numerically
	// where both sides parse as integers.
	VersionFormatPlain
	// VersionFormatNumber is a single unsigned integer.
	VersionFormatNumber
	// VersionFormatPair is MAJOR.MINOR.
	VersionFormatPair
	// VersionFormatTriplet is MAJOR.MINOR.MICRO.
	VersionFormatTriplet
	// VersionFormatQuad is MAJOR.MINOR.MICRO.NANO.
	VersionFormatQuad
	// VersionFormatBCD is dot-separated binary-coded-decimal bytes,
	// each segment 0..99.
	VersionFormatBCD
	// VersionFormatHex is a single base-16 integer, 0x prefix optional.
	VersionFormatHex
)

var versionFormatNames = map[VersionFormat]string{
	VersionFormatPlain:   "plain",
	VersionFormatNumber:  "number",
	VersionFormatPair:    "pair",
	VersionFormatTriplet: "triplet",
	VersionFormatQuad:    "quad",
	VersionFormatBCD:     "bcd",
	VersionFormatHex:     "hex",
}

// ParseVersionFormat maps a quirk token to a format, defaulting to
// VersionFormatUnknown for anything unrecognized.
func ParseVersionFormat(s string) VersionFormat {
	for f, name := range versionFormatNames {
		if name == s {
			return f
		}
	}
	return VersionFormatUnknown
}

func (f VersionFormat) String() string {
	if name, ok := versionFormatNames[f]; ok {
		return name
	}
	return "unknown"
}

func (f VersionFormat) segments() int {
	switch f {
	case VersionFormatNumber, VersionFormatHex:
		return 1
	case VersionFormatPair:
		return 2
	case VersionFormatTriplet:
		return 3
	case VersionFormatQuad:
		return 4
	default:
		return 0
	}
}

// ValidateVersion checks that v is well formed for the format. Plain and
// unknown formats accept any non-empty string.
func ValidateVersion(v string, f VersionFormat) error {
	if v == "" {
		return errdefs.Wrap(errdefs.ErrInvalidArgs, "version is empty")
	}
	switch f {
	case VersionFormatUnknown, VersionFormatPlain:
		return nil
	case VersionFormatHex:
		if _, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 64); err != nil {
			return errdefs.Wrapf(errdefs.ErrInvalidArgs, "version %q is not a hex number", v)
		}
		return nil
	}
	// BCD has no fixed arity; the fixed formats do.
	parts := strings.Split(v, ".")
	if want := f.segments(); want > 0 && len(parts) != want {
		return errdefs.Wrapf(errdefs.ErrInvalidArgs,
			"version %q has %d segments, format %s wants %d", v, len(parts), f, want)
	}
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return errdefs.Wrapf(errdefs.ErrInvalidArgs, "version %q segment %q is not a number", v, p)
		}
		if f == VersionFormatBCD && n > 99 {
			return errdefs.Wrapf(errdefs.ErrInvalidArgs, "version %q segment %q exceeds BCD range", v, p)
		}
	}
	return nil
}

// CompareVersions orders a against b under the given format, returning
// -1, 0 or 1. Segments that fail to parse numerically fall back to
// string comparison, and a missing trailing segment sorts lower, so
// 1.2 < 1.2.1.
func CompareVersions(a, b string, f VersionFormat) int {
	if a == b {
		return 0
	}
	if f == VersionFormatHex {
		av, aerr := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
		bv, berr := strconv.ParseUint(strings.TrimPrefix(b, "0x"), 16, 64)
		if aerr == nil && berr == nil {
			return compareUint(av, bv)
		}
		return strings.Compare(a, b)
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		av, aerr := strconv.ParseUint(as[i], 10, 64)
		bv, berr := strconv.ParseUint(bs[i], 10, 64)
		if aerr == nil && berr == nil {
			if c := compareUint(av, bv); c != 0 {
				return c
			}
			continue
		}
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
