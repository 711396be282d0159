// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package release models candidate firmware: what a release contains,
// which devices it targets, and the constraints it declares.
package release

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

// Release is one candidate firmware image for a set of matching devices.
type Release struct {
	// ID is the remote or source identifier, unique within one index.
	ID      string   `json:"id"`
	Version string   `json:"version"`
	Branch  string   `json:"branch,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Summary string   `json:"summary,omitempty"`
	// GUIDs is the device-matching set; a device qualifies when it
	// carries at least one of them.
	GUIDs    []string `json:"guids"`
	Protocol string   `json:"protocol,omitempty"`
	// Locations are the places the payload can be read from, tried in
	// order. Paths are resolved relative to the index file.
	Locations []string `json:"locations"`
	// Checksums verify the payload, "sha256:<hex>" or bare hex.
	Checksums    []string      `json:"checksums,omitempty"`
	Size         int64         `json:"size,omitempty"`
	Urgency      string        `json:"urgency,omitempty"`
	Requirements []Requirement `json:"requirements,omitempty"`
	// InstallDuration is an advisory estimate in seconds for UIs.
	InstallDuration uint `json:"install_duration,omitempty"`
}

// Matches reports whether any of the device's GUIDs is targeted by the
// release.
func (r *Release) Matches(guids []string) bool {
	for _, g := range guids {
		for _, rg := range r.GUIDs {
			if strings.EqualFold(g, rg) {
				return true
			}
		}
	}
	return false
}

// HasTag reports whether the release carries the given metadata tag.
func (r *Release) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate reports whether the release is usable at all, independent of
// any particular device.
func (r *Release) Validate() error {
	if r.Version == "" {
		return errdefs.Wrap(errdefs.ErrInvalidData, "release has no version")
	}
	if len(r.Locations) == 0 {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "release %s has no payload location", r.Version)
	}
	if len(r.GUIDs) == 0 {
		return errdefs.Wrapf(errdefs.ErrInvalidData, "release %s targets no device GUIDs", r.Version)
	}
	return nil
}

// VerifyPayload checks the payload bytes against the release checksums.
// A release without checksums fails unless force is set.
func (r *Release) VerifyPayload(payload []byte, force bool) error {
	if len(r.Checksums) == 0 {
		if force {
			return nil
		}
		return errdefs.Wrapf(errdefs.ErrInvalidData,
			"release %s declares no checksum; use force to install anyway", r.Version)
	}
	sum := sha256.Sum256(payload)
	got := hex.EncodeToString(sum[:])
	for _, want := range r.Checksums {
		want = strings.TrimPrefix(strings.ToLower(want), "sha256:")
		if want == got {
			return nil
		}
	}
	return errdefs.Wrapf(errdefs.ErrInvalidData,
		"payload checksum %s matches none of the %d declared for release %s",
		got, len(r.Checksums), r.Version)
}

// LoadPayload reads the payload from the first readable location and
// verifies it against the declared checksums.
func (r *Release) LoadPayload(force bool) ([]byte, error) {
	if len(r.Locations) == 0 {
		return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "release %s has no payload location", r.Version)
	}
	var lastErr error
	for _, loc := range r.Locations {
		payload, err := os.ReadFile(loc)
		if err != nil {
			lastErr = err
			continue
		}
		if err := r.VerifyPayload(payload, force); err != nil {
			return nil, err
		}
		return payload, nil
	}
	return nil, errdefs.Wrapf(errdefs.ErrNotFound,
		"no payload location for release %s was readable: %v", r.Version, lastErr)
}

// SortNewestFirst orders releases by descending version under the given
// format so index order never leaks into upgrade decisions.
func SortNewestFirst(releases []*Release, format device.VersionFormat) {
	sort.SliceStable(releases, func(i, j int) bool {
		return device.CompareVersions(releases[i].Version, releases[j].Version, format) > 0
	})
}
