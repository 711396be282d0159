// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package release

import (
	"encoding/json"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

type (
	// Component is one device-targeted payload extracted from a firmware
	// container.
	Component struct {
		ID      string
		Release *Release
		Payload []byte
	}

	// ContainerParser splits a multi-component firmware container into
	// its per-device components. Container integrity and signatures are
	// checked upstream of this boundary.
	ContainerParser interface {
		Parse(blob []byte) ([]Component, error)
	}
)

// BundleParser reads the inline JSON bundle form: a manifest with the
// payload bytes embedded per component. It is the container format used
// by local installs and by the emulated test rigs.
type BundleParser struct{}

type bundleManifest struct {
	Components []struct {
		ID      string   `json:"id"`
		Release *Release `json:"release"`
		Payload []byte   `json:"payload"`
	} `json:"components"`
}

func (BundleParser) Parse(blob []byte) ([]Component, error) {
	var m bundleManifest
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "firmware bundle: %v", err)
	}
	if len(m.Components) == 0 {
		return nil, errdefs.Wrap(errdefs.ErrInvalidData, "firmware bundle declares no components")
	}
	out := make([]Component, 0, len(m.Components))
	for _, c := range m.Components {
		if c.Release == nil {
			return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "bundle component %s has no release", c.ID)
		}
		if len(c.Payload) == 0 {
			return nil, errdefs.Wrapf(errdefs.ErrInvalidData, "bundle component %s has no payload", c.ID)
		}
		if err := c.Release.VerifyPayload(c.Payload, false); err != nil {
			return nil, err
		}
		out = append(out, Component{ID: c.ID, Release: c.Release, Payload: c.Payload})
	}
	return out, nil
}
