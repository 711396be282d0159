// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package engine

import (
	"sort"
	"strings"

	"github.com/foundriesio/fwup/pkg/device"
	"github.com/foundriesio/fwup/pkg/errdefs"
)

// SortByTopology orders the devices so every parent precedes its
// children, considering only parent edges between members of the set.
// Ties keep a stable name-then-ID order. A cycle in the declared parent
// relationships is a configuration error; it is reported before any
// install starts rather than resolved into a partial ordering.
func SortByTopology(devs []*device.Device) ([]*device.Device, error) {
	input := make([]*device.Device, len(devs))
	copy(input, devs)
	sort.SliceStable(input, func(i, j int) bool {
		if input[i].Name != input[j].Name {
			return input[i].Name < input[j].Name
		}
		return input[i].ID < input[j].ID
	})

	inSet := make(map[string]*device.Device, len(input))
	for _, dev := range input {
		inSet[dev.ID] = dev
	}
	indegree := map[string]int{}
	children := map[string][]*device.Device{}
	for _, dev := range input {
		if dev.ParentID == "" {
			continue
		}
		if _, ok := inSet[dev.ParentID]; !ok {
			continue
		}
		indegree[dev.ID]++
		children[dev.ParentID] = append(children[dev.ParentID], dev)
	}

	var queue, out []*device.Device
	for _, dev := range input {
		if indegree[dev.ID] == 0 {
			queue = append(queue, dev)
		}
	}
	for len(queue) > 0 {
		dev := queue[0]
		queue = queue[1:]
		out = append(out, dev)
		for _, child := range children[dev.ID] {
			indegree[child.ID]--
			if indegree[child.ID] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(out) != len(input) {
		var stuck []string
		for _, dev := range input {
			if indegree[dev.ID] > 0 {
				stuck = append(stuck, dev.Name)
			}
		}
		return nil, errdefs.Wrapf(errdefs.ErrInternal,
			"devices %s declare a parent cycle", strings.Join(stuck, ", "))
	}
	return out, nil
}
