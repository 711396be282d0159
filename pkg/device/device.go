// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package device models updatable hardware: identity, capability flags,
// version state and the driver binding installs are dispatched through.
package device

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foundriesio/fwup/pkg/progress"
)

type (
	// Driver is the per-device behavior a plugin binds at enumeration
	// time. Concrete drivers additionally implement whichever capability
	// interfaces below they support; callers discover those by type
	// assertion.
	Driver interface {
		PluginName() string
	}

	// Detacher switches the device into its programming mode.
	Detacher interface {
		Detach(ctx context.Context, dev *Device, prog *progress.Progress) error
	}

	// FirmwareWriter streams a payload onto the device.
	FirmwareWriter interface {
		WriteFirmware(ctx context.Context, dev *Device, payload []byte, prog *progress.Progress) error
	}

	// Attacher switches the device back into runtime mode.
	Attacher interface {
		Attach(ctx context.Context, dev *Device, prog *progress.Progress) error
	}

	// Reloader re-reads the device's version after an install and
	// returns what the hardware now reports.
	Reloader interface {
		Reload(ctx context.Context, dev *Device) (string, error)
	}

	// Activator makes already-written firmware take effect on devices
	// that stage it.
	Activator interface {
		Activate(ctx context.Context, dev *Device, prog *progress.Progress) error
	}

	// Unlocker lifts a vendor lock so the device becomes updatable.
	Unlocker interface {
		Unlock(ctx context.Context, dev *Device) error
	}
)

// Device is one updatable piece of hardware tracked by the registry.
// Mutable state is guarded; mutate through the methods, not the fields.
type Device struct {
	mu sync.Mutex

	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Vendor        string        `json:"vendor,omitempty"`
	VendorID      string        `json:"vendor_id,omitempty"`
	Plugin        string        `json:"plugin"`
	Protocol      string        `json:"protocol,omitempty"`
	Serial        string        `json:"serial,omitempty"`
	BusID         string        `json:"bus_id,omitempty"`
	InstanceIDs   []string      `json:"instance_ids,omitempty"`
	GUIDs         []string      `json:"guids,omitempty"`
	ParentID      string        `json:"parent_id,omitempty"`
	CompositeID   string        `json:"composite_id,omitempty"`
	Version       string        `json:"version,omitempty"`
	VersionFormat VersionFormat `json:"version_format,omitempty"`
	// VersionBootloader is the bootloader's own version when the
	// hardware reports one separately from the runtime firmware.
	VersionBootloader string `json:"version_bootloader,omitempty"`
	Branch            string `json:"branch,omitempty"`

	Flags       Flag        `json:"flags"`
	Problems    Problem     `json:"problems,omitempty"`
	UpdateState UpdateState `json:"update_state,omitempty"`
	UpdateError string      `json:"update_error,omitempty"`
	Created     time.Time   `json:"created"`
	Modified    time.Time   `json:"modified"`

	drv Driver
}

// New builds a device whose ID is derived from physicalID so the same
// hardware keeps the same ID across re-enumerations. Each instance ID
// also contributes a stable GUID.
func New(physicalID, name, plugin string, instanceIDs ...string) *Device {
	now := time.Now().UTC()
	d := &Device{
		ID:       NewID(physicalID),
		Name:     name,
		Plugin:   plugin,
		Created:  now,
		Modified: now,
	}
	for _, iid := range instanceIDs {
		d.InstanceIDs = append(d.InstanceIDs, iid)
		d.GUIDs = append(d.GUIDs, GUIDFromInstanceID(iid))
	}
	return d
}

// NewID hashes a physical identifier into the canonical device ID form.
func NewID(physicalID string) string {
	sum := sha1.Sum([]byte(physicalID))
	return hex.EncodeToString(sum[:])
}

// GUIDFromInstanceID derives the stable GUID for an instance ID string
// such as "USB\VID_273F&PID_1004".
func GUIDFromInstanceID(instanceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(instanceID)).String()
}

// AddInstanceID appends an instance ID and its derived GUID, skipping
// duplicates.
func (d *Device) AddInstanceID(instanceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, iid := range d.InstanceIDs {
		if iid == instanceID {
			return
		}
	}
	d.InstanceIDs = append(d.InstanceIDs, instanceID)
	d.GUIDs = append(d.GUIDs, GUIDFromInstanceID(instanceID))
	d.Modified = time.Now().UTC()
}

// HasGUID reports whether guid is one of the device's derived GUIDs.
func (d *Device) HasGUID(guid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.GUIDs {
		if g == guid {
			return true
		}
	}
	return false
}

// GUIDList returns a copy of the device's GUIDs.
func (d *Device) GUIDList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.GUIDs))
	copy(out, d.GUIDs)
	return out
}

func (d *Device) HasFlag(f Flag) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Flags&f != 0
}

func (d *Device) AddFlag(f Flag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Flags |= f
	d.Modified = time.Now().UTC()
}

func (d *Device) RemoveFlag(f Flag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Flags &^= f
	d.Modified = time.Now().UTC()
}

func (d *Device) HasProblem(p Problem) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Problems&p != 0
}

func (d *Device) AddProblem(p Problem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Problems |= p
	d.Modified = time.Now().UTC()
}

func (d *Device) RemoveProblem(p Problem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Problems &^= p
	d.Modified = time.Now().UTC()
}

// CurrentProblems returns the problem bits set right now.
func (d *Device) CurrentProblems() Problem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Problems
}

// GetVersion returns the version string together with its format.
func (d *Device) GetVersion() (string, VersionFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Version, d.VersionFormat
}

func (d *Device) SetVersion(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Version = v
	d.Modified = time.Now().UTC()
}

func (d *Device) GetUpdateState() UpdateState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.UpdateState
}

// SetUpdateState records the outcome of the latest install attempt and
// clears any stale error text unless the new state is a failure.
func (d *Device) SetUpdateState(s UpdateState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.UpdateState = s
	if s != UpdateStateFailed && s != UpdateStateFailedTransient {
		d.UpdateError = ""
	}
	d.Modified = time.Now().UTC()
}

func (d *Device) SetUpdateError(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.UpdateError = msg
	d.Modified = time.Now().UTC()
}

func (d *Device) GetUpdateError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.UpdateError
}

// Bind attaches the driver that will service install phases.
func (d *Device) Bind(drv Driver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drv = drv
	if drv != nil && d.Plugin == "" {
		d.Plugin = drv.PluginName()
	}
}

// Drv returns the bound driver, or nil for an unbound device.
func (d *Device) Drv() Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drv
}

// Updatable reports whether installs may even be considered: the
// device must carry the updatable flag and not be locked.
func (d *Device) Updatable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Flags&FlagUpdatable != 0 && d.Flags&FlagLocked == 0
}

// Snapshot returns a copy of the device's public state, safe to hold
// while the original keeps mutating.
func (d *Device) Snapshot() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := &Device{
		ID:                d.ID,
		Name:              d.Name,
		Vendor:            d.Vendor,
		VendorID:          d.VendorID,
		Plugin:            d.Plugin,
		Protocol:          d.Protocol,
		Serial:            d.Serial,
		BusID:             d.BusID,
		ParentID:          d.ParentID,
		CompositeID:       d.CompositeID,
		Version:           d.Version,
		VersionFormat:     d.VersionFormat,
		VersionBootloader: d.VersionBootloader,
		Branch:            d.Branch,
		Flags:             d.Flags,
		Problems:          d.Problems,
		UpdateState:       d.UpdateState,
		UpdateError:       d.UpdateError,
		Created:           d.Created,
		Modified:          d.Modified,
	}
	out.InstanceIDs = append(out.InstanceIDs, d.InstanceIDs...)
	out.GUIDs = append(out.GUIDs, d.GUIDs...)
	return out
}

// MarshalJSON serializes a locked snapshot so concurrent mutation
// cannot tear the output.
func (d *Device) MarshalJSON() ([]byte, error) {
	type plain Device
	return json.Marshal((*plain)(d.Snapshot()))
}
