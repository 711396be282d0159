// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package device

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/foundriesio/fwup/pkg/errdefs"
)

type (
	EventType int

	// Event announces a registry lifecycle change to subscribers.
	Event struct {
		Type   EventType
		Device *Device
	}
)

const (
	EventAdded EventType = iota
	EventRemoved
	EventChanged
	// EventReplugged fires when a device that left the bus with
	// FlagWaitForReplug set comes back under the same identity.
	EventReplugged
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventChanged:
		return "changed"
	case EventReplugged:
		return "replugged"
	default:
		return "unknown"
	}
}

// Registry tracks every enumerated device, hands out per-device install
// locks, and pairs bootloader-mode re-enumerations back to the logical
// device that is mid-install.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
	// ghosts holds devices that left the bus while FlagWaitForReplug was
	// set, keyed by each of their GUIDs.
	ghosts    map[string]*Device
	installs  map[string]bool
	waiters   map[string][]chan *Device
	subs      map[int]chan Event
	nextSubID int
}

func NewRegistry() *Registry {
	return &Registry{
		devices:  map[string]*Device{},
		ghosts:   map[string]*Device{},
		installs: map[string]bool{},
		waiters:  map[string][]chan *Device{},
		subs:     map[int]chan Event{},
	}
}

// Add registers a newly enumerated device. If a parked ghost shares a
// GUID with it, the arrival is treated as the ghost replugging: the
// original logical device is revived with the new bus identity and
// driver, and the fresh object is discarded.
func (r *Registry) Add(dev *Device) *Device {
	r.mu.Lock()
	for _, guid := range dev.GUIDList() {
		ghost, ok := r.ghosts[guid]
		if !ok {
			continue
		}
		r.rebindLocked(ghost, dev)
		r.devices[ghost.ID] = ghost
		waiters := r.waiters[ghost.ID]
		delete(r.waiters, ghost.ID)
		r.mu.Unlock()

		for _, ch := range waiters {
			ch <- ghost
		}
		r.publish(Event{Type: EventReplugged, Device: ghost})
		return ghost
	}
	r.devices[dev.ID] = dev
	r.mu.Unlock()

	r.publish(Event{Type: EventAdded, Device: dev})
	return dev
}

// rebindLocked folds the fresh enumeration into the parked logical
// device: new bus location, new driver, new mode flags. Version and
// update state stay with the logical device.
func (r *Registry) rebindLocked(ghost, fresh *Device) {
	for _, guid := range ghost.GUIDList() {
		delete(r.ghosts, guid)
	}
	ghost.mu.Lock()
	fresh.mu.Lock()
	ghost.BusID = fresh.BusID
	if fresh.drv != nil {
		ghost.drv = fresh.drv
	}
	if fresh.Flags&FlagIsBootloader != 0 {
		ghost.Flags |= FlagIsBootloader
	} else {
		ghost.Flags &^= FlagIsBootloader
	}
	ghost.Flags &^= FlagWaitForReplug
	ghost.Modified = time.Now().UTC()
	fresh.mu.Unlock()
	ghost.mu.Unlock()
}

// Remove drops a device from the registry. A device flagged
// wait-for-replug is parked as a ghost instead of being forgotten, so
// its next enumeration resolves back to the same logical device.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	dev, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.devices, id)
	if dev.HasFlag(FlagWaitForReplug) {
		for _, guid := range dev.GUIDList() {
			r.ghosts[guid] = dev
		}
	}
	r.mu.Unlock()

	r.publish(Event{Type: EventRemoved, Device: dev})
}

// Get returns the device with the given ID.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devices[id]
	if !ok {
		return nil, errdefs.Wrapf(errdefs.ErrNotFound, "device %s", id)
	}
	return dev, nil
}

// GetByGUID returns every present device carrying the GUID.
func (r *Registry) GetByGUID(guid string) []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Device
	for _, dev := range r.devices {
		if dev.HasGUID(guid) {
			out = append(out, dev)
		}
	}
	return out
}

// List returns all present devices ordered by name then ID so output
// is stable across calls.
func (r *Registry) List() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Composite returns the members of a composite group, parents before
// children within the slice ordering left to the caller.
func (r *Registry) Composite(compositeID string) []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Device
	for _, dev := range r.devices {
		if dev.CompositeID == compositeID {
			out = append(out, dev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Children returns the direct children of the given device.
func (r *Registry) Children(parentID string) []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Device
	for _, dev := range r.devices {
		if dev.ParentID == parentID {
			out = append(out, dev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AcquireInstall claims the device for an install. The claim is not
// reentrant; a second claim before Release reports false.
func (r *Registry) AcquireInstall(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installs[id] {
		return false
	}
	r.installs[id] = true
	return true
}

// ReleaseInstall releases the install claim on a device.
func (r *Registry) ReleaseInstall(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.installs, id)
}

// Installing reports whether an install currently holds the device.
func (r *Registry) Installing(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installs[id]
}

// WaitForReplug blocks until the device re-enumerates after a detach or
// attach that takes it off the bus. If the device is already back, it
// returns immediately. The wait is bounded by timeout and by ctx.
func (r *Registry) WaitForReplug(ctx context.Context, dev *Device, timeout time.Duration) (*Device, error) {
	r.mu.Lock()
	if cur, ok := r.devices[dev.ID]; ok && !cur.HasFlag(FlagWaitForReplug) {
		r.mu.Unlock()
		return cur, nil
	}
	ch := make(chan *Device, 1)
	r.waiters[dev.ID] = append(r.waiters[dev.ID], ch)
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case replugged := <-ch:
		return replugged, nil
	case <-ctx.Done():
		r.dropWaiter(dev.ID, ch)
		return nil, errdefs.Wrapf(errdefs.ErrCancelled, "waiting for %s to replug", dev.Name)
	case <-timer.C:
		r.dropWaiter(dev.ID, ch)
		return nil, errdefs.Wrapf(errdefs.ErrTimeout,
			"device %s did not return within %s", dev.Name, timeout)
	}
}

func (r *Registry) dropWaiter(id string, ch chan *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	waiters := r.waiters[id]
	for i, w := range waiters {
		if w == ch {
			r.waiters[id] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(r.waiters[id]) == 0 {
		delete(r.waiters, id)
	}
}

// Subscribe registers for lifecycle events. The returned cancel func
// must be called to release the subscription.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	ch := make(chan Event, 16)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// NotifyChanged publishes EventChanged for a device whose state was
// mutated outside the registry's own paths.
func (r *Registry) NotifyChanged(dev *Device) {
	r.publish(Event{Type: EventChanged, Device: dev})
}

func (r *Registry) publish(ev Event) {
	r.mu.Lock()
	subs := make([]chan Event, 0, len(r.subs))
	for _, ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping device event for slow subscriber",
				"event", ev.Type.String(), "device", ev.Device.ID)
		}
	}
}
