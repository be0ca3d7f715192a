// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mfd publishes the functional blocks of a multi-function chip as
// child devices and binds them to drivers by compatible string.
package mfd

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"
)

type Cell struct {
	Name       string
	Compatible string
}

// Device is a published cell.
type Device struct {
	Cell
	ID     uuid.UUID
	Parent interface{}

	bound Remover
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// Remover is returned by a successful probe and undoes it.
type Remover interface {
	Remove() error
}

// Probe binds a driver to a newly published device.
type Probe func(d *Device) (Remover, error)

// Registrar publishes cells on behalf of a parent.
type Registrar interface {
	AddDevices(parent interface{}, cells []Cell) error
	RemoveDevices(parent interface{}) error
}

// Bus is an in-process Registrar. Cells whose compatible string has a
// driver are probed as they are published.
type Bus struct {
	mu       sync.Mutex
	drivers  map[string]Probe
	children map[interface{}][]*Device
}

func (b *Bus) Driver(compatible string, probe Probe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drivers == nil {
		b.drivers = make(map[string]Probe)
	}
	b.drivers[compatible] = probe
}

// AddDevices publishes cells in order. If one fails to probe, the devices
// already added for this call are removed in reverse order.
func (b *Bus) AddDevices(parent interface{}, cells []Cell) error {
	added := make([]*Device, 0, len(cells))
	for _, cell := range cells {
		d := &Device{Cell: cell, ID: uuid.NewV4(), Parent: parent}
		b.mu.Lock()
		probe := b.drivers[cell.Compatible]
		b.mu.Unlock()
		if probe != nil {
			r, err := probe(d)
			if err != nil {
				removeAll(added)
				return fmt.Errorf("%s: %w", cell.Name, err)
			}
			d.bound = r
		}
		added = append(added, d)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.children == nil {
		b.children = make(map[interface{}][]*Device)
	}
	b.children[parent] = append(b.children[parent], added...)
	return nil
}

func (b *Bus) RemoveDevices(parent interface{}) error {
	b.mu.Lock()
	devs := b.children[parent]
	delete(b.children, parent)
	b.mu.Unlock()
	return removeAll(devs)
}

// Devices returns the published children of parent.
func (b *Bus) Devices(parent interface{}) []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Device(nil), b.children[parent]...)
}

func removeAll(devs []*Device) (err error) {
	for i := len(devs) - 1; i >= 0; i-- {
		if r := devs[i].bound; r != nil {
			if xerr := r.Remove(); err == nil {
				err = xerr
			}
		}
	}
	return
}
