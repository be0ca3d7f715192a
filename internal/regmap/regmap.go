// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regmap maps a flat register space of 16-bit values onto a bus
// that addresses at most one window of 8-bit register offsets at a time.
//
// Each logical address is split into a page and an in-window offset. The
// page is programmed through a selector register that is reachable from
// every page; the map caches the last page written and only re-selects when
// an access targets a different page. The cache is dropped on any bus
// error so the next access always re-selects.
//
// Register values are never cached, every Read is a bus round trip.
package regmap

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrBus   = errors.New("bus error")
	ErrRange = errors.New("register out of range")
)

// Bus is the byte addressed transport beneath a Map.
type Bus interface {
	ReadReg(reg uint8) (uint16, error)
	WriteReg(reg uint8, v uint16) error
}

// Range describes an indirectly addressed region of the register space.
type Range struct {
	Min, Max     uint16
	Selector     uint8
	SelectorMask uint16
	WindowStart  uint8
	WindowLen    int
}

type Config struct {
	Name        string
	Stride      uint16
	MaxRegister uint16
	Range       Range
}

// BusError records the failed transport operation.
type BusError struct {
	Op   string
	Addr uint16
	Reg  uint8
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s %#04x (page reg %#02x): %v",
		e.Op, e.Addr, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrBus }

// Map serializes page selection and the following access. Both must be held
// under one lock or concurrent callers mis-address each other's accesses.
type Map struct {
	cfg Config
	bus Bus

	mu   sync.Mutex
	page int

	// Debug, if set, is called after each successful bus transfer.
	Debug func(op string, addr uint16, v uint16)
}

const noPage = -1

func New(bus Bus, cfg *Config) (*Map, error) {
	if cfg.Range.WindowLen <= 0 || cfg.Range.WindowLen > 256 {
		return nil, fmt.Errorf("%s: invalid window length %d",
			cfg.Name, cfg.Range.WindowLen)
	}
	if cfg.Stride == 0 {
		return nil, fmt.Errorf("%s: zero register stride", cfg.Name)
	}
	return &Map{cfg: *cfg, bus: bus, page: noPage}, nil
}

func (m *Map) Name() string { return m.cfg.Name }

// Page returns the page selector value of the logical address.
func (m *Map) Page(addr uint16) uint16 {
	return (addr - m.cfg.Range.Min) / uint16(m.cfg.Range.WindowLen)
}

// Offset returns the in-window bus register of the logical address.
func (m *Map) Offset(addr uint16) uint8 {
	off := (addr - m.cfg.Range.Min) % uint16(m.cfg.Range.WindowLen)
	return m.cfg.Range.WindowStart + uint8(off)
}

// Compose is the inverse of Page and Offset.
func (m *Map) Compose(page uint16, off uint8) uint16 {
	return m.cfg.Range.Min + page*uint16(m.cfg.Range.WindowLen) +
		uint16(off-m.cfg.Range.WindowStart)
}

func (m *Map) check(addr uint16) error {
	if addr > m.cfg.MaxRegister || addr%m.cfg.Stride != 0 {
		return fmt.Errorf("%s: %#04x: %w", m.cfg.Name, addr, ErrRange)
	}
	return nil
}

// selectPage must be called with the lock held.
func (m *Map) selectPage(addr uint16) (uint8, error) {
	r := &m.cfg.Range
	if addr < r.Min || addr > r.Max {
		return uint8(addr), nil
	}
	page := int(m.Page(addr))
	if page != m.page {
		v := uint16(page) & r.SelectorMask
		if err := m.bus.WriteReg(r.Selector, v); err != nil {
			m.page = noPage
			return 0, &BusError{"select", addr, r.Selector, err}
		}
		m.page = page
	}
	return m.Offset(addr), nil
}

func (m *Map) read(addr uint16) (uint16, error) {
	reg, err := m.selectPage(addr)
	if err != nil {
		return 0, err
	}
	v, err := m.bus.ReadReg(reg)
	if err != nil {
		m.page = noPage
		return 0, &BusError{"read", addr, reg, err}
	}
	if m.Debug != nil {
		m.Debug("read", addr, v)
	}
	return v, nil
}

func (m *Map) write(addr, v uint16) error {
	reg, err := m.selectPage(addr)
	if err != nil {
		return err
	}
	if err = m.bus.WriteReg(reg, v); err != nil {
		m.page = noPage
		return &BusError{"write", addr, reg, err}
	}
	if m.Debug != nil {
		m.Debug("write", addr, v)
	}
	return nil
}

func (m *Map) Read(addr uint16) (uint16, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(addr)
}

func (m *Map) Write(addr, v uint16) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(addr, v)
}

// UpdateBits replaces the masked bits of the register with those of v.
// The register is not written if the result equals the current value.
func (m *Map) UpdateBits(addr, mask, v uint16) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, err := m.read(addr)
	if err != nil {
		return err
	}
	nv := old&^mask | v&mask
	if nv == old {
		return nil
	}
	return m.write(addr, nv)
}

func (m *Map) SetBits(addr, bits uint16) error {
	return m.UpdateBits(addr, bits, bits)
}

func (m *Map) ClearBits(addr, bits uint16) error {
	return m.UpdateBits(addr, bits, 0)
}

// TestBits reports whether all of bits are set.
func (m *Map) TestBits(addr, bits uint16) (bool, error) {
	v, err := m.Read(addr)
	if err != nil {
		return false, err
	}
	return v&bits == bits, nil
}

// Invalidate forgets the selected page.
func (m *Map) Invalidate() {
	m.mu.Lock()
	m.page = noPage
	m.mu.Unlock()
}
