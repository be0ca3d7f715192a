// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regmaptest provides a simulated paged register device for tests.
package regmaptest

import (
	"errors"
	"sync"
)

var ErrInjected = errors.New("injected bus failure")

// Op is one bus transfer as seen by the device.
type Op struct {
	Write bool
	Reg   uint8
	Val   uint16
	Page  uint16
}

// Bus emulates a device whose register window is selected by writes to
// Selector. Register contents are kept by logical address.
type Bus struct {
	Selector  uint8
	WindowLen int

	mu   sync.Mutex
	page uint16
	regs map[uint16]uint16
	ops  []Op

	// Fail, if set, is consulted before each transfer.
	Fail func(op Op) error
}

func New(selector uint8, windowLen int) *Bus {
	return &Bus{
		Selector:  selector,
		WindowLen: windowLen,
		regs:      make(map[uint16]uint16),
	}
}

func (b *Bus) logical(reg uint8) uint16 {
	return b.page*uint16(b.WindowLen) + uint16(reg)
}

func (b *Bus) ReadReg(reg uint8) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	op := Op{Reg: reg, Page: b.page}
	if reg == b.Selector {
		op.Val = b.page
	} else {
		op.Val = b.regs[b.logical(reg)]
	}
	if b.Fail != nil {
		if err := b.Fail(op); err != nil {
			return 0, err
		}
	}
	b.ops = append(b.ops, op)
	return op.Val, nil
}

func (b *Bus) WriteReg(reg uint8, v uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	op := Op{Write: true, Reg: reg, Val: v, Page: b.page}
	if b.Fail != nil {
		if err := b.Fail(op); err != nil {
			return err
		}
	}
	b.ops = append(b.ops, op)
	if reg == b.Selector {
		b.page = v
	} else {
		b.regs[b.logical(reg)] = v
	}
	return nil
}

// Value returns the register content at the logical address.
func (b *Bus) Value(addr uint16) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[addr]
}

// Set presets the register content at the logical address.
func (b *Bus) Set(addr, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[addr] = v
}

// Ops returns a copy of all transfers so far.
func (b *Bus) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// Writes returns the values written to the logical address in order.
func (b *Bus) Writes(addr uint16) []uint16 {
	var vs []uint16
	for _, op := range b.Ops() {
		if op.Write && op.Reg != b.Selector &&
			op.Page*uint16(b.WindowLen)+uint16(op.Reg) == addr {
			vs = append(vs, op.Val)
		}
	}
	return vs
}

// WriteCount is the number of non-selector writes.
func (b *Bus) WriteCount() int {
	n := 0
	for _, op := range b.Ops() {
		if op.Write && op.Reg != b.Selector {
			n++
		}
	}
	return n
}

func (b *Bus) Clear() {
	b.mu.Lock()
	b.ops = b.ops[:0]
	b.mu.Unlock()
}

// FailWrite returns a Fail func rejecting writes to the given logical address.
func (b *Bus) FailWrite(addr uint16) func(Op) error {
	return func(op Op) error {
		if op.Write && op.Reg != b.Selector &&
			op.Page*uint16(b.WindowLen)+uint16(op.Reg) == addr {
			return ErrInjected
		}
		return nil
	}
}
