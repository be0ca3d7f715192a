// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ac200d

import (
	"fmt"
	"sync"

	"github.com/platinasystems/ac200/internal/regmap"
	"github.com/platinasystems/ac200/internal/reset"
)

// Reset serves the EPHY reset line; methods are called over RPC as
// "Reset.Assert" and so on.
type Reset struct {
	Resets *reset.Registry
	Line   string
}

func (r *Reset) control() (*reset.Control, error) {
	return r.Resets.Get(r.Line)
}

func (r *Reset) Assert(_ struct{}, _ *struct{}) error {
	rc, err := r.control()
	if err != nil {
		return err
	}
	return rc.Assert()
}

func (r *Reset) Deassert(_ struct{}, _ *struct{}) error {
	rc, err := r.control()
	if err != nil {
		return err
	}
	return rc.Deassert()
}

func (r *Reset) Pulse(_ struct{}, _ *struct{}) error {
	rc, err := r.control()
	if err != nil {
		return err
	}
	return rc.Reset()
}

// Status replies true when the line is released.
func (r *Reset) Status(_ struct{}, released *bool) error {
	rc, err := r.control()
	if err != nil {
		return err
	}
	*released, err = rc.Status()
	return err
}

type RegArgs struct {
	Addr  uint16
	Value uint16
}

type DumpArgs struct {
	Begin, End uint16
}

// Regs serves the chip registers. Access goes through the daemon's map so
// the page cache stays coherent with the hardware. Writes go through the
// EPHY control device, once bound, so its shadowed register stays in step.
type Regs struct {
	mu   sync.Mutex
	regs *regmap.Map
	ctl  writer
}

type writer interface {
	Write(addr, v uint16) error
}

// set replaces the map; nil also drops the bound control device.
func (r *Regs) set(m *regmap.Map) {
	r.mu.Lock()
	r.regs = m
	if m == nil {
		r.ctl = nil
	}
	r.mu.Unlock()
}

func (r *Regs) bind(w writer) {
	r.mu.Lock()
	r.ctl = w
	r.mu.Unlock()
}

func (r *Regs) get() (*regmap.Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.regs == nil {
		return nil, fmt.Errorf("not attached")
	}
	return r.regs, nil
}

func (r *Regs) writer() (writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.regs == nil:
		return nil, fmt.Errorf("not attached")
	case r.ctl != nil:
		return r.ctl, nil
	}
	return r.regs, nil
}

func (r *Regs) Read(args RegArgs, v *uint16) error {
	m, err := r.get()
	if err != nil {
		return err
	}
	*v, err = m.Read(args.Addr)
	return err
}

func (r *Regs) Write(args RegArgs, _ *struct{}) error {
	w, err := r.writer()
	if err != nil {
		return err
	}
	return w.Write(args.Addr, args.Value)
}

// Dump reads every register from Begin through End inclusive.
func (r *Regs) Dump(args DumpArgs, vs *[]uint16) error {
	m, err := r.get()
	if err != nil {
		return err
	}
	if args.End < args.Begin {
		return fmt.Errorf("%#04x-%#04x: empty range", args.Begin, args.End)
	}
	for addr := uint32(args.Begin); addr <= uint32(args.End); addr += 2 {
		v, err := m.Read(uint16(addr))
		if err != nil {
			return err
		}
		*vs = append(*vs, v)
	}
	return nil
}
