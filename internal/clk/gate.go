// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package clk

// BitRegister is a register whose bits are updated without disturbing the
// unmasked ones.
type BitRegister interface {
	UpdateBits(mask, v uint16) error
	TestBits(mask uint16) (bool, error)
}

// Gate forwards the parent's rate and gates it with one register bit.
type Gate struct {
	ClockName string
	Parent    Clock
	Reg       BitRegister
	Bit       uint
}

func (g *Gate) Name() string { return g.ClockName }

func (g *Gate) mask() uint16 { return 1 << g.Bit }

func (g *Gate) Enable() error {
	return g.Reg.UpdateBits(g.mask(), g.mask())
}

func (g *Gate) Disable() error {
	return g.Reg.UpdateBits(g.mask(), 0)
}

func (g *Gate) Enabled() (bool, error) {
	return g.Reg.TestBits(g.mask())
}

func (g *Gate) Rate() (uint64, error) {
	if g.Parent == nil {
		return 0, nil
	}
	return g.Parent.Rate()
}
