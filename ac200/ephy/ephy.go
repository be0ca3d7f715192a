// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ephy drives the ethernet PHY inside the AC200 over MDIO. The PHY
// answers only after the ephyctl reset line is released with its clock
// ungated.
package ephy

import (
	"errors"
	"fmt"

	"github.com/platinasystems/ac200/ac200/ephyctl"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/reset"
	"github.com/platinasystems/log"
)

const Name = "ac200-ephy"

const (
	ID     = 0x00441400
	IDMask = 0x0ffffff0
)

const (
	regPhyID1 = 0x02
	regPhyID2 = 0x03
	regMMDCtl = 0x0d
	regMMDDat = 0x0e
	regPage   = 0x1f

	mmdData = 0x4000
)

var ErrNotFound = errors.New("no AC200 PHY at address")

type MDIO interface {
	ReadReg(phyAddr, regAddr uint8) (uint16, error)
	WriteReg(phyAddr, regAddr uint8, value uint16) error
}

func Match(id uint32) bool { return id&IDMask == ID }

// ReadID returns the identifier from registers 2 and 3.
func ReadID(m MDIO, addr uint8) (uint32, error) {
	hi, err := m.ReadReg(addr, regPhyID1)
	if err != nil {
		return 0, err
	}
	lo, err := m.ReadReg(addr, regPhyID2)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

type PHY struct {
	Addr uint8
	MDIO MDIO

	clock clk.Clock
	reset *reset.Control
}

// Probe ungates the PHY clock, releases its reset, and checks the
// identifier. On failure the line and clock are restored.
func Probe(m MDIO, addr uint8, clocks *clk.Registry,
	resets *reset.Registry) (*PHY, error) {
	c, err := clocks.Get(ephyctl.GateName)
	if err != nil {
		return nil, err
	}
	rc, err := resets.Get(ephyctl.Name)
	if err != nil {
		return nil, err
	}
	phy := &PHY{Addr: addr, MDIO: m, clock: c, reset: rc}
	if err = c.Enable(); err != nil {
		log.Print(Name, ": failed to enable clock: ", err)
		return nil, err
	}
	if err = rc.Deassert(); err != nil {
		c.Disable()
		return nil, err
	}
	id, err := ReadID(m, addr)
	if err == nil && !Match(id) {
		err = fmt.Errorf("%#02x: id %#08x: %w", addr, id, ErrNotFound)
	}
	if err != nil {
		phy.Remove()
		return nil, err
	}
	log.Printf("%s: id %#08x at %#02x", Name, id, addr)
	return phy, nil
}

func (phy *PHY) write(reg uint8, v uint16) error {
	return phy.MDIO.WriteReg(phy.Addr, reg, v)
}

func (phy *PHY) modify(reg uint8, clear, set uint16) error {
	v, err := phy.MDIO.ReadReg(phy.Addr, reg)
	if err != nil {
		return err
	}
	return phy.write(reg, v&^clear|set)
}

func (phy *PHY) page(n uint16) error { return phy.write(regPage, n<<8) }

// modifyMMD is a Clause 45 read-modify-write through registers 13 and 14.
func (phy *PHY) modifyMMD(dev uint16, reg uint16, clear, set uint16) error {
	for _, w := range []struct {
		reg uint8
		v   uint16
	}{
		{regMMDCtl, dev},
		{regMMDDat, reg},
		{regMMDCtl, mmdData | dev},
	} {
		if err := phy.write(w.reg, w.v); err != nil {
			return err
		}
	}
	return phy.modify(regMMDDat, clear, set)
}

// ConfigInit applies the vendor analog tuning and disables EEE.
func (phy *PHY) ConfigInit() error {
	steps := []func() error{
		func() error { return phy.page(1) },
		// disable APS
		func() error { return phy.write(0x12, 0x4824) },
		func() error { return phy.page(2) },
		func() error { return phy.write(0x18, 0x0000) },
		func() error { return phy.page(6) },
		func() error { return phy.write(0x14, 0x708f) },
		func() error { return phy.write(0x13, 0xf000) },
		func() error { return phy.write(0x15, 0x1530) },
		func() error { return phy.page(8) },
		func() error { return phy.write(0x18, 0x00bc) },
		func() error { return phy.page(1) },
		// intelligent EEE off
		func() error { return phy.modify(0x17, 1<<3, 0) },
		func() error { return phy.page(2) },
		func() error { return phy.write(0x18, 0x0000) },
		func() error { return phy.page(0) },
		// 802.3az EEE advertisement off
		func() error { return phy.modifyMMD(7, 0x3c, 1<<1, 0) },
		// H6 specific
		func() error { return phy.modify(0x13, 0, 1<<12) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("%s: config step %d: %w", Name, i, err)
		}
	}
	return nil
}

// Remove holds the PHY in reset and gates its clock.
func (phy *PHY) Remove() error {
	err := phy.reset.Assert()
	if xerr := phy.clock.Disable(); err == nil {
		err = xerr
	}
	return err
}
