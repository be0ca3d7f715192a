// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ac200 brings up the X-Powers AC200 companion chip (audio codec,
// ethernet PHY, eFuse and RTC co-packaged with the Allwinner H6) and
// publishes its functional blocks as child devices.
//
// The chip's 16-bit registers are reached over I2C through 256 register
// windows; the window is chosen by writing the page to AddrHigh, which is
// decoded on every page.
package ac200

import (
	"sync"
	"time"

	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/mfd"
	"github.com/platinasystems/ac200/internal/nvmem"
	"github.com/platinasystems/ac200/internal/regmap"
	"github.com/platinasystems/log"
)

const Name = "ac200"

const (
	SysControl    = 0x0002
	SysControlRun = 1 << 0

	// undocumented
	SysBandgapCtl  = 0x0050
	BandgapPattern = 0x8280

	AddrHigh    = 0xFE
	MaxRegister = 0xA1F2
)

// SettleDelay follows the clock enable before the first register access.
// The vendor driver sleeps this long; there is no documented minimum.
const SettleDelay = 40 * time.Millisecond

// BandgapCell is the nvmem cell holding the bandgap trim.
const BandgapCell = "bandgap"

// Cells are the child devices published on attach.
var Cells = []mfd.Cell{
	{Name: "ac200-codec", Compatible: "x-powers,ac200-codec"},
	{Name: "ac200-ephy-ctl", Compatible: "x-powers,ac200-ephy-ctl"},
}

// RegmapConfig describes the chip's register space.
func RegmapConfig() *regmap.Config {
	return &regmap.Config{
		Name:        Name,
		Stride:      2,
		MaxRegister: MaxRegister,
		Range: regmap.Range{
			Min:          0,
			Max:          MaxRegister,
			Selector:     AddrHigh,
			SelectorMask: 0xff,
			WindowStart:  0,
			WindowLen:    256,
		},
	}
}

// Config lists the collaborators of a chip instance.
type Config struct {
	Bus       regmap.Bus
	Clock     clk.Clock
	Cells     nvmem.Store
	Registrar mfd.Registrar

	// Settle overrides SettleDelay when non-zero.
	Settle time.Duration
	// Sleep is time.Sleep unless set.
	Sleep func(time.Duration)
}

// Device is an attached chip.
type Device struct {
	regs    *regmap.Map
	clock   clk.Clock
	cells   mfd.Registrar
	bandgap uint16

	detach sync.Once
	err    error
}

func (d *Device) Regmap() *regmap.Map { return d.regs }

func (d *Device) Clock() clk.Clock { return d.clock }

// Bandgap returns the trim read at attach.
func (d *Device) Bandgap() uint16 { return d.bandgap }

// Attach runs the power up sequence and publishes the child devices. On
// failure the clock is left disabled and nothing is published.
func Attach(cfg *Config) (*Device, error) {
	if cfg.Bus == nil || cfg.Clock == nil || cfg.Cells == nil ||
		cfg.Registrar == nil {
		return nil, Fail(ErrConfig, Name, "attach", errMissing)
	}
	regs, err := regmap.New(cfg.Bus, RegmapConfig())
	if err != nil {
		return nil, Fail(ErrConfig, Name, "regmap", err)
	}
	d := &Device{
		regs:  regs,
		clock: cfg.Clock,
		cells: cfg.Registrar,
	}

	d.bandgap, err = nvmem.Load(cfg.Cells, BandgapCell)
	if err != nil {
		log.Print(Name, ": unable to read bandgap data: ", err)
		return nil, Fail(ErrCalibration, Name, "bandgap", err)
	}

	if err = d.clock.Enable(); err != nil {
		log.Print(Name, ": can't enable the clock: ", err)
		return nil, Fail(ErrClock, Name, "clock", err)
	}

	settle, sleep := cfg.Settle, cfg.Sleep
	if settle == 0 {
		settle = SettleDelay
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(settle)

	if err = d.regs.Write(SysControl, 0); err != nil {
		d.clock.Disable()
		return nil, Fail(ErrBus, Name, "reset", err)
	}
	if err = d.regs.Write(SysControl, SysControlRun); err != nil {
		d.clock.Disable()
		return nil, Fail(ErrBus, Name, "run", err)
	}

	if d.bandgap != 0 {
		v := uint16(BandgapPattern) | d.bandgap&0xff
		if err = d.regs.Write(SysBandgapCtl, v); err != nil {
			d.stop()
			return nil, Fail(ErrBus, Name, "bandgap", err)
		}
	}

	if err = d.cells.AddDevices(d, Cells); err != nil {
		log.Print(Name, ": failed to add MFD devices: ", err)
		d.stop()
		return nil, Fail(ErrRegistration, Name, "cells", err)
	}

	log.Printf("%s: attached, bandgap %#04x", Name, d.bandgap)
	return d, nil
}

// stop halts the chip then gates its clock, in that order.
func (d *Device) stop() error {
	err := d.regs.Write(SysControl, 0)
	if xerr := d.clock.Disable(); err == nil {
		err = xerr
	}
	return err
}

// Detach removes the children and powers the chip down. Subsequent calls
// return the first result.
func (d *Device) Detach() error {
	d.detach.Do(func() {
		err := d.cells.RemoveDevices(d)
		if xerr := d.stop(); err == nil {
			err = xerr
		}
		if err != nil {
			d.err = Fail(ErrBus, Name, "detach", err)
			log.Print(d.err)
		}
	})
	return d.err
}
