// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ephyctl configures the AC200 ethernet PHY block and provides its
// reset line and gated clock.
//
// The reset line and the clock gate are two bits of SysEphyCtl0. Both are
// updated through one shadow of that register, under one lock, so neither
// disturbs the other's last written value.
package ephyctl

import (
	"errors"
	"sync"

	"github.com/platinasystems/ac200/ac200"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/config"
	"github.com/platinasystems/ac200/internal/mfd"
	"github.com/platinasystems/ac200/internal/nvmem"
	"github.com/platinasystems/ac200/internal/regmap"
	"github.com/platinasystems/ac200/internal/reset"
	"github.com/platinasystems/log"
)

const (
	Name       = "ac200-ephy-ctl"
	GateName   = "ac200-ephy-ctl-gate"
	Compatible = "x-powers,ac200-ephy-ctl"
)

const (
	SysEphyCtl0  = 0x0014
	ResetInvalid = 1 << 0
	SysClkGating = 1

	SysEphyCtl1 = 0x0016
	MiiIOEn     = 1 << 0
	LnkLedIOEn  = 1 << 1
	SpdLedIOEn  = 1 << 2
	DpxLedIOEn  = 1 << 3

	EphyCtl = 0x6000
)

// Property names read from the configuration source.
const (
	PropPhyMode     = "phy-mode"
	PropLedPolarity = "x-powers,led-polarity"
	PropPhyAddress  = "phy-address"
)

const CalibrationCell = "calibration"

// ctl0 shadows SysEphyCtl0.
type ctl0 struct {
	mu   sync.Mutex
	regs *regmap.Map
	v    uint16
}

func (c *ctl0) write(v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.regs.Write(SysEphyCtl0, v); err != nil {
		return err
	}
	c.v = v
	return nil
}

func (c *ctl0) UpdateBits(mask, v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	nv := c.v&^mask | v&mask
	if err := c.regs.Write(SysEphyCtl0, nv); err != nil {
		return err
	}
	c.v = nv
	return nil
}

func (c *ctl0) TestBits(mask uint16) (bool, error) {
	return c.regs.TestBits(SysEphyCtl0, mask)
}

// Shadow is the last value written to SysEphyCtl0.
func (c *ctl0) Shadow() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Parent is the attached chip the block belongs to.
type Parent interface {
	Regmap() *regmap.Map
	Clock() clk.Clock
}

type Config struct {
	Regmap *regmap.Map
	// Parent is the chip reference clock.
	Parent clk.Clock
	Cells  nvmem.Store
	Source config.Source
	Resets *reset.Registry
	Clocks *clk.Registry
}

type Device struct {
	regs     *regmap.Map
	ctl0     *ctl0
	gate     *clk.Gate
	settings Settings
	resets   *reset.Registry
	clocks   *clk.Registry

	detach sync.Once
	err    error
}

func (d *Device) Settings() Settings { return d.settings }

func (d *Device) Gate() *clk.Gate { return d.gate }

// Write writes a chip register. SysEphyCtl0 goes through the shadow so
// later gate and reset updates keep the written bits.
func (d *Device) Write(addr, v uint16) error {
	if addr == SysEphyCtl0 {
		return d.ctl0.write(v)
	}
	return d.regs.Write(addr, v)
}

// ReadSettings gathers the control value inputs from the calibration cells,
// the configuration source and the parent clock rate. No register is
// touched; Regmap and the registries may be nil.
func ReadSettings(cfg *Config) (s Settings, err error) {
	s.Calibration, err = nvmem.Load(cfg.Cells, CalibrationCell)
	if err != nil {
		log.Print(Name, ": unable to read calibration data: ", err)
		return s, ac200.Fail(ac200.ErrCalibration, Name, "calibration", err)
	}

	mode, err := cfg.Source.String(PropPhyMode)
	if err != nil {
		log.Print(Name, ": unable to read PHY connection mode")
		return s, ac200.Fail(ac200.ErrConfig, Name, PropPhyMode, err)
	}
	if s.Mode, err = ParseMode(mode); err != nil {
		log.Print(Name, ": ", err)
		return s, ac200.Fail(ac200.ErrConfig, Name, PropPhyMode, err)
	}

	pol, err := cfg.Source.Uint32(PropLedPolarity)
	if err != nil {
		log.Print(Name, ": unable to read LED polarity setting")
		return s, ac200.Fail(ac200.ErrConfig, Name, PropLedPolarity, err)
	}
	s.LedActiveLow = pol == GpioActiveLow

	s.Addr, err = cfg.Source.Uint32(PropPhyAddress)
	if err != nil {
		log.Print(Name, ": unable to read PHY address value")
		return s, ac200.Fail(ac200.ErrConfig, Name, PropPhyAddress, err)
	}

	s.RefRate, err = cfg.Parent.Rate()
	if err != nil {
		return s, ac200.Fail(ac200.ErrClock, Name, "rate", err)
	}
	return s, nil
}

// Attach programs the block with the PHY held in reset and its clock gated,
// then registers the reset line and the gate clock. A consumer must
// deassert the line before the PHY responds.
func Attach(cfg *Config) (*Device, error) {
	if cfg.Regmap == nil || cfg.Parent == nil || cfg.Cells == nil ||
		cfg.Source == nil || cfg.Resets == nil || cfg.Clocks == nil {
		return nil, ac200.Fail(ac200.ErrConfig, Name, "attach",
			errors.New("missing collaborator"))
	}
	s, err := ReadSettings(cfg)
	if err != nil {
		return nil, err
	}
	d := &Device{
		regs:     cfg.Regmap,
		ctl0:     &ctl0{regs: cfg.Regmap},
		settings: s,
		resets:   cfg.Resets,
		clocks:   cfg.Clocks,
	}
	d.gate = &clk.Gate{
		ClockName: GateName,
		Parent:    cfg.Parent,
		Reg:       d.ctl0,
		Bit:       SysClkGating,
	}

	// Assert reset and gate clock, to disable PHY for now
	if err = d.ctl0.write(0); err != nil {
		return nil, ac200.Fail(ac200.ErrBus, Name, "ctl0", err)
	}
	err = d.regs.Write(SysEphyCtl1, MiiIOEn|LnkLedIOEn|SpdLedIOEn|DpxLedIOEn)
	if err != nil {
		return nil, ac200.Fail(ac200.ErrBus, Name, "ctl1", err)
	}
	if err = d.regs.Write(EphyCtl, s.Value()); err != nil {
		d.disable()
		return nil, ac200.Fail(ac200.ErrBus, Name, "ctl", err)
	}

	err = d.resets.Register(&reset.Controller{
		Name:     Name,
		Ops:      d,
		NrResets: 1,
		NCells:   0,
	})
	if err != nil {
		log.Print(Name, ": unable to register reset controller: ", err)
		d.disable()
		return nil, ac200.Fail(ac200.ErrRegistration, Name, "reset", err)
	}
	if err = d.clocks.Add(d.gate); err != nil {
		log.Print(Name, ": unable to register gate clock: ", err)
		d.resets.Unregister(Name)
		d.disable()
		return nil, ac200.Fail(ac200.ErrRegistration, Name, "clock", err)
	}

	log.Printf("%s: %v", Name, Decode(s.Value()))
	return d, nil
}

// disable shuts the PHY down, drops its IO enables, and asserts its reset
// with the clock gated. Best effort, the first error is returned.
func (d *Device) disable() error {
	err := d.regs.Write(EphyCtl, Shutdown)
	if xerr := d.regs.Write(SysEphyCtl1, 0); err == nil {
		err = xerr
	}
	if xerr := d.ctl0.write(0); err == nil {
		err = xerr
	}
	return err
}

// Detach withdraws the reset line and clock and shuts the block down.
func (d *Device) Detach() error {
	d.detach.Do(func() {
		d.clocks.Remove(GateName)
		d.resets.Unregister(Name)
		if err := d.disable(); err != nil {
			d.err = ac200.Fail(ac200.ErrBus, Name, "detach", err)
			log.Print(d.err)
		}
	})
	return d.err
}

// Remove implements mfd.Remover.
func (d *Device) Remove() error { return d.Detach() }

func (d *Device) Assert(id uint) error {
	return d.ctl0.UpdateBits(ResetInvalid, 0)
}

func (d *Device) Deassert(id uint) error {
	return d.ctl0.UpdateBits(ResetInvalid, ResetInvalid)
}

// Reset pulses the line. The I2C transfers between the two writes are
// delay enough.
func (d *Device) Reset(id uint) error {
	if err := d.Assert(id); err != nil {
		return err
	}
	return d.Deassert(id)
}

// Status reports whether the PHY is out of reset.
func (d *Device) Status(id uint) (bool, error) {
	return d.ctl0.TestBits(ResetInvalid)
}

// Driver binds Attach to cells published by an attached ac200.
func Driver(cells nvmem.Store, src config.Source, resets *reset.Registry,
	clocks *clk.Registry) mfd.Probe {
	return func(md *mfd.Device) (mfd.Remover, error) {
		p, ok := md.Parent.(Parent)
		if !ok {
			return nil, ac200.Fail(ac200.ErrConfig, Name, "probe",
				errors.New("parent is not an ac200"))
		}
		d, err := Attach(&Config{
			Regmap: p.Regmap(),
			Parent: p.Clock(),
			Cells:  cells,
			Source: src,
			Resets: resets,
			Clocks: clocks,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
