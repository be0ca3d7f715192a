// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ephyctl

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/platinasystems/ac200/ac200"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/config"
	"github.com/platinasystems/ac200/internal/mfd"
	"github.com/platinasystems/ac200/internal/nvmem"
	"github.com/platinasystems/ac200/internal/regmap"
	"github.com/platinasystems/ac200/internal/regmap/regmaptest"
	"github.com/platinasystems/ac200/internal/reset"
)

type fixture struct {
	bus    *regmaptest.Bus
	cfg    Config
	resets reset.Registry
	clocks clk.Registry
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{bus: regmaptest.New(ac200.AddrHigh, 256)}
	regs, err := regmap.New(f.bus, ac200.RegmapConfig())
	if err != nil {
		t.Fatal(err)
	}
	f.cfg = Config{
		Regmap: regs,
		Parent: &clk.Fixed{ClockName: "osc24M", Hz: 24000000},
		Cells:  nvmem.Map{CalibrationCell: {0x0a, 0x00}},
		Source: config.Map{
			PropPhyMode:     "rmii",
			PropLedPolarity: "1",
			PropPhyAddress:  "5",
		},
		Resets: &f.resets,
		Clocks: &f.clocks,
	}
	return f
}

func (f *fixture) attach(t *testing.T) *Device {
	d, err := Attach(&f.cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSettingsValue(t *testing.T) {
	for _, x := range []struct {
		s    Settings
		want uint16
	}{
		{Settings{Mode: RMII, LedActiveLow: true, Addr: 5,
			Calibration: 0x0a, RefRate: ClkSelRate}, 0xd856},
		{Settings{Mode: MII, Addr: 1, RefRate: 25000000}, 0x3010},
		{Settings{Mode: MII, Addr: 0x21, Calibration: 0xd}, 0x0010},
	} {
		if got := x.s.Value(); got != x.want {
			t.Errorf("wrong: %+v: %#04x, want %#04x", x.s, got, x.want)
		}
	}
}

func TestDecode(t *testing.T) {
	want := Fields{
		LedActiveLow: true,
		Clk24M:       true,
		Addr:         5,
		Mode:         RMII,
		Calib:        0xd,
	}
	if diff := cmp.Diff(want, Decode(0xd856)); diff != "" {
		t.Error("wrong (-want +got):\n", diff)
	}
	const s = "mode rmii, addr 0x05, led active-low, clk 24MHz, calib 0xd, shutdown false"
	if got := Decode(0xd856).String(); got != s {
		t.Error("wrong:", got)
	}
	if f := Decode(Shutdown); !f.Shutdown || f.Mode != MII {
		t.Error("wrong:", f)
	}
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"mii": MII, "RMII": RMII, "rmii": RMII} {
		if m, err := ParseMode(s); err != nil || m != want {
			t.Error("wrong:", s, m, err)
		}
	}
	for _, s := range []string{"", "rgmii", "sgmii"} {
		if _, err := ParseMode(s); err == nil {
			t.Error("wrong: accepted", s)
		}
	}
}

func TestAttach(t *testing.T) {
	f := newFixture(t)
	d := f.attach(t)
	for _, x := range []struct {
		addr uint16
		want []uint16
	}{
		{SysEphyCtl0, []uint16{0}},
		{SysEphyCtl1, []uint16{0xf}},
		{EphyCtl, []uint16{0xd856}},
	} {
		if diff := cmp.Diff(x.want, f.bus.Writes(x.addr)); diff != "" {
			t.Errorf("wrong %#04x: %s", x.addr, diff)
		}
	}
	var order []uint16
	for _, op := range f.bus.Ops() {
		if op.Write && op.Reg != ac200.AddrHigh {
			order = append(order, op.Page<<8|uint16(op.Reg))
		}
	}
	want := []uint16{SysEphyCtl0, SysEphyCtl1, EphyCtl}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Error("wrong order (-want +got):\n", diff)
	}
	if s := d.Settings(); s.Mode != RMII || s.Addr != 5 || !s.LedActiveLow {
		t.Error("wrong settings:", s)
	}
	if c, err := f.clocks.Get(GateName); err != nil || c != clk.Clock(d.Gate()) {
		t.Error("wrong gate:", c, err)
	}
	if _, err := f.resets.Get(Name); err != nil {
		t.Error("wrong reset:", err)
	}
}

func TestAttachConfig(t *testing.T) {
	for _, x := range []struct {
		name string
		edit func(*Config)
		kind error
	}{
		{"mode", func(c *Config) {
			c.Source = config.Map{PropPhyMode: "rgmii",
				PropLedPolarity: "0", PropPhyAddress: "1"}
		}, ac200.ErrConfig},
		{"no mode", func(c *Config) {
			c.Source = config.Map{PropLedPolarity: "0", PropPhyAddress: "1"}
		}, ac200.ErrConfig},
		{"no address", func(c *Config) {
			c.Source = config.Map{PropPhyMode: "mii", PropLedPolarity: "0"}
		}, ac200.ErrConfig},
		{"no polarity", func(c *Config) {
			c.Source = config.Map{PropPhyMode: "mii", PropPhyAddress: "1"}
		}, ac200.ErrConfig},
		{"short cell", func(c *Config) {
			c.Cells = nvmem.Map{CalibrationCell: {1}}
		}, ac200.ErrCalibration},
		{"no cell", func(c *Config) {
			c.Cells = nvmem.Map{}
		}, ac200.ErrCalibration},
		{"no registry", func(c *Config) {
			c.Resets = nil
		}, ac200.ErrConfig},
	} {
		f := newFixture(t)
		x.edit(&f.cfg)
		d, err := Attach(&f.cfg)
		if d != nil || !errors.Is(err, x.kind) {
			t.Errorf("wrong: %s: %v", x.name, err)
		}
		if n := f.bus.WriteCount(); n != 0 {
			t.Errorf("wrong: %s: %d writes", x.name, n)
		}
		if _, err = f.resets.Get(Name); !errors.Is(err, reset.ErrNotFound) {
			t.Errorf("wrong: %s: reset registered", x.name)
		}
	}
}

var shutdown = map[uint16]uint16{
	EphyCtl:     Shutdown,
	SysEphyCtl1: 0,
	SysEphyCtl0: 0,
}

func checkShutdown(t *testing.T, f *fixture) {
	t.Helper()
	for addr, want := range shutdown {
		w := f.bus.Writes(addr)
		if len(w) == 0 || w[len(w)-1] != want {
			t.Errorf("wrong %#04x: %#x", addr, w)
		}
	}
}

func TestAttachCtlFails(t *testing.T) {
	f := newFixture(t)
	fail := f.bus.FailWrite(EphyCtl)
	first := true
	f.bus.Fail = func(op regmaptest.Op) error {
		if err := fail(op); err != nil && first {
			first = false
			return err
		}
		return nil
	}
	_, err := Attach(&f.cfg)
	if !errors.Is(err, ac200.ErrBus) || !errors.Is(err, regmaptest.ErrInjected) {
		t.Fatal("wrong:", err)
	}
	checkShutdown(t, f)
}

func TestAttachIOFails(t *testing.T) {
	f := newFixture(t)
	f.bus.Fail = f.bus.FailWrite(SysEphyCtl1)
	if _, err := Attach(&f.cfg); !errors.Is(err, ac200.ErrBus) {
		t.Fatal("wrong:", err)
	}
	if w := f.bus.Writes(EphyCtl); len(w) != 0 {
		t.Error("wrong: control written", w)
	}
}

func TestAttachRegistrationFails(t *testing.T) {
	f := newFixture(t)
	f.resets.Register(&reset.Controller{Name: Name, Ops: nopOps{}, NrResets: 1})
	if _, err := Attach(&f.cfg); !errors.Is(err, ac200.ErrRegistration) {
		t.Fatal("wrong:", err)
	}
	checkShutdown(t, f)

	f = newFixture(t)
	f.clocks.Add(&clk.Fixed{ClockName: GateName})
	if _, err := Attach(&f.cfg); !errors.Is(err, ac200.ErrRegistration) {
		t.Fatal("wrong:", err)
	}
	checkShutdown(t, f)
	if _, err := f.resets.Get(Name); !errors.Is(err, reset.ErrNotFound) {
		t.Error("wrong: reset left registered")
	}
}

type nopOps struct{}

func (nopOps) Assert(uint) error   { return nil }
func (nopOps) Deassert(uint) error { return nil }

func TestResetLine(t *testing.T) {
	f := newFixture(t)
	f.attach(t)
	rc, err := f.resets.Get(Name)
	if err != nil {
		t.Fatal(err)
	}
	if on, err := rc.Status(); err != nil || on {
		t.Error("wrong: released after attach", err)
	}
	if err = rc.Reset(); err != nil {
		t.Fatal(err)
	}
	if on, err := rc.Status(); err != nil || !on {
		t.Error("wrong: held after pulse", err)
	}
	w := f.bus.Writes(SysEphyCtl0)
	if diff := cmp.Diff([]uint16{0, 0, ResetInvalid}, w); diff != "" {
		t.Error("wrong pulse:", diff)
	}
	if err = rc.Assert(); err != nil {
		t.Fatal(err)
	}
	if on, _ := rc.Status(); on {
		t.Error("wrong: released after assert")
	}
}

func TestResetArgs(t *testing.T) {
	f := newFixture(t)
	f.attach(t)
	if _, err := f.resets.Get(Name, 0); !errors.Is(err, reset.ErrArgs) {
		t.Error("wrong:", err)
	}
}

func TestGateKeepsReset(t *testing.T) {
	f := newFixture(t)
	d := f.attach(t)
	rc, err := f.resets.Get(Name)
	if err != nil {
		t.Fatal(err)
	}
	gate := d.Gate()
	for _, step := range []struct {
		name string
		do   func() error
		want uint16
	}{
		{"deassert", rc.Deassert, ResetInvalid},
		{"enable", gate.Enable, ResetInvalid | 1<<SysClkGating},
		{"assert", rc.Assert, 1 << SysClkGating},
		{"deassert", rc.Deassert, ResetInvalid | 1<<SysClkGating},
		{"disable", gate.Disable, ResetInvalid},
	} {
		if err = step.do(); err != nil {
			t.Fatal(step.name, err)
		}
		if v := f.bus.Value(SysEphyCtl0); v != step.want {
			t.Errorf("wrong after %s: %#x, want %#x", step.name, v, step.want)
		}
	}
	if on, err := gate.Enabled(); err != nil || on {
		t.Error("wrong gate state:", on, err)
	}
	if hz, err := gate.Rate(); err != nil || hz != 24000000 {
		t.Error("wrong rate:", hz, err)
	}
}

func TestShadowFailure(t *testing.T) {
	f := newFixture(t)
	d := f.attach(t)
	f.bus.Fail = f.bus.FailWrite(SysEphyCtl0)
	if err := d.Deassert(0); !errors.Is(err, regmaptest.ErrInjected) {
		t.Fatal("wrong:", err)
	}
	if s := d.ctl0.Shadow(); s != 0 {
		t.Error("wrong shadow:", s)
	}
	f.bus.Fail = nil
	if err := d.Gate().Enable(); err != nil {
		t.Fatal(err)
	}
	if v := f.bus.Value(SysEphyCtl0); v != 1<<SysClkGating {
		t.Errorf("wrong: %#x", v)
	}
}

func TestWriteKeepsShadow(t *testing.T) {
	f := newFixture(t)
	d := f.attach(t)
	if err := d.Write(SysEphyCtl0, ResetInvalid); err != nil {
		t.Fatal(err)
	}
	if err := d.Gate().Enable(); err != nil {
		t.Fatal(err)
	}
	if v := f.bus.Value(SysEphyCtl0); v != ResetInvalid|1<<SysClkGating {
		t.Errorf("wrong: %#x", v)
	}
	if on, err := d.Status(0); err != nil || !on {
		t.Error("wrong: line back in reset", err)
	}
	if err := d.Write(EphyCtl, Shutdown); err != nil {
		t.Fatal(err)
	}
	if v := f.bus.Value(EphyCtl); v != Shutdown {
		t.Errorf("wrong control: %#x", v)
	}
	if s := d.ctl0.Shadow(); s != ResetInvalid|1<<SysClkGating {
		t.Errorf("wrong shadow: %#x", s)
	}
}

func TestDetach(t *testing.T) {
	f := newFixture(t)
	d := f.attach(t)
	f.bus.Clear()
	if err := d.Detach(); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(); err != nil {
		t.Fatal(err)
	}
	checkShutdown(t, f)
	if n := f.bus.WriteCount(); n != 3 {
		t.Error("wrong: repeated teardown", n)
	}
	if _, err := f.clocks.Get(GateName); !errors.Is(err, clk.ErrNotFound) {
		t.Error("wrong: gate left registered")
	}
	if _, err := f.resets.Get(Name); !errors.Is(err, reset.ErrNotFound) {
		t.Error("wrong: reset left registered")
	}
}

func TestDriver(t *testing.T) {
	var (
		bus    = regmaptest.New(ac200.AddrHigh, 256)
		cells  mfd.Bus
		resets reset.Registry
		clocks clk.Registry
	)
	cells.Driver(Compatible, Driver(
		nvmem.Map{CalibrationCell: {0x0a, 0x00}},
		config.Map{PropPhyMode: "mii", PropLedPolarity: "0", PropPhyAddress: "1"},
		&resets, &clocks))
	chip, err := ac200.Attach(&ac200.Config{
		Bus:       bus,
		Clock:     &clk.Fixed{ClockName: "osc24M", Hz: 24000000},
		Cells:     nvmem.Map{ac200.BandgapCell: {0, 0}},
		Registrar: &cells,
		Sleep:     func(time.Duration) {},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint16{0xd014}, bus.Writes(EphyCtl)); diff != "" {
		t.Error("wrong control:", diff)
	}
	if _, err = resets.Get(Name); err != nil {
		t.Error("wrong:", err)
	}
	if err = chip.Detach(); err != nil {
		t.Fatal(err)
	}
	if _, err = resets.Get(Name); !errors.Is(err, reset.ErrNotFound) {
		t.Error("wrong: reset outlived parent")
	}
	w := bus.Writes(EphyCtl)
	if w[len(w)-1] != Shutdown {
		t.Error("wrong: not shut down", w)
	}
}

func TestDriverParent(t *testing.T) {
	var cells mfd.Bus
	cells.Driver(Compatible, Driver(nvmem.Map{}, config.Map{},
		&reset.Registry{}, &clk.Registry{}))
	err := cells.AddDevices("not a chip", ac200.Cells)
	if !errors.Is(err, ac200.ErrConfig) {
		t.Error("wrong:", err)
	}
}
