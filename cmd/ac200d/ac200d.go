// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ac200d attaches the AC200, serves its EPHY reset line and
// registers over RPC, and publishes the line state to redis.
package ac200d

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"strconv"
	"sync"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/ac200/ac200"
	"github.com/platinasystems/ac200/ac200/ephy"
	"github.com/platinasystems/ac200/ac200/ephyctl"
	"github.com/platinasystems/ac200/cmd"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/config"
	"github.com/platinasystems/ac200/internal/fdtgpio"
	"github.com/platinasystems/ac200/internal/mdio"
	"github.com/platinasystems/ac200/internal/mfd"
	"github.com/platinasystems/ac200/internal/nvmem"
	"github.com/platinasystems/ac200/internal/regmap"
	"github.com/platinasystems/ac200/internal/reset"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	machine "github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"golang.org/x/sync/errgroup"
)

const Name = "ac200d"

const (
	ChipCompatible = "x-powers,ac200"
	PropReg        = "reg"
	PropClockRate  = "clock-frequency"
	PropI2CBus     = "x-powers,i2c-bus"

	DefaultBus     = 0
	DefaultAddr    = 0x10
	DefaultRate    = 24000000
	DefaultNvmem   = "/sys/bus/nvmem/devices/sunxi-sid0/cells"
	DefaultNvmemDB = "ac200.nvmem"
	DefaultPoll    = 5 * time.Second
)

// NewRpcServer listens on the daemon's socket.
var NewRpcServer = func(name string) (io.Closer, error) {
	return atsock.NewRpcServer(name)
}

// Register publishes a service on the rpc server that atsock serves.
var Register = rpc.Register

var Params = []interface{}{
	"-bus", "-addr", "-dtb", "-nvmem", "-redis",
	"-phy-mode", "-led-polarity", "-phy-address",
	"-clk-rate", "-clk-gpio", "-poll", "-phy-if",
}

type Command struct {
	// Init, if set, runs once before the first Main.
	Init func()
	init sync.Once

	mutex  sync.Mutex
	chip   *ac200.Device
	phy    *ephy.PHY
	rpc    io.Closer
	cancel context.CancelFunc

	registered  sync.Once
	registerErr error

	regs   Regs
	resets reset.Registry
	clocks clk.Registry
	cells  mfd.Bus
}

func (*Command) String() string { return Name }

func (*Command) Usage() string {
	return Name + " [-n] [-bus N] [-addr ADDR] [-dtb FILE] [-nvmem DIR] " +
		"[-redis ADDR] [-phy-mode MODE] [-led-polarity 0|1] " +
		"[-phy-address N] [-clk-rate HZ] [-clk-gpio PIN] [-poll DURATION] " +
		"[-phy-if IFNAME]"
}

func (*Command) Apropos() string { return "AC200 companion chip daemon" }

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

// Setup is the daemon configuration gathered from parameters and the
// device tree.
type Setup struct {
	Bus, Addr int
	Rate      uint64
	ClkGpio   string
	Nvmem     string
	Redis     string
	Poll      time.Duration
	// PhyIf is the interface whose MDIO bus reaches the PHY; empty leaves
	// the PHY to another driver.
	PhyIf string
	// Ephy is the source of the EPHY control properties.
	Ephy config.Source
}

// Configure merges parameters over the device tree, when one is given.
// Parameters win.
func Configure(args []string) (*Setup, []string, error) {
	parm, args := parms.New(args, Params...)
	p := parm.ByName
	s := &Setup{
		Bus:   DefaultBus,
		Addr:  DefaultAddr,
		Rate:  DefaultRate,
		Nvmem: DefaultNvmem,
		Redis: p["-redis"],
		Poll:  DefaultPoll,
	}
	chipParams := config.Map{
		PropI2CBus:    p["-bus"],
		PropReg:       p["-addr"],
		PropClockRate: p["-clk-rate"],
	}
	ephyParams := config.Map{
		ephyctl.PropPhyMode:     p["-phy-mode"],
		ephyctl.PropLedPolarity: p["-led-polarity"],
		ephyctl.PropPhyAddress:  p["-phy-address"],
	}
	chip := config.Overlay{chipParams}
	ephy := config.Overlay{ephyParams}
	if fn := p["-dtb"]; len(fn) > 0 {
		t, err := config.ParseFile(fn)
		if err != nil {
			return nil, args, err
		}
		if n, err := config.Compatible(t, ChipCompatible); err == nil {
			chip = append(chip, n)
		}
		if n, err := config.Compatible(t, ephyctl.Compatible); err == nil {
			ephy = append(ephy, n)
		}
		fdtgpio.Load(t)
	}
	s.Ephy = ephy

	if v, err := chip.Uint32(PropI2CBus); err == nil {
		s.Bus = int(v)
	} else if !isNotFound(err) {
		return nil, args, err
	}
	if v, err := chip.Uint32(PropReg); err == nil {
		s.Addr = int(v)
	} else if !isNotFound(err) {
		return nil, args, err
	}
	if v, err := chip.Uint32(PropClockRate); err == nil {
		s.Rate = uint64(v)
	} else if !isNotFound(err) {
		return nil, args, err
	}
	if len(p["-nvmem"]) > 0 {
		s.Nvmem = p["-nvmem"]
	}
	s.ClkGpio = p["-clk-gpio"]
	if len(p["-poll"]) > 0 {
		d, err := time.ParseDuration(p["-poll"])
		if err != nil {
			return nil, args, fmt.Errorf("-poll: %w", err)
		}
		if d <= 0 {
			return nil, args, fmt.Errorf("-poll %s: must be positive", d)
		}
		s.Poll = d
	}
	s.PhyIf = p["-phy-if"]
	return s, args, nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, config.ErrNotFound)
}

func (s *Setup) pool() *redis.Pool {
	if len(s.Redis) == 0 {
		return nil
	}
	addr := s.Redis
	return &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
}

// Sink is the redis server at -redis or, without one, the goes machine
// redis when it is up. A nil Sink disables publishing.
func (s *Setup) Sink(pool *redis.Pool) (Sink, error) {
	if pool != nil {
		return &HashSink{Pool: pool, Hash: Hash}, nil
	}
	if err := machine.IsReady(); err != nil {
		return nil, nil
	}
	pub, err := publisher.New()
	if err != nil {
		return nil, err
	}
	return &MachineSink{Pub: pub}, nil
}

// Store chains the sysfs cells with the redis hash at -redis or, without
// one, the goes machine redis when it is up.
func (s *Setup) Store(pool *redis.Pool) nvmem.Store {
	chain := nvmem.Chain{nvmem.Sysfs{Dir: s.Nvmem}}
	if pool != nil {
		chain = append(chain, &nvmem.Redis{Pool: pool, Hash: DefaultNvmemDB})
	} else if machine.IsReady() == nil {
		chain = append(chain, nvmem.Machine{Hash: DefaultNvmemDB})
	}
	return chain
}

// Clock is the reference oscillator, with its enable pin if named.
func (s *Setup) Clock() (*clk.Fixed, error) {
	c := &clk.Fixed{ClockName: "ac200-osc", Hz: s.Rate}
	if len(s.ClkGpio) > 0 {
		if len(gpio.Pins) == 0 {
			return nil, fmt.Errorf("-clk-gpio %s: needs -dtb", s.ClkGpio)
		}
		pin, err := fdtgpio.Lookup(s.ClkGpio)
		if err != nil {
			return nil, err
		}
		c.Pin = pin
	}
	return c, nil
}

func (s *Setup) String() string {
	return fmt.Sprintf("i2c-%d@%#02x, %s Hz, nvmem %s", s.Bus, s.Addr,
		strconv.FormatUint(s.Rate, 10), s.Nvmem)
}

// Main attaches the chip and serves until Close. With -n it only checks the
// configuration.
func (c *Command) Main(args ...string) error {
	if c.Init != nil {
		c.init.Do(c.Init)
	}
	flag, args := flags.New(args, "-n")
	s, args, err := Configure(args)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	if flag.ByName["-n"] {
		st, err := ephySettings(s, s.Store(s.pool()))
		if err != nil {
			return err
		}
		v := st.Value()
		fmt.Println(s)
		fmt.Printf("%#04x: %v\n", v, ephyctl.Decode(v))
		return nil
	}

	pool := s.pool()
	clock, err := s.Clock()
	if err != nil {
		return err
	}
	sink, err := s.Sink(pool)
	if err != nil {
		return err
	}
	var mii ephy.MDIO
	if len(s.PhyIf) > 0 {
		m := &mdio.Ioctl{Ifname: s.PhyIf}
		defer m.Close()
		mii = m
	}
	return c.serve(&regmap.I2C{Index: s.Bus, Addr: s.Addr}, clock,
		s.Store(pool), s.Ephy, sink, s.Poll, mii)
}

// ephySettings reads the control value inputs without touching hardware.
func ephySettings(s *Setup, cells nvmem.Store) (ephyctl.Settings, error) {
	return ephyctl.ReadSettings(&ephyctl.Config{
		Parent: &clk.Fixed{ClockName: "ac200-osc", Hz: s.Rate},
		Cells:  cells,
		Source: s.Ephy,
	})
}

// serve attaches the chip over bus, then the PHY when mii is given, then
// runs the RPC server and, with a sink, the publisher.
func (c *Command) serve(bus regmap.Bus, clock clk.Clock, cells nvmem.Store,
	src config.Source, sink Sink, poll time.Duration, mii ephy.MDIO) error {
	c.mutex.Lock()
	c.regs.set(nil)
	var ctl *ephyctl.Device
	probe := ephyctl.Driver(cells, src, &c.resets, &c.clocks)
	c.cells.Driver(ephyctl.Compatible,
		func(d *mfd.Device) (mfd.Remover, error) {
			r, err := probe(d)
			if err != nil {
				return nil, err
			}
			ctl, _ = r.(*ephyctl.Device)
			return r, nil
		})
	chip, err := ac200.Attach(&ac200.Config{
		Bus:       bus,
		Clock:     clock,
		Cells:     cells,
		Registrar: &c.cells,
	})
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	c.chip = chip
	c.regs.set(chip.Regmap())
	if ctl != nil {
		c.regs.bind(ctl)
	}

	fail := func(err error) error {
		log.Print("daemon", "err", Name, ": ", err)
		c.mutex.Unlock()
		c.detach()
		return err
	}
	if mii != nil && ctl != nil {
		addr := uint8(ctl.Settings().Addr)
		phy, err := ephy.Probe(mii, addr, &c.clocks, &c.resets)
		if err != nil {
			return fail(err)
		}
		if err = phy.ConfigInit(); err != nil {
			phy.Remove()
			return fail(err)
		}
		c.phy = phy
	}
	if err = c.register(); err != nil {
		return fail(err)
	}
	if c.rpc, err = NewRpcServer(Name); err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	if sink != nil {
		p := &Publisher{
			Sink:     sink,
			Resets:   &c.resets,
			Clocks:   &c.clocks,
			Interval: poll,
		}
		g.Go(func() error { return p.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	c.mutex.Unlock()

	err = g.Wait()
	if cl, ok := sink.(io.Closer); ok {
		cl.Close()
	}
	c.detach()
	return err
}

// register publishes the services once per command.
func (c *Command) register() error {
	c.registered.Do(func() {
		for _, rcvr := range []interface{}{
			&Reset{Resets: &c.resets, Line: ephyctl.Name},
			&c.regs,
		} {
			if err := Register(rcvr); err != nil {
				c.registerErr = err
				return
			}
		}
	})
	return c.registerErr
}

func (c *Command) detach() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.regs.set(nil)
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
	if c.phy != nil {
		if err := c.phy.Remove(); err != nil {
			log.Print("daemon", "err", Name, ": ", err)
		}
		c.phy = nil
	}
	if c.chip != nil {
		if err := c.chip.Detach(); err != nil {
			log.Print("daemon", "err", Name, ": ", err)
		}
		c.chip = nil
	}
}

// Close stops serving; Main returns after the chip is detached.
func (c *Command) Close() error {
	c.mutex.Lock()
	cancel := c.cancel
	c.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}
