// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ac200 is the command line interface to the ac200d daemon.
package ac200

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/ac200/ac200"
	"github.com/platinasystems/ac200/ac200/ephyctl"
	"github.com/platinasystems/ac200/cmd/ac200d"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/config"
	"github.com/platinasystems/ac200/internal/nvmem"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/parms"
)

const Name = "ac200"

// Caller is the part of *rpc.Client used here.
type Caller interface {
	Call(method string, args interface{}, reply interface{}) error
	Close() error
}

var (
	// Dial connects to the daemon.
	Dial = func() (Caller, error) {
		return atsock.NewRpcClient(ac200d.Name)
	}

	Stdout io.Writer = os.Stdout

	// IsTerminal reports whether Stdout is a terminal.
	IsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
)

// DumpWidth is the number of registers per row of a terminal dump.
const DumpWidth = 8

type Command struct{}

func (Command) String() string { return Name }

func (Command) Usage() string {
	return Name + ` read ADDR
	write ADDR VALUE
	dump [BEGIN[-END]]
	reset assert|deassert|pulse|status
	ctl [-phy-mode MODE] [-led-polarity 0|1] [-phy-address N]
	    [-calibration N] [-clk-rate HZ]`
}

func (Command) Apropos() string { return "AC200 register and EPHY reset access" }

func (c Command) Main(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing operation")
	}
	switch args[0] {
	case "read":
		return c.read(args[1:])
	case "write":
		return c.write(args[1:])
	case "dump":
		return c.dump(args[1:])
	case "reset":
		return c.reset(args[1:])
	case "ctl":
		return c.ctl(args[1:])
	}
	return fmt.Errorf("%s: unknown operation", args[0])
}

func parseUint16(s string) (uint16, error) {
	u, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s, err)
	}
	return uint16(u), nil
}

func call(method string, args, reply interface{}) error {
	cl, err := Dial()
	if err != nil {
		return err
	}
	defer cl.Close()
	return cl.Call(method, args, reply)
}

func (Command) read(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read ADDR")
	}
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	var v uint16
	if err = call("Regs.Read", ac200d.RegArgs{Addr: addr}, &v); err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "%#04x\n", v)
	return nil
}

func (Command) write(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: write ADDR VALUE")
	}
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	v, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	return call("Regs.Write", ac200d.RegArgs{Addr: addr, Value: v},
		&struct{}{})
}

// parseRange accepts BEGIN or BEGIN-END; without either, the first page.
func parseRange(args []string) (ac200d.DumpArgs, error) {
	r := ac200d.DumpArgs{Begin: 0, End: 0xfe}
	switch len(args) {
	case 0:
		return r, nil
	case 1:
	default:
		return r, fmt.Errorf("%v: unexpected", args[1:])
	}
	var err error
	lohi := strings.SplitN(args[0], "-", 2)
	if r.Begin, err = parseUint16(lohi[0]); err != nil {
		return r, err
	}
	r.End = r.Begin
	if len(lohi) == 2 {
		if r.End, err = parseUint16(lohi[1]); err != nil {
			return r, err
		}
	}
	if r.End > ac200.MaxRegister {
		r.End = ac200.MaxRegister
	}
	return r, nil
}

func (Command) dump(args []string) error {
	r, err := parseRange(args)
	if err != nil {
		return err
	}
	var vs []uint16
	if err = call("Regs.Dump", r, &vs); err != nil {
		return err
	}
	if !IsTerminal() {
		for i, v := range vs {
			fmt.Fprintf(Stdout, "%#04x: %#04x\n", r.Begin+uint16(2*i), v)
		}
		return nil
	}
	for i, v := range vs {
		if i%DumpWidth == 0 {
			if i > 0 {
				fmt.Fprintln(Stdout)
			}
			fmt.Fprintf(Stdout, "%04x:", r.Begin+uint16(2*i))
		}
		fmt.Fprintf(Stdout, " %04x", v)
	}
	if len(vs) > 0 {
		fmt.Fprintln(Stdout)
	}
	return nil
}

func (Command) reset(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: reset assert|deassert|pulse|status")
	}
	var none struct{}
	switch args[0] {
	case "assert":
		return call("Reset.Assert", none, &none)
	case "deassert":
		return call("Reset.Deassert", none, &none)
	case "pulse":
		return call("Reset.Pulse", none, &none)
	case "status":
		var released bool
		if err := call("Reset.Status", none, &released); err != nil {
			return err
		}
		s := "asserted"
		if released {
			s = "released"
		}
		fmt.Fprintln(Stdout, s)
		return nil
	}
	return fmt.Errorf("%s: unknown reset operation", args[0])
}

// ctl prints the EPHY control value the parameters would program.
func (Command) ctl(args []string) error {
	parm, args := parms.New(args, "-phy-mode", "-led-polarity",
		"-phy-address", "-calibration", "-clk-rate")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	p := parm.ByName
	src := config.Map{
		ephyctl.PropPhyMode:     p["-phy-mode"],
		ephyctl.PropLedPolarity: p["-led-polarity"],
		ephyctl.PropPhyAddress:  p["-phy-address"],
	}
	defaults := config.Map{
		ephyctl.PropPhyMode:     "rmii",
		ephyctl.PropLedPolarity: "0",
		ephyctl.PropPhyAddress:  "1",
		"calibration":           "0",
		"clock-frequency":       strconv.Itoa(ac200d.DefaultRate),
	}
	o := config.Overlay{src, config.Map{
		"calibration":     p["-calibration"],
		"clock-frequency": p["-clk-rate"],
	}, defaults}
	cal, err := o.Uint32("calibration")
	if err != nil {
		return err
	}
	hz, err := o.Uint32("clock-frequency")
	if err != nil {
		return err
	}
	s, err := ephyctl.ReadSettings(&ephyctl.Config{
		Parent: &clk.Fixed{ClockName: "ref", Hz: uint64(hz)},
		Cells: nvmem.Map{
			ephyctl.CalibrationCell: {byte(cal), byte(cal >> 8)},
		},
		Source: o,
	})
	if err != nil {
		return err
	}
	v := s.Value()
	fmt.Fprintf(Stdout, "%#04x: %v\n", v, ephyctl.Decode(v))
	return nil
}
