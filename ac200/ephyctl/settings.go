// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ephyctl

import (
	"fmt"
	"strings"
)

// EPHY control register fields.
const (
	Shutdown = 1 << 0
	LedPol   = 1 << 1
	ClkSel   = 1 << 2
	XmiiSel  = 1 << 11

	addrShift  = 4
	addrMask   = 0x1f
	calibShift = 12
	calibMask  = 0xf
)

// CalibrationOffset is added to the factory trim before it is programmed.
// Vendor derived; keep as is.
const CalibrationOffset = 3

// ClkSelRate is the reference rate that selects the 24MHz input.
const ClkSelRate = 24000000

// GpioActiveLow is the device tree flag value of an active-low LED.
const GpioActiveLow = 1

func Addr(x uint32) uint16 { return uint16(x&addrMask) << addrShift }

func Calib(x uint16) uint16 { return (x & calibMask) << calibShift }

type Mode int

const (
	MII Mode = iota + 1
	RMII
)

func (m Mode) String() string {
	switch m {
	case MII:
		return "mii"
	case RMII:
		return "rmii"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the device tree phy-mode names the block supports.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "mii":
		return MII, nil
	case "rmii":
		return RMII, nil
	}
	return 0, fmt.Errorf("illegal PHY connection mode %q, only RMII or MII supported", s)
}

// Settings are the inputs of the EPHY control value.
type Settings struct {
	Mode         Mode
	LedActiveLow bool
	Addr         uint32
	Calibration  uint16
	RefRate      uint64
}

// Value is the EPHY control register value for s, with the PHY running.
func (s *Settings) Value() uint16 {
	v := Calib(s.Calibration + CalibrationOffset)
	if s.Mode == RMII {
		v |= XmiiSel
	}
	if s.LedActiveLow {
		v |= LedPol
	}
	v |= Addr(s.Addr)
	if s.RefRate == ClkSelRate {
		v |= ClkSel
	}
	return v
}

// Fields is a decoded EPHY control value.
type Fields struct {
	Shutdown     bool
	LedActiveLow bool
	Clk24M       bool
	Addr         uint8
	Mode         Mode
	Calib        uint8
}

func Decode(v uint16) Fields {
	f := Fields{
		Shutdown:     v&Shutdown != 0,
		LedActiveLow: v&LedPol != 0,
		Clk24M:       v&ClkSel != 0,
		Addr:         uint8(v >> addrShift & addrMask),
		Mode:         MII,
		Calib:        uint8(v >> calibShift & calibMask),
	}
	if v&XmiiSel != 0 {
		f.Mode = RMII
	}
	return f
}

func (f Fields) String() string {
	pol := "active-high"
	if f.LedActiveLow {
		pol = "active-low"
	}
	clk := "other"
	if f.Clk24M {
		clk = "24MHz"
	}
	return fmt.Sprintf("mode %v, addr %#02x, led %s, clk %s, calib %#x, shutdown %v",
		f.Mode, f.Addr, pol, clk, f.Calib, f.Shutdown)
}
