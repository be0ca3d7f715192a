// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package mdio

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestReadWrite(t *testing.T) {
	regs := make(map[uint16]uint16)
	var names []string
	socket = func() (int, error) { return 7, nil }
	ioctl = func(fd int, req uintptr, ifr *ifreqMII) error {
		if fd != 7 {
			t.Error("wrong fd:", fd)
		}
		names = append(names, unix.ByteSliceToString(ifr.Name[:]))
		key := ifr.PhyID<<8 | ifr.RegNum
		switch req {
		case siocGMIIReg:
			ifr.ValOut = regs[key]
		case siocSMIIReg:
			regs[key] = ifr.ValIn
		default:
			return unix.EINVAL
		}
		return nil
	}
	m := &Ioctl{Ifname: "eth0"}
	if err := m.WriteReg(1, 0x1f, 0x0100); err != nil {
		t.Fatal(err)
	}
	if v, err := m.ReadReg(1, 0x1f); err != nil || v != 0x0100 {
		t.Errorf("wrong: %#x %v", v, err)
	}
	if v, err := m.ReadReg(2, 0x1f); err != nil || v != 0 {
		t.Errorf("wrong phy: %#x %v", v, err)
	}
	for _, name := range names {
		if name != "eth0" {
			t.Error("wrong name:", name)
		}
	}
}

func TestErrors(t *testing.T) {
	socket = func() (int, error) { return 7, nil }
	ioctl = func(int, uintptr, *ifreqMII) error { return unix.ENODEV }
	if _, err := (&Ioctl{Ifname: "eth9"}).ReadReg(1, 2); !errors.Is(err, unix.ENODEV) {
		t.Error("wrong:", err)
	}
	if _, err := (&Ioctl{}).ReadReg(1, 2); err == nil {
		t.Error("wrong: accepted empty name")
	}
	socket = func() (int, error) { return -1, unix.EMFILE }
	if err := (&Ioctl{Ifname: "eth0"}).WriteReg(1, 2, 3); !errors.Is(err, unix.EMFILE) {
		t.Error("wrong:", err)
	}
}
