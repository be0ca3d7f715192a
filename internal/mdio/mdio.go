// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mdio reaches PHY registers through the MII ioctls of the
// ethernet interface the PHY is attached to.
package mdio

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From linux/sockios.h
const (
	siocGMIIReg = 0x8948
	siocSMIIReg = 0x8949
)

// ifreqMII is struct ifreq with struct mii_ioctl_data in its union.
type ifreqMII struct {
	Name   [unix.IFNAMSIZ]byte
	PhyID  uint16
	RegNum uint16
	ValIn  uint16
	ValOut uint16
	_      [16]byte
}

// Ioctl is an MDIO bus behind a network interface.
type Ioctl struct {
	Ifname string

	mu sync.Mutex
	fd int
	ok bool
}

// ioctl issues one MII request.
var ioctl = func(fd int, req uintptr, ifr *ifreqMII) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req,
		uintptr(unsafe.Pointer(ifr)))
	if errno != 0 {
		return errno
	}
	return nil
}

var socket = func() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
}

func (m *Ioctl) do(req uintptr, ifr *ifreqMII) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Ifname) == 0 || len(m.Ifname) >= unix.IFNAMSIZ {
		return fmt.Errorf("%q: invalid interface name", m.Ifname)
	}
	if !m.ok {
		fd, err := socket()
		if err != nil {
			return fmt.Errorf("mdio %s: %w", m.Ifname, err)
		}
		m.fd, m.ok = fd, true
	}
	copy(ifr.Name[:], m.Ifname)
	if err := ioctl(m.fd, req, ifr); err != nil {
		return fmt.Errorf("mdio %s: phy %#02x reg %#02x: %w", m.Ifname,
			ifr.PhyID, ifr.RegNum, err)
	}
	return nil
}

func (m *Ioctl) ReadReg(phyAddr, regAddr uint8) (uint16, error) {
	ifr := ifreqMII{PhyID: uint16(phyAddr), RegNum: uint16(regAddr)}
	if err := m.do(siocGMIIReg, &ifr); err != nil {
		return 0, err
	}
	return ifr.ValOut, nil
}

func (m *Ioctl) WriteReg(phyAddr, regAddr uint8, value uint16) error {
	ifr := ifreqMII{
		PhyID:  uint16(phyAddr),
		RegNum: uint16(regAddr),
		ValIn:  value,
	}
	return m.do(siocSMIIReg, &ifr)
}

func (m *Ioctl) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok {
		return nil
	}
	m.ok = false
	return unix.Close(m.fd)
}
