// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regmap

import (
	"github.com/platinasystems/i2c"
)

// I2C is a Bus of SMBus word registers on /dev/i2c-INDEX at ADDR. Values are
// big-endian on the wire.
type I2C struct {
	Index int
	Addr  int
}

func (h *I2C) do(rw i2c.RW, reg uint8, data *i2c.SMBusData) (err error) {
	var bus i2c.Bus

	err = bus.Open(h.Index)
	if err != nil {
		return
	}
	defer bus.Close()

	err = bus.ForceSlaveAddress(h.Addr)
	if err != nil {
		return
	}

	err = bus.Do(rw, reg, i2c.WordData, data)
	return
}

func (h *I2C) ReadReg(reg uint8) (uint16, error) {
	var data i2c.SMBusData
	if err := h.do(i2c.Read, reg, &data); err != nil {
		return 0, err
	}
	return getWord(&data), nil
}

func (h *I2C) WriteReg(reg uint8, v uint16) error {
	var data i2c.SMBusData
	putWord(&data, v)
	return h.do(i2c.Write, reg, &data)
}

func getWord(data *i2c.SMBusData) uint16 {
	return uint16(data[0])<<8 | uint16(data[1])
}

func putWord(data *i2c.SMBusData, v uint16) {
	data[0] = uint8(v >> 8)
	data[1] = uint8(v)
}
