// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package nvmem

import (
	machine "github.com/platinasystems/redis"
)

// Machine reads cells from a hash of the goes machine redis; an empty Hash
// is the machine default.
type Machine struct {
	Hash string
}

func (s Machine) ReadCell(name string) ([]byte, error) {
	v, err := machine.Hget(s.Hash, name)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}
