// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package nvmem

import (
	"io/ioutil"
	"os"
	"path/filepath"
)

// Sysfs reads cells from files named after each cell in Dir, e.g. the cells
// exported by a nvmem provider or written by a provisioning script.
type Sysfs struct {
	Dir string
}

func (s Sysfs) ReadCell(name string) ([]byte, error) {
	b, err := ioutil.ReadFile(filepath.Join(s.Dir, name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return b, err
}
