// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// goes-ac200 runs the AC200 daemon and its command line interface from
// one binary; link it as ac200 and ac200d or name the command first.
package main

import (
	"github.com/platinasystems/ac200/cmd/ac200"
	"github.com/platinasystems/ac200/cmd/ac200d"
	"github.com/platinasystems/ac200/goes"
)

func Goes() goes.ByName {
	g := make(goes.ByName)
	g.Plot(ac200.Command{}, &ac200d.Command{})
	return g
}

func main() {
	Goes().Main()
}
