// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdtgpio

import (
	"testing"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
)

func TestGather(t *testing.T) {
	gpio.Aliases = make(gpio.GpioAliasMap)
	gpio.Pins = make(gpio.PinMap)

	GatherAliases(&fdt.Node{
		Name: "aliases",
		Properties: map[string][]byte{
			"gpio0":  []byte("/soc/gpio@1000\x00"),
			"serial": []byte("/soc/uart@2000\x00"),
		},
	})
	if len(gpio.Aliases) != 1 || gpio.Aliases["gpio0"] != "gpio@1000" {
		t.Fatal("wrong:", gpio.Aliases)
	}

	GatherPins(&fdt.Node{
		Name: "gpio@1000",
		Children: map[string]*fdt.Node{
			"osc24m-en@5": {
				Name: "osc24m-en@5",
				Properties: map[string][]byte{
					"gpio-pin-desc": []byte("osc24m-en\x00"),
					"output-low":    nil,
				},
			},
			"nodir@6": {
				Name:       "nodir@6",
				Properties: map[string][]byte{},
			},
		},
	}, "gpio-controller", "")
	want := gpio.GpioPinMode["output-low"] |
		gpio.GpioBankToBase["gpio0"] | gpio.Pin(5)
	if len(gpio.Pins) != 1 || gpio.Pins["osc24m-en"] != want {
		t.Error("wrong:", gpio.Pins)
	}
}

func TestLookupMissing(t *testing.T) {
	gpio.Pins = make(gpio.PinMap)
	if _, err := Lookup("osc24m-en"); err == nil {
		t.Error("wrong: found")
	}
}
