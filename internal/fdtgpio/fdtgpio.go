// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fdtgpio names the GPIO pins described by a device tree, such as
// the enable line of the AC200 reference oscillator.
package fdtgpio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
)

// Load rebuilds gpio.Aliases and gpio.Pins from the tree.
func Load(t *fdt.Tree) {
	gpio.Aliases = make(gpio.GpioAliasMap)
	gpio.Pins = make(gpio.PinMap)
	t.MatchNode("aliases", GatherAliases)
	t.EachProperty("gpio-controller", "", GatherPins)
}

// GatherAliases maps each gpio alias to its controller node name.
func GatherAliases(n *fdt.Node) {
	for p, pn := range n.Properties {
		if !strings.Contains(p, "gpio") {
			continue
		}
		path := strings.Split(string(pn), "\x00")[0]
		gpio.Aliases[p] = path[strings.LastIndex(path, "/")+1:]
	}
}

// GatherPins adds the named pins of one gpio controller.
func GatherPins(n *fdt.Node, name string, value string) {
	for bank, controller := range gpio.Aliases {
		if controller != n.Name {
			continue
		}
		for _, c := range n.Children {
			var mode string
			for p := range c.Properties {
				switch p {
				case "output-high", "output-low", "input":
					mode = p
				}
			}
			at := strings.Split(c.Name, "@")
			if mode == "" || len(at) != 2 {
				continue
			}
			i, err := strconv.Atoi(at[1])
			if err != nil {
				continue
			}
			gpio.Pins[at[0]] = gpio.GpioPinMode[mode] |
				gpio.GpioBankToBase[bank] |
				gpio.Pin(i)
		}
	}
}

// Pin drives one named line; it satisfies clk.Pin.
type Pin struct {
	Name string
	gpio.Pin
}

func (p *Pin) SetValue(v bool) error {
	if err := p.Pin.SetValue(v); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}

// Lookup returns the named pin with its direction set.
func Lookup(name string) (*Pin, error) {
	pin, found := gpio.Pins[name]
	if !found {
		return nil, fmt.Errorf("%s: gpio not found", name)
	}
	if err := pin.SetDirection(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Pin{Name: name, Pin: pin}, nil
}
