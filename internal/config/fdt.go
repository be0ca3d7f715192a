// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package config

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/platinasystems/fdt"
)

// FDT is a Source of the properties of one device tree node.
type FDT struct {
	Tree *fdt.Tree
	Node *fdt.Node
}

// ParseFile loads a flattened device tree blob.
func ParseFile(fn string) (*fdt.Tree, error) {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err = t.Parse(b); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return t, nil
}

// Compatible returns a Source of the first node listing compatible.
func Compatible(t *fdt.Tree, compatible string) (*FDT, error) {
	var found *fdt.Node
	t.EachProperty("compatible", compatible,
		func(n *fdt.Node, name, value string) {
			if found != nil {
				return
			}
			for _, s := range strings.Split(value, "\x00") {
				if s == compatible {
					found = n
				}
			}
		})
	if found == nil {
		return nil, fmt.Errorf("compatible %q: %w", compatible,
			ErrNotFound)
	}
	return &FDT{Tree: t, Node: found}, nil
}

func (f *FDT) prop(key string) ([]byte, error) {
	b, found := f.Node.Properties[key]
	if !found {
		return nil, fmt.Errorf("%s: %s: %w", f.Node.Name, key,
			ErrNotFound)
	}
	return b, nil
}

func (f *FDT) String(key string) (string, error) {
	b, err := f.prop(key)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

func (f *FDT) Uint32(key string) (uint32, error) {
	b, err := f.prop(key)
	if err != nil {
		return 0, err
	}
	if len(b) < 4 {
		return 0, fmt.Errorf("%s: %s: %d byte cell", f.Node.Name, key,
			len(b))
	}
	return f.Tree.PropUint32(b), nil
}
