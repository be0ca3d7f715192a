// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/platinasystems/ac200/cmd"
)

type echo struct{ args []string }

func (*echo) String() string  { return "echo" }
func (*echo) Usage() string   { return "echo [STRING]..." }
func (*echo) Apropos() string { return "print arguments" }

func (c *echo) Main(args ...string) error {
	c.args = args
	return nil
}

type hidden struct{}

func (hidden) String() string       { return "hidden" }
func (hidden) Usage() string        { return "hidden" }
func (hidden) Kind() cmd.Kind       { return cmd.Hidden }
func (hidden) Main(...string) error { return errors.New("hidden") }

type quick struct{}

func (quick) String() string       { return "quickd" }
func (quick) Usage() string        { return "quickd" }
func (quick) Kind() cmd.Kind       { return cmd.Daemon }
func (quick) Main(...string) error { return errors.New("exited") }

func newByName() (ByName, *echo, *bytes.Buffer) {
	var out bytes.Buffer
	Stdout = &out
	e := &echo{}
	g := make(ByName)
	g.Plot(e, hidden{}, quick{})
	return g, e, &out
}

func TestDispatch(t *testing.T) {
	g, e, _ := newByName()
	if err := g.Main("goes-ac200", "echo", "a", "b"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.args, []string{"a", "b"}) {
		t.Error("wrong:", e.args)
	}
	if err := g.Main("/usr/bin/echo", "c"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.args, []string{"c"}) {
		t.Error("wrong:", e.args)
	}
	if err := g.Main("goes-ac200", "nope"); err == nil {
		t.Error("wrong: found nope")
	}
}

func TestHelp(t *testing.T) {
	g, e, out := newByName()
	if err := g.Main("goes-ac200", "echo", "-h"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "usage: echo [STRING]...\n" {
		t.Error("wrong:", s)
	}
	if e.args != nil {
		t.Error("wrong: ran")
	}
	out.Reset()
	if err := g.Main("goes-ac200"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "echo       print arguments\nquickd     \n" {
		t.Errorf("wrong: %q", s)
	}
}

func TestDaemonExit(t *testing.T) {
	g, _, _ := newByName()
	if err := g.Main("goes-ac200", "quickd"); err == nil ||
		err.Error() != "exited" {
		t.Error("wrong:", err)
	}
}

func TestPlotDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("wrong: no panic")
		}
	}()
	g := make(ByName)
	g.Plot(&echo{}, &echo{})
}
