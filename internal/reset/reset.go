// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package reset registers reset controllers and hands their lines to
// consumers.
//
// A controller provides numbered lines through Ops. Consumers look a line up
// by controller name plus the controller's addressing arguments, which the
// controller translates into a line number.
package reset

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound    = errors.New("reset controller not found")
	ErrArgs        = errors.New("invalid reset arguments")
	ErrUnsupported = errors.New("reset operation not supported")
)

// Ops drives the lines of one controller.
type Ops interface {
	Assert(id uint) error
	Deassert(id uint) error
}

// Pulser is implemented by controllers with a native reset pulse.
type Pulser interface {
	Reset(id uint) error
}

// Statuser is implemented by controllers able to read a line back.
type Statuser interface {
	Status(id uint) (bool, error)
}

type Controller struct {
	Name     string
	Ops      Ops
	NrResets uint
	// NCells is the number of addressing arguments a consumer supplies.
	NCells int
	// Xlate maps consumer arguments to a line; nil uses the first argument,
	// or line 0 when NCells is zero.
	Xlate func(args []uint32) (uint, error)
}

func (c *Controller) xlate(args []uint32) (uint, error) {
	if len(args) != c.NCells {
		return 0, fmt.Errorf("%s: %d arguments, want %d: %w",
			c.Name, len(args), c.NCells, ErrArgs)
	}
	if c.Xlate != nil {
		return c.Xlate(args)
	}
	var id uint
	if len(args) > 0 {
		id = uint(args[0])
	}
	if id >= c.NrResets {
		return 0, fmt.Errorf("%s: line %d of %d: %w",
			c.Name, id, c.NrResets, ErrArgs)
	}
	return id, nil
}

// Registry holds the registered controllers.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

func (r *Registry) Register(c *Controller) error {
	if c.Ops == nil || c.NrResets == 0 {
		return fmt.Errorf("%s: no reset lines", c.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.controllers == nil {
		r.controllers = make(map[string]*Controller)
	}
	if _, found := r.controllers[c.Name]; found {
		return fmt.Errorf("%s: already registered", c.Name)
	}
	r.controllers[c.Name] = c
	return nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.controllers, name)
	r.mu.Unlock()
}

// Get returns the consumer handle of a controller's line.
func (r *Registry) Get(name string, args ...uint32) (*Control, error) {
	r.mu.Lock()
	c, found := r.controllers[name]
	r.mu.Unlock()
	if !found {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	id, err := c.xlate(args)
	if err != nil {
		return nil, err
	}
	return &Control{c: c, id: id}, nil
}

// Control is a consumer's handle of one reset line.
type Control struct {
	c  *Controller
	id uint
}

func (rc *Control) String() string {
	return fmt.Sprintf("%s.%d", rc.c.Name, rc.id)
}

func (rc *Control) Assert() error { return rc.c.Ops.Assert(rc.id) }

func (rc *Control) Deassert() error { return rc.c.Ops.Deassert(rc.id) }

// Reset pulses the line, by assert then deassert if the controller has no
// pulse of its own.
func (rc *Control) Reset() error {
	if p, ok := rc.c.Ops.(Pulser); ok {
		return p.Reset(rc.id)
	}
	if err := rc.c.Ops.Assert(rc.id); err != nil {
		return err
	}
	return rc.c.Ops.Deassert(rc.id)
}

// Status reports whether the line is released.
func (rc *Control) Status() (bool, error) {
	s, ok := rc.c.Ops.(Statuser)
	if !ok {
		return false, fmt.Errorf("%s: status: %w", rc, ErrUnsupported)
	}
	return s.Status(rc.id)
}
