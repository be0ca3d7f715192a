// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package clk models the clocks feeding and provided by a chip.
package clk

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("clock not found")

type Clock interface {
	Name() string
	Enable() error
	Disable() error
	// Rate in Hz.
	Rate() (uint64, error)
}

// Pin is the output line that starts an external oscillator.
type Pin interface {
	SetValue(bool) error
}

// Fixed is a fixed rate clock with an optional enable pin. Enable and
// Disable are counted; the pin only changes on the first enable and the
// last disable.
type Fixed struct {
	ClockName string
	Hz        uint64
	Pin       Pin

	mu    sync.Mutex
	count int
}

func (c *Fixed) Name() string { return c.ClockName }

func (c *Fixed) Rate() (uint64, error) { return c.Hz, nil }

func (c *Fixed) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 && c.Pin != nil {
		if err := c.Pin.SetValue(true); err != nil {
			return fmt.Errorf("%s: enable: %w", c.ClockName, err)
		}
	}
	c.count++
	return nil
}

func (c *Fixed) Disable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return nil
	}
	if c.count == 1 && c.Pin != nil {
		if err := c.Pin.SetValue(false); err != nil {
			return fmt.Errorf("%s: disable: %w", c.ClockName, err)
		}
	}
	c.count--
	return nil
}

// Enabled reports whether the clock has outstanding enables.
func (c *Fixed) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count > 0
}

// Registry maps provided clock names to clocks.
type Registry struct {
	mu     sync.Mutex
	clocks map[string]Clock
}

func (r *Registry) Add(c Clock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clocks == nil {
		r.clocks = make(map[string]Clock)
	}
	if _, found := r.clocks[c.Name()]; found {
		return fmt.Errorf("%s: already registered", c.Name())
	}
	r.clocks[c.Name()] = c
	return nil
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.clocks, name)
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Clock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, found := r.clocks[name]
	if !found {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return c, nil
}
