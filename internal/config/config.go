// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package config looks up device properties at attach time.
package config

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrNotFound = errors.New("property not found")

// Source is a read-only set of named device properties.
type Source interface {
	String(key string) (string, error)
	Uint32(key string) (uint32, error)
}

// Map is a Source of textual properties, e.g. command parameters. Numbers
// may be decimal, 0x hex, or 0 octal.
type Map map[string]string

func (m Map) String(key string) (string, error) {
	s, found := m[key]
	if !found || len(s) == 0 {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return s, nil
}

func (m Map) Uint32(key string) (uint32, error) {
	s, err := m.String(key)
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(u), nil
}

// Overlay looks in each Source in turn and returns the first property found.
type Overlay []Source

func (o Overlay) String(key string) (string, error) {
	for _, src := range o {
		s, err := src.String(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return s, err
	}
	return "", fmt.Errorf("%s: %w", key, ErrNotFound)
}

func (o Overlay) Uint32(key string) (uint32, error) {
	for _, src := range o {
		u, err := src.Uint32(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return u, err
	}
	return 0, fmt.Errorf("%s: %w", key, ErrNotFound)
}
