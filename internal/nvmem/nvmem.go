// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package nvmem reads factory trim cells from non-volatile storage.
package nvmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("cell not found")
	ErrInvalidLength = errors.New("invalid cell length")
)

// CellLen is the size of a trim cell.
const CellLen = 2

// Store returns a copy of the named cell. Missing cells are ErrNotFound.
type Store interface {
	ReadCell(name string) ([]byte, error)
}

// Load decodes the named little-endian 16-bit trim cell.
func Load(s Store, name string) (uint16, error) {
	b, err := s.ReadCell(name)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if len(b) != CellLen {
		return 0, fmt.Errorf("%s: %d bytes: %w", name, len(b),
			ErrInvalidLength)
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Map is an in-memory Store.
type Map map[string][]byte

func (m Map) ReadCell(name string) ([]byte, error) {
	b, found := m[name]
	if !found {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Chain tries each Store in turn, returning the first cell found.
type Chain []Store

func (c Chain) ReadCell(name string) ([]byte, error) {
	for _, s := range c {
		b, err := s.ReadCell(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return b, err
	}
	return nil, ErrNotFound
}
