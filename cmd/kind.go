// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmd defines what the goes-ac200 dispatcher expects of a command.
package cmd

// Cmd is the least a command provides.
type Cmd interface {
	String() string
	Usage() string
	Main(...string) error
}

type aproposer interface {
	Apropos() string
}

type kinder interface {
	Kind() Kind
}

// Apropos is the one line description of v, if any.
func Apropos(v Cmd) string {
	if m, found := v.(aproposer); found {
		return m.Apropos()
	}
	return ""
}

func WhatKind(v Cmd) Kind {
	if m, found := v.(kinder); found {
		return m.Kind()
	}
	return 0
}

const (
	// Daemon commands run until signaled, then Close.
	Daemon Kind = 1 << iota
	Hidden
)

type Kind uint16

func (k Kind) IsDaemon() bool      { return (k & Daemon) == Daemon }
func (k Kind) IsHidden() bool      { return (k & Hidden) == Hidden }
func (k Kind) IsInteractive() bool { return (k & (Daemon | Hidden)) == 0 }

func (k Kind) String() string {
	s := "unknown"
	switch k {
	case 0:
		s = "interactive"
	case Daemon:
		s = "daemon"
	case Hidden:
		s = "hidden"
	}
	return s
}
