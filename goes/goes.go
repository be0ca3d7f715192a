// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes is a multi-call dispatcher. The command is the program's
// base name when that names a command, otherwise the first argument.
package goes

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/platinasystems/ac200/cmd"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
)

var (
	Exit = os.Exit

	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

type ByName map[string]cmd.Cmd

// Plot commands on map.
func (byName ByName) Plot(cmds ...cmd.Cmd) {
	for _, v := range cmds {
		name := v.String()
		if _, found := byName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		byName[name] = v
	}
}

func (byName ByName) Keys() []string {
	keys := make([]string, 0, len(byName))
	for k := range byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Main runs the named command. When run w/o args this uses os.Args and
// exits instead of returns on error.
//
// "-h", "-help" and "--help" print the command usage; "-apropos" its
// description. Without a command, the interactive commands are listed.
func (byName ByName) Main(args ...string) (err error) {
	if len(args) == 0 {
		args = os.Args
		defer func() {
			if err != nil && err != io.EOF {
				fmt.Fprintf(Stderr, "%s: %v\n",
					filepath.Base(os.Args[0]), err)
				Exit(1)
			}
		}()
	}
	if len(args) == 0 {
		return byName.list()
	}
	if _, found := byName[filepath.Base(args[0])]; found {
		args[0] = filepath.Base(args[0])
	} else {
		args = args[1:]
	}
	if len(args) == 0 || args[0] == "help" {
		return byName.list()
	}
	name := args[0]
	v, found := byName[name]
	if !found {
		return fmt.Errorf("%s: command not found", name)
	}
	flag, args := flags.New(args[1:], "-h", "-help", "--help", "-apropos")
	switch {
	case flag.ByName["-h"] || flag.ByName["-help"] || flag.ByName["--help"]:
		fmt.Fprintln(Stdout, "usage:", v.Usage())
		return nil
	case flag.ByName["-apropos"]:
		fmt.Fprintln(Stdout, cmd.Apropos(v))
		return nil
	}
	if !cmd.WhatKind(v).IsDaemon() {
		return v.Main(args...)
	}
	return daemon(v, args)
}

func (byName ByName) list() error {
	for _, k := range byName.Keys() {
		v := byName[k]
		if cmd.WhatKind(v).IsHidden() {
			continue
		}
		fmt.Fprintf(Stdout, "%-10s %s\n", k, cmd.Apropos(v))
	}
	return nil
}

// daemon runs v until it returns or the process is signaled, then closes
// it and waits for its Main to finish.
func daemon(v cmd.Cmd, args []string) error {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigch)

	done := make(chan error, 1)
	go func() { done <- v.Main(args...) }()

	select {
	case err := <-done:
		return err
	case sig := <-sigch:
		log.Print(v, ": ", sig)
	}
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Print(v, ": close: ", err)
		}
	}
	return <-done
}
