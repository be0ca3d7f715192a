// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ac200

import (
	"errors"
	"fmt"
)

// Attach failures are one of these kinds; test with errors.Is.
var (
	ErrConfig       = errors.New("configuration error")
	ErrCalibration  = errors.New("calibration error")
	ErrClock        = errors.New("clock error")
	ErrBus          = errors.New("register access error")
	ErrRegistration = errors.New("registration error")
)

// Error is an attach or detach failure at the named step.
type Error struct {
	Kind error
	Dev  string
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v: %v", e.Dev, e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// Fail returns an Error of the given kind.
func Fail(kind error, dev, step string, err error) error {
	return &Error{Kind: kind, Dev: dev, Step: step, Err: err}
}

var errMissing = errors.New("missing collaborator")
