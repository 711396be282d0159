// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package errdefs defines the error kinds the engine reports to callers.
// Every failure surfaced by an engine operation wraps exactly one of these
// sentinels so that callers can branch on the kind with errors.Is while the
// message keeps the specific cause.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the device, release or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotSupported means the operation is not implemented by this
	// device or plugin.
	ErrNotSupported = errors.New("not supported")
	// ErrInvalidArgs means the caller input was malformed.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrInvalidData means the firmware payload or metadata was malformed.
	ErrInvalidData = errors.New("invalid data")
	// ErrNothingToDo means no action was needed; callers treat it as a
	// successful no-op, not a failure.
	ErrNothingToDo = errors.New("nothing to do")
	// ErrPermissionDenied means the caller lacks rights for the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAuthFailed means authentication against the device failed.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrBusy means the device or composite group is locked by a
	// concurrent operation.
	ErrBusy = errors.New("device busy")
	// ErrTimeout means a replug wait or bus operation exceeded its bound.
	ErrTimeout = errors.New("timed out")
	// ErrCancelled means the caller's context was cancelled at a point
	// where stopping was still safe.
	ErrCancelled = errors.New("cancelled")
	// ErrNeedsUserAction means the update cannot proceed until the user
	// clears an inhibitor, e.g. plugs in AC power or reboots to flush a
	// pending update.
	ErrNeedsUserAction = errors.New("needs user action")
	// ErrVerificationFailed means the post-write readback did not match
	// the expected version; the write may have partially applied.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrInternal is an invariant violation, e.g. a cycle in the declared
	// device topology. It is always a programming or configuration error.
	ErrInternal = errors.New("internal error")
)

// Wrap annotates kind with a static message.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Wrapf annotates kind with a formatted message.
func Wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool           { return errors.Is(err, ErrNotFound) }
func IsNotSupported(err error) bool       { return errors.Is(err, ErrNotSupported) }
func IsInvalidArgs(err error) bool        { return errors.Is(err, ErrInvalidArgs) }
func IsInvalidData(err error) bool        { return errors.Is(err, ErrInvalidData) }
func IsNothingToDo(err error) bool        { return errors.Is(err, ErrNothingToDo) }
func IsPermissionDenied(err error) bool   { return errors.Is(err, ErrPermissionDenied) }
func IsAuthFailed(err error) bool         { return errors.Is(err, ErrAuthFailed) }
func IsBusy(err error) bool               { return errors.Is(err, ErrBusy) }
func IsTimeout(err error) bool            { return errors.Is(err, ErrTimeout) }
func IsCancelled(err error) bool          { return errors.Is(err, ErrCancelled) }
func IsNeedsUserAction(err error) bool    { return errors.Is(err, ErrNeedsUserAction) }
func IsVerificationFailed(err error) bool { return errors.Is(err, ErrVerificationFailed) }
func IsInternal(err error) bool           { return errors.Is(err, ErrInternal) }

// Kind returns the sentinel wrapped by err, or nil if err carries none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrNotSupported, ErrInvalidArgs, ErrInvalidData,
		ErrNothingToDo, ErrPermissionDenied, ErrAuthFailed, ErrBusy,
		ErrTimeout, ErrCancelled, ErrNeedsUserAction, ErrVerificationFailed,
		ErrInternal,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
