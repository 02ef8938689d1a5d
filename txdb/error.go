// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrParse indicates a serialized transaction database could not be
	// decoded.  The caller should discard the data and start from an
	// empty store.
	ErrParse ErrorCode = iota

	// ErrSynchronizing indicates a query for a transaction the watcher
	// has not observed yet.  This is a normal transient condition, not
	// a failure of the store.
	ErrSynchronizing
)

// Map of ErrorCode values back to their constant names for pretty
// printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrParse:         "ErrParse",
	ErrSynchronizing: "ErrSynchronizing",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during store
// operation.  It is similar to waddrmgr.ManagerError.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// storeError creates an Error given a set of arguments.
func storeError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(Error)
	return ok && e.ErrorCode == code
}
