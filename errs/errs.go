// Copyright 2022 The Project Oak Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the sentinel error kinds shared across provgraph's
// packages. Callers should match them with errors.Is; package-level errors
// wrap one of these with fmt.Errorf's %w verb and additional context.
package errs

import "errors"

var (
	// ErrUnresolvedVersion is raised when a call is saved while its Version
	// leaf is itself an unresolved call.
	ErrUnresolvedVersion = errors.New("unresolved version")

	// ErrClassNotFound is raised when a codec lookup for an outputClassName
	// fails in the current process.
	ErrClassNotFound = errors.New("class not found")

	// ErrCodecFailure is raised when serialize or deserialize fails.
	ErrCodecFailure = errors.New("codec failure")

	// ErrInconsistentDigest is raised when checkConsistency finds that
	// deserializing and re-serializing a value does not reproduce the
	// original bytes.
	ErrInconsistentDigest = errors.New("inconsistent digest")

	// ErrStorageError is surfaced from a ResultTracker backend verbatim.
	ErrStorageError = errors.New("storage error")

	// ErrUnexpectedVariant is raised when a record carries an unrecognized
	// _subclass discriminator.
	ErrUnexpectedVariant = errors.New("unexpected variant")

	// ErrUnknownFunction is raised when the function registry has no
	// registration for a requested function name.
	ErrUnknownFunction = errors.New("unknown function")
)
