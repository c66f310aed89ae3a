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

// Package provenance implements the graph algebra (the ValueWithProvenance
// family) and the resolution engine that drives a call graph to a set of
// recorded, memoized results. The algebra is a closed sum; Go has no sealed
// interfaces, so AnyValue and AnyResult use an unexported method to keep the
// set of implementers inside this package, the same effect a sealed trait
// gets elsewhere.
package provenance

import (
	"context"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

// Kind names a concrete ValueWithProvenance variant.
type Kind string

const (
	KindUnknownProvenance         Kind = "UnknownProvenance"
	KindUnknownProvenanceResolved Kind = "UnknownProvenanceResolved"
	KindCall                      Kind = "FunctionCallWithProvenance"
	KindCallResult                Kind = "FunctionCallResultWithProvenance"
	KindCallDeflated              Kind = "FunctionCallWithProvenanceDeflated"
	KindCallResultDeflated        Kind = "FunctionCallResultWithProvenanceDeflated"
)

// AnyValue is the type-erased shape every ValueWithProvenance[T] variant
// implements. It is what lets a FunctionCallWithProvenance[T] hold an
// ordered list of inputs of differing concrete types in one slice.
type AnyValue interface {
	Kind() Kind
	OutputClassName() string

	// resolveAny drives this node to a resolved AnyResult. Unexported so
	// every implementer lives in this package.
	resolveAny(ctx context.Context, rt tracker.ResultTracker) (AnyResult, error)
}

// AnyResult is the type-erased shape of a resolved node: either an
// UnknownProvenanceResolved leaf or a FunctionCallResultWithProvenance.
type AnyResult interface {
	AnyValue

	// OutputDigest is the content digest of the resolved output value.
	OutputDigest() digest.Digest
	// BuildInfo is the build context under which this result was produced.
	BuildInfo() buildinfo.BuildInfo

	// versionKey renders this result as the functionVersion path component
	// used in the memoization index, per tracker's key derivation.
	versionKey() string
	// callRecord returns the serializable reference to this node usable as
	// an entry in a parent call's inputList: a full leaf record for an
	// UnknownProvenance, or a WithoutInputs stub for a call result.
	callRecord() (serializable.Record, error)
	// loadConcrete returns the underlying value as `any`, loading and
	// decoding it from rt if only a digest is currently held.
	loadConcrete(ctx context.Context, rt tracker.ResultTracker) (any, error)
	// saveDeep persists this result (and its full input subtree, for a call
	// result) to rt. A call result returns the digest of its WithInputs call
	// record; an UnknownProvenanceResolved leaf returns the digest of its
	// result record.
	saveDeep(ctx context.Context, rt tracker.ResultTracker) (digest.Digest, error)
}
