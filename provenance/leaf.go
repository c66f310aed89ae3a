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

package provenance

import (
	"context"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

// UnknownProvenance wraps a raw value as a graph leaf: a value with no
// recorded derivation, just a codec and a type tag.
type UnknownProvenance[T any] struct {
	value T
	codec codec.Codec[T]
}

// NewUnknownProvenance wraps v as a graph leaf using c to serialize it.
func NewUnknownProvenance[T any](v T, c codec.Codec[T]) UnknownProvenance[T] {
	return UnknownProvenance[T]{value: v, codec: c}
}

// Kind implements AnyValue.
func (u UnknownProvenance[T]) Kind() Kind { return KindUnknownProvenance }

// OutputClassName implements AnyValue.
func (u UnknownProvenance[T]) OutputClassName() string { return u.codec.ClassName() }

// Value returns the wrapped raw value.
func (u UnknownProvenance[T]) Value() T { return u.value }

// Codec returns the codec this leaf was constructed with.
func (u UnknownProvenance[T]) Codec() codec.Codec[T] { return u.codec }

func (u UnknownProvenance[T]) resolveAny(ctx context.Context, rt tracker.ResultTracker) (AnyResult, error) {
	return u.Resolve(ctx, rt)
}

// Resolve is a leaf's trivial resolution: it is its own result. The value is
// saved to rt under its digest and stamped with the tracker's current build
// context, same as any other resolution.
func (u UnknownProvenance[T]) Resolve(ctx context.Context, rt tracker.ResultTracker) (UnknownProvenanceResolved[T], error) {
	b, _, err := codec.SerializeAndDigest(u.codec, u.value)
	if err != nil {
		return UnknownProvenanceResolved[T]{}, err
	}
	saved, err := rt.SaveOutputValue(ctx, b)
	if err != nil {
		return UnknownProvenanceResolved[T]{}, err
	}
	build, err := rt.CurrentBuildInfo(ctx)
	if err != nil {
		return UnknownProvenanceResolved[T]{}, err
	}
	return UnknownProvenanceResolved[T]{value: u.value, codec: u.codec, outputDigest: saved, build: build}, nil
}

// UnknownProvenanceResolved is the resolved form of an UnknownProvenance
// leaf: the same value, now with a known outputDigest and build context.
type UnknownProvenanceResolved[T any] struct {
	value        T
	codec        codec.Codec[T]
	outputDigest digest.Digest
	build        buildinfo.BuildInfo
}

// Kind implements AnyValue.
func (u UnknownProvenanceResolved[T]) Kind() Kind { return KindUnknownProvenanceResolved }

// OutputClassName implements AnyValue.
func (u UnknownProvenanceResolved[T]) OutputClassName() string { return u.codec.ClassName() }

// Value returns the wrapped raw value.
func (u UnknownProvenanceResolved[T]) Value() T { return u.value }

// OutputDigest implements AnyResult.
func (u UnknownProvenanceResolved[T]) OutputDigest() digest.Digest { return u.outputDigest }

// BuildInfo implements AnyResult.
func (u UnknownProvenanceResolved[T]) BuildInfo() buildinfo.BuildInfo { return u.build }

func (u UnknownProvenanceResolved[T]) resolveAny(ctx context.Context, rt tracker.ResultTracker) (AnyResult, error) {
	// No-copy rule: an already-resolved leaf resolves to itself.
	return u, nil
}

func (u UnknownProvenanceResolved[T]) versionKey() string { return u.outputDigest.String() }

func (u UnknownProvenanceResolved[T]) callRecord() (serializable.Record, error) {
	return serializable.CallWithUnknownProvenance{
		OutputClassName: u.codec.ClassName(),
		ValueDigest:     u.outputDigest,
	}, nil
}

func (u UnknownProvenanceResolved[T]) loadConcrete(_ context.Context, _ tracker.ResultTracker) (any, error) {
	return u.value, nil
}

func (u UnknownProvenanceResolved[T]) saveDeep(ctx context.Context, rt tracker.ResultTracker) (digest.Digest, error) {
	rec := serializable.ResultWithUnknownProvenance{
		Call:         serializable.CallWithUnknownProvenance{OutputClassName: u.codec.ClassName(), ValueDigest: u.outputDigest},
		OutputDigest: u.outputDigest,
		Brief:        u.build.Brief(),
	}
	return rt.SaveResultSerializable(ctx, rec)
}
