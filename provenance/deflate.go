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
	"fmt"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

// FunctionCallResultWithProvenanceDeflated is a stub wrapping a saved
// result's record digest: known output type and output digest, but no
// loaded input subtree. Deflating a live result never touches the tracker;
// it only assembles and digests the record the live result already implies.
type FunctionCallResultWithProvenanceDeflated[T any] struct {
	outputClassName string
	outputCodec     codec.Codec[T]
	outputDigest    digest.Digest
	resultDigest    digest.Digest
	call            serializable.CallWithoutInputs
	build           buildinfo.BuildInfo
}

// Kind implements AnyValue.
func (d FunctionCallResultWithProvenanceDeflated[T]) Kind() Kind { return KindCallResultDeflated }

// OutputClassName implements AnyValue.
func (d FunctionCallResultWithProvenanceDeflated[T]) OutputClassName() string { return d.outputClassName }

// OutputDigest returns the digest of the result's (possibly unloaded)
// output value.
func (d FunctionCallResultWithProvenanceDeflated[T]) OutputDigest() digest.Digest { return d.outputDigest }

// ResultDigest returns the digest of the backing result record.
func (d FunctionCallResultWithProvenanceDeflated[T]) ResultDigest() digest.Digest { return d.resultDigest }

func (d FunctionCallResultWithProvenanceDeflated[T]) resolveAny(ctx context.Context, rt tracker.ResultTracker) (AnyResult, error) {
	return d.Inflate(ctx, rt)
}

// Deflate replaces a resolved result with a stub carrying only its class
// tag, output digest, and the digest of its own backing result record. Per
// the no-copy rule, if nothing in the graph below this node needs to be
// reconstructed, a caller can discard the live FunctionCallResultWithProvenance
// in favor of this far smaller value.
func (r FunctionCallResultWithProvenance[T]) Deflate() (FunctionCallResultWithProvenanceDeflated[T], error) {
	versionRec, err := r.resolvedVersion.callRecord()
	if err != nil {
		return FunctionCallResultWithProvenanceDeflated[T]{}, err
	}

	outputDigests := make([]digest.Digest, len(r.resolvedInputs))
	for i, in := range r.resolvedInputs {
		outputDigests[i] = in.OutputDigest()
	}
	inputGroupDigest, err := digest.OfDigests(outputDigests)
	if err != nil {
		return FunctionCallResultWithProvenanceDeflated[T]{}, err
	}

	callStub := serializable.CallWithoutInputs{
		FunctionName:                 r.call.functionName,
		FunctionVersion:              versionRec,
		OutputClassName:              r.call.outputClassName,
		DigestOfEquivalentWithInputs: r.callDigest,
	}
	resultRec := serializable.ResultWithKnownProvenance{
		Call:             callStub,
		InputGroupDigest: inputGroupDigest,
		OutputDigest:     r.outputDigest,
		Brief:            r.build.Brief(),
	}
	resultDigest, err := serializable.Digest(resultRec)
	if err != nil {
		return FunctionCallResultWithProvenanceDeflated[T]{}, err
	}

	return FunctionCallResultWithProvenanceDeflated[T]{
		outputClassName: r.call.outputClassName,
		outputCodec:     r.call.outputCodec,
		outputDigest:    r.outputDigest,
		resultDigest:    resultDigest,
		call:            callStub,
		build:           r.build,
	}, nil
}

// Inflate reconstructs a result from its deflated stub by reading the
// result record back from rt. Only the function name, output class, call
// digest, build identity and output digest are restored, along with the
// ability to load the concrete output. Neither the version nor the input
// subtree is restored, so the rebuilt result has no resolved version; a caller that
// needs the full input subtree should load it separately by the call's own
// digest (DigestOfEquivalentWithInputs) via the tracker.
func (d FunctionCallResultWithProvenanceDeflated[T]) Inflate(ctx context.Context, rt tracker.ResultTracker) (FunctionCallResultWithProvenance[T], error) {
	rec, ok, err := rt.LoadResultByDigest(ctx, d.resultDigest)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	if !ok {
		return FunctionCallResultWithProvenance[T]{}, fmt.Errorf("provenance: no result record at digest %s: %w", d.resultDigest, errs.ErrStorageError)
	}
	known, ok := rec.(serializable.ResultWithKnownProvenance)
	if !ok {
		return FunctionCallResultWithProvenance[T]{}, fmt.Errorf("provenance: record at %s is a %s, want %s: %w", d.resultDigest, rec.Subclass(), serializable.SubclassResultKnown, errs.ErrUnexpectedVariant)
	}
	return FunctionCallResultWithProvenance[T]{
		call: FunctionCallWithProvenance[T]{
			functionName:    known.Call.FunctionName,
			outputClassName: known.Call.OutputClassName,
			outputCodec:     d.outputCodec,
		},
		build:        buildinfo.BuildInfo{CommitID: known.CommitID, BuildID: known.BuildID},
		callDigest:   known.Call.DigestOfEquivalentWithInputs,
		outputDigest: known.OutputDigest,
		output:       VirtualFromDigest[T](known.OutputDigest),
	}, nil
}

// Resave writes the stub's backing result record back to rt unmodified,
// verifying cross-process transport without requiring a codec for the
// output type: the record round-trips and re-digests identically even when
// this process cannot deserialize the payload it points at.
func (d FunctionCallResultWithProvenanceDeflated[T]) Resave(ctx context.Context, rt tracker.ResultTracker) (digest.Digest, error) {
	rec, ok, err := rt.LoadResultByDigest(ctx, d.resultDigest)
	if err != nil {
		return digest.Digest{}, err
	}
	if !ok {
		return digest.Digest{}, fmt.Errorf("provenance: no result record at digest %s: %w", d.resultDigest, errs.ErrStorageError)
	}
	return rt.SaveResultSerializable(ctx, rec)
}

// FunctionCallWithProvenanceDeflated is a stub wrapping a saved call's
// WithInputs record digest: known output type, unloaded inputs.
type FunctionCallWithProvenanceDeflated[T any] struct {
	functionName    string
	outputClassName string
	outputCodec     codec.Codec[T]
	digest          digest.Digest
}

// Kind implements AnyValue.
func (d FunctionCallWithProvenanceDeflated[T]) Kind() Kind { return KindCallDeflated }

// OutputClassName implements AnyValue.
func (d FunctionCallWithProvenanceDeflated[T]) OutputClassName() string { return d.outputClassName }

// resolveAny refuses to resolve a deflated call on its own: a call embedded
// as a version leaf that has only ever been deflated (never itself
// resolved) is exactly the "version leaf is itself unresolved" case the
// specification calls out, so saving or resolving the outer call propagates
// ErrUnresolvedVersion until the version call is resolved and re-inflated.
func (d FunctionCallWithProvenanceDeflated[T]) resolveAny(_ context.Context, _ tracker.ResultTracker) (AnyResult, error) {
	return nil, fmt.Errorf("provenance: version call %q has not been resolved: %w", d.functionName, errs.ErrUnresolvedVersion)
}

// DeflateCall reduces a resolved result's originating call to a stub
// carrying only its identity and the digest of its WithInputs record.
func (r FunctionCallResultWithProvenance[T]) DeflateCall() FunctionCallWithProvenanceDeflated[T] {
	return FunctionCallWithProvenanceDeflated[T]{
		functionName:    r.call.functionName,
		outputClassName: r.call.outputClassName,
		outputCodec:     r.call.outputCodec,
		digest:          r.callDigest,
	}
}

// Inflate rebinds a deflated call to a live function looked up by name in
// reg, so the call can be invoked again. The reconstructed call carries no
// inputs or version of its own: per the unknown-type tolerance in the
// specification, a fully generic rehydration of an arbitrarily-typed input
// subtree is not attempted here — callers that need that recurse over the
// WithInputs record returned by the tracker themselves.
func (d FunctionCallWithProvenanceDeflated[T]) Inflate(_ context.Context, _ tracker.ResultTracker, reg FunctionLookup) (FunctionCallWithProvenance[T], error) {
	af, err := reg.Lookup(d.functionName)
	if err != nil {
		return FunctionCallWithProvenance[T]{}, err
	}
	return FunctionCallWithProvenance[T]{
		functionName:    d.functionName,
		outputClassName: d.outputClassName,
		outputCodec:     d.outputCodec,
		fn:              functionFromRegistry[T]{af: af},
	}, nil
}
