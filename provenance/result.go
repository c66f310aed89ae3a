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
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

// FunctionCallResultWithProvenance is an executed call: the originating
// call, its resolved version and inputs, the produced output, and the build
// context it ran under.
type FunctionCallResultWithProvenance[T any] struct {
	call            FunctionCallWithProvenance[T]
	resolvedVersion AnyResult
	resolvedInputs  []AnyResult
	output          VirtualValue[T]
	build           buildinfo.BuildInfo
	// callDigest is the digest of this call's WithInputs serializable form,
	// computed once in Resolve from the (already final) resolved version and
	// inputs, and reused by callRecord, Deflate and DeflateCall. saveDeep
	// rebuilds the same record and uses the digest SaveCallSerializable
	// returns for it.
	callDigest   digest.Digest
	outputDigest digest.Digest
}

// Kind implements AnyValue.
func (r FunctionCallResultWithProvenance[T]) Kind() Kind { return KindCallResult }

// OutputClassName implements AnyValue.
func (r FunctionCallResultWithProvenance[T]) OutputClassName() string { return r.call.outputClassName }

// Output returns the produced output value, known as a concrete T, a
// digest, or both.
func (r FunctionCallResultWithProvenance[T]) Output() VirtualValue[T] { return r.output }

// Value returns the concrete output, loading and decoding it from rt if
// only its digest is currently held (e.g. after a cache hit).
func (r FunctionCallResultWithProvenance[T]) Value(ctx context.Context, rt tracker.ResultTracker) (T, error) {
	if v, ok := r.output.Concrete(); ok {
		return v, nil
	}
	b, err := rt.LoadValue(ctx, r.outputDigest)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := r.call.outputCodec.Deserialize(b)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("provenance: could not deserialize output of %s: %v: %w", r.call.functionName, err, errs.ErrCodecFailure)
	}
	return v, nil
}

// CallDigest is the digest of this result's backing WithInputs call record.
func (r FunctionCallResultWithProvenance[T]) CallDigest() digest.Digest { return r.callDigest }

// OutputDigest implements AnyResult.
func (r FunctionCallResultWithProvenance[T]) OutputDigest() digest.Digest { return r.outputDigest }

// BuildInfo implements AnyResult.
func (r FunctionCallResultWithProvenance[T]) BuildInfo() buildinfo.BuildInfo { return r.build }

func (r FunctionCallResultWithProvenance[T]) resolveAny(_ context.Context, _ tracker.ResultTracker) (AnyResult, error) {
	// No-copy rule: an already-resolved call result resolves to itself.
	return r, nil
}

func (r FunctionCallResultWithProvenance[T]) versionKey() string { return r.callDigest.String() }

func (r FunctionCallResultWithProvenance[T]) callRecord() (serializable.Record, error) {
	versionRec, err := r.resolvedVersion.callRecord()
	if err != nil {
		return nil, err
	}
	return serializable.CallWithoutInputs{
		FunctionName:                 r.call.functionName,
		FunctionVersion:              versionRec,
		OutputClassName:              r.call.outputClassName,
		DigestOfEquivalentWithInputs: r.callDigest,
	}, nil
}

func (r FunctionCallResultWithProvenance[T]) loadConcrete(ctx context.Context, rt tracker.ResultTracker) (any, error) {
	return r.Value(ctx, rt)
}

// saveDeep persists the full call + result record tree: every resolved
// input is saved first (depth-first), then this call's WithInputs record,
// then this result's record, with the memoization index written last.
func (r FunctionCallResultWithProvenance[T]) saveDeep(ctx context.Context, rt tracker.ResultTracker) (digest.Digest, error) {
	for _, in := range r.resolvedInputs {
		if _, err := in.saveDeep(ctx, rt); err != nil {
			return digest.Digest{}, err
		}
	}

	versionRec, err := r.resolvedVersion.callRecord()
	if err != nil {
		return digest.Digest{}, err
	}
	_, inputRecords, err := computeCallDigest(r.call.functionName, versionRec, r.call.outputClassName, r.resolvedInputs)
	if err != nil {
		return digest.Digest{}, err
	}

	withInputs := serializable.CallWithInputs{
		FunctionName:    r.call.functionName,
		FunctionVersion: versionRec,
		OutputClassName: r.call.outputClassName,
		InputList:       inputRecords,
	}
	callDigest, err := rt.SaveCallSerializable(ctx, withInputs)
	if err != nil {
		return digest.Digest{}, err
	}

	outputDigests := make([]digest.Digest, len(r.resolvedInputs))
	for i, in := range r.resolvedInputs {
		outputDigests[i] = in.OutputDigest()
	}
	inputGroupDigest, err := digest.OfDigests(outputDigests)
	if err != nil {
		return digest.Digest{}, err
	}

	resultRec := serializable.ResultWithKnownProvenance{
		Call: serializable.CallWithoutInputs{
			FunctionName:                 r.call.functionName,
			FunctionVersion:              versionRec,
			OutputClassName:              r.call.outputClassName,
			DigestOfEquivalentWithInputs: callDigest,
		},
		InputGroupDigest: inputGroupDigest,
		OutputDigest:     r.outputDigest,
		Brief:            r.build.Brief(),
	}
	if _, err := rt.SaveResultSerializable(ctx, resultRec); err != nil {
		return digest.Digest{}, err
	}
	return callDigest, nil
}

// Save is the consumer-facing entry point for persisting an already-resolved
// result without going through Resolve again; Resolve calls the same
// saveDeep logic internally on a cache miss.
func (r FunctionCallResultWithProvenance[T]) Save(ctx context.Context, rt tracker.ResultTracker) (digest.Digest, error) {
	return r.saveDeep(ctx, rt)
}

// computeCallDigest assembles the WithInputs record for a call identified by
// functionName/versionRec/outputClassName over resolvedInputs, and returns
// its digest along with the embedded per-input records (each input's own
// callRecord: a full leaf record, or a WithoutInputs stub for a nested
// call). Computing this does not require any tracker I/O.
func computeCallDigest(functionName string, versionRec serializable.Record, outputClassName string, resolvedInputs []AnyResult) (digest.Digest, []serializable.Record, error) {
	inputRecords := make([]serializable.Record, len(resolvedInputs))
	for i, in := range resolvedInputs {
		rec, err := in.callRecord()
		if err != nil {
			return digest.Digest{}, nil, err
		}
		inputRecords[i] = rec
	}
	withInputs := serializable.CallWithInputs{
		FunctionName:    functionName,
		FunctionVersion: versionRec,
		OutputClassName: outputClassName,
		InputList:       inputRecords,
	}
	d, err := serializable.Digest(withInputs)
	if err != nil {
		return digest.Digest{}, nil, err
	}
	return d, inputRecords, nil
}
