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

// This file is the Resolution Engine. Go forbids a method from introducing
// type parameters beyond its receiver's, so it cannot live in a separate,
// non-generic package and still expose Resolve as a method on the generic
// FunctionCallWithProvenance[T] — it lives here, in the same package as the
// algebra types it resolves.
package provenance

import (
	"context"
	"fmt"
	"sync"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"

	"go.uber.org/multierr"
)

// Resolve drives c to a FunctionCallResultWithProvenance[T]: it resolves
// every input (in parallel, order not observable), resolves the version,
// probes the memoization index, and on a miss invokes the bound function and
// records the call and result. On a hit, the function is never invoked.
func (c FunctionCallWithProvenance[T]) Resolve(ctx context.Context, rt tracker.ResultTracker) (FunctionCallResultWithProvenance[T], error) {
	resolvedInputs, err := resolveInputs(ctx, rt, c.inputs)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	resolvedVersion, err := c.functionVersion.resolveAny(ctx, rt)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	outputDigests := make([]digest.Digest, len(resolvedInputs))
	for i, in := range resolvedInputs {
		outputDigests[i] = in.OutputDigest()
	}
	inputGroupDigest, err := digest.OfDigests(outputDigests)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	versionRec, err := resolvedVersion.callRecord()
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	versionKey := resolvedVersion.versionKey()

	callDigest, _, err := computeCallDigest(c.functionName, versionRec, c.outputClassName, resolvedInputs)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	found, hit, err := rt.FindResult(ctx, c.functionName, versionKey, inputGroupDigest)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	if hit {
		known, ok := found.(serializable.ResultWithKnownProvenance)
		if !ok {
			return FunctionCallResultWithProvenance[T]{}, fmt.Errorf("provenance: memo entry for %s is a %s, want %s: %w", c.functionName, found.Subclass(), serializable.SubclassResultKnown, errs.ErrUnexpectedVariant)
		}
		return FunctionCallResultWithProvenance[T]{
			call:            c,
			resolvedVersion: resolvedVersion,
			resolvedInputs:  resolvedInputs,
			output:          VirtualFromDigest[T](known.OutputDigest),
			build:           buildinfo.BuildInfo{CommitID: known.CommitID, BuildID: known.BuildID},
			callDigest:      callDigest,
			outputDigest:    known.OutputDigest,
		}, nil
	}

	if c.fn == nil {
		return FunctionCallResultWithProvenance[T]{}, fmt.Errorf("provenance: call %q has no bound function to execute on a cache miss", c.functionName)
	}

	versionAny, err := resolvedVersion.loadConcrete(ctx, rt)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	versionStr, ok := versionAny.(string)
	if !ok {
		return FunctionCallResultWithProvenance[T]{}, fmt.Errorf("provenance: function version for %q must resolve to a string, got %T", c.functionName, versionAny)
	}

	concreteInputs := make([]any, len(resolvedInputs))
	for i, in := range resolvedInputs {
		v, err := in.loadConcrete(ctx, rt)
		if err != nil {
			return FunctionCallResultWithProvenance[T]{}, err
		}
		concreteInputs[i] = v
	}

	out, err := c.fn.Invoke(ctx, versionStr, concreteInputs)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	build, err := rt.CurrentBuildInfo(ctx)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	outBytes, outDigest, err := codec.SerializeAndDigest(c.outputCodec, out)
	if err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	if _, err := rt.SaveOutputValue(ctx, outBytes); err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}

	result := FunctionCallResultWithProvenance[T]{
		call:            c,
		resolvedVersion: resolvedVersion,
		resolvedInputs:  resolvedInputs,
		output:          VirtualFromConcrete(out),
		build:           build,
		callDigest:      callDigest,
		outputDigest:    outDigest,
	}

	if _, err := result.saveDeep(ctx, rt); err != nil {
		return FunctionCallResultWithProvenance[T]{}, err
	}
	return result, nil
}

// resolveInputs resolves each of a call's inputs. Per the concurrency model,
// sibling order is not observable, so every input is resolved concurrently
// and every sibling runs to completion regardless of whether another
// sibling fails: a broken input three positions over should not hide a
// second, independent problem in another one, so failures are collected
// from every goroutine and combined with multierr rather than reported
// fail-fast from whichever goroutine happens to err first.
func resolveInputs(ctx context.Context, rt tracker.ResultTracker, inputs []AnyValue) ([]AnyResult, error) {
	results := make([]AnyResult, len(inputs))
	inputErrs := make([]error, len(inputs))

	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for i, in := range inputs {
		i, in := i, in
		go func() {
			defer wg.Done()
			r, err := in.resolveAny(ctx, rt)
			if err != nil {
				inputErrs[i] = err
				return
			}
			results[i] = r
		}()
	}
	wg.Wait()

	if combined := multierr.Combine(inputErrs...); combined != nil {
		return nil, combined
	}
	return results, nil
}
