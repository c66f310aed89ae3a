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

	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/tracker"
)

// FunctionCallWithProvenance is a not-yet-executed call: a function
// identity (name plus version, itself a ValueWithProvenance[string] so a
// version can be computed), an ordered input list, and the codec/class tag
// for its output.
type FunctionCallWithProvenance[T any] struct {
	functionName    string
	functionVersion AnyValue
	outputClassName string
	outputCodec     codec.Codec[T]
	inputs          []AnyValue
	fn              Function[T]
}

// NewCall builds a call node. version is itself a ValueWithProvenance[string]
// (typically NewUnknownProvenance(versionString, codec) for a literal
// version); fn is invoked on a cache miss with the resolved version string
// and resolved concrete inputs in declared order.
func NewCall[T any](functionName string, fn Function[T], version AnyValue, outputCodec codec.Codec[T], inputs ...AnyValue) FunctionCallWithProvenance[T] {
	return FunctionCallWithProvenance[T]{
		functionName:    functionName,
		functionVersion: version,
		outputClassName: outputCodec.ClassName(),
		outputCodec:     outputCodec,
		inputs:          inputs,
		fn:              fn,
	}
}

// Kind implements AnyValue.
func (c FunctionCallWithProvenance[T]) Kind() Kind { return KindCall }

// OutputClassName implements AnyValue.
func (c FunctionCallWithProvenance[T]) OutputClassName() string { return c.outputClassName }

// FunctionName returns the call's function identity.
func (c FunctionCallWithProvenance[T]) FunctionName() string { return c.functionName }

// FunctionVersion returns the call's (possibly unresolved) version node.
func (c FunctionCallWithProvenance[T]) FunctionVersion() AnyValue { return c.functionVersion }

// Inputs returns the call's ordered, type-erased input list.
func (c FunctionCallWithProvenance[T]) Inputs() []AnyValue { return c.inputs }

func (c FunctionCallWithProvenance[T]) resolveAny(ctx context.Context, rt tracker.ResultTracker) (AnyResult, error) {
	return c.Resolve(ctx, rt)
}
