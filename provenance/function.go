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

	"github.com/lineagegraph/provgraph/errs"
)

// Function is the user-supplied callable a FunctionCallWithProvenance[T]
// invokes on a cache miss. Inputs arrive as already-resolved concrete
// values, in declared order; version is the resolved Version string.
type Function[T any] interface {
	Name() string
	Invoke(ctx context.Context, version string, inputs []any) (T, error)
}

// AnyFunction is the type-erased shape the Function Registry stores, since
// functions with differing output types share one process-wide name map.
// There is no reflective fallback: a function must be Erased and
// Registered explicitly.
type AnyFunction interface {
	Name() string
	OutputClassName() string
	InvokeAny(ctx context.Context, version string, inputs []any) (any, error)
}

type erasedFunction[T any] struct {
	fn     Function[T]
	output string
}

// EraseFunction adapts a typed Function[T] to the registry's AnyFunction
// shape, tagging it with the canonical output class name.
func EraseFunction[T any](fn Function[T], outputClassName string) AnyFunction {
	return erasedFunction[T]{fn: fn, output: outputClassName}
}

func (e erasedFunction[T]) Name() string            { return e.fn.Name() }
func (e erasedFunction[T]) OutputClassName() string { return e.output }

func (e erasedFunction[T]) InvokeAny(ctx context.Context, version string, inputs []any) (any, error) {
	return e.fn.Invoke(ctx, version, inputs)
}

// functionFromRegistry adapts a type-erased AnyFunction back to Function[T],
// for Inflate to rebind a deflated call to a locally-registered function.
type functionFromRegistry[T any] struct {
	af AnyFunction
}

func (f functionFromRegistry[T]) Name() string { return f.af.Name() }

func (f functionFromRegistry[T]) Invoke(ctx context.Context, version string, inputs []any) (T, error) {
	var zero T
	out, err := f.af.InvokeAny(ctx, version, inputs)
	if err != nil {
		return zero, err
	}
	t, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("provenance: function %q returned %T, want %T: %w", f.af.Name(), out, zero, errs.ErrUnexpectedVariant)
	}
	return t, nil
}

// FunctionLookup is the minimal surface Inflate needs from a function
// registry. It is declared here, not imported from package registry, so
// that registry may depend on provenance without an import cycle.
type FunctionLookup interface {
	Lookup(name string) (AnyFunction, error)
}
