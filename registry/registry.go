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

// Package registry is the process-wide Function Registry: an explicit
// name-to-function map used to rebind a deflated call to executable code.
// There is no reflective or source-compilation fallback: a function must be
// registered by an explicit call, typically from the init of the package
// that defines it, and an unregistered name fails closed with
// ErrUnknownFunction.
package registry

import (
	"fmt"
	"sync"

	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/provenance"
)

// Registry is a process-wide mapping from canonical function name to the
// AnyFunction that implements it.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]provenance.AnyFunction
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]provenance.AnyFunction)}
}

// Register adds fn under its own Name, overwriting any function previously
// registered under that name.
func (r *Registry) Register(fn provenance.AnyFunction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn.Name() == "" {
		return fmt.Errorf("registry: cannot register a function with an empty name")
	}
	r.funcs[fn.Name()] = fn
	return nil
}

// Lookup finds the function registered under name. It implements
// provenance.FunctionLookup.
func (r *Registry) Lookup(name string) (provenance.AnyFunction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("registry: no function registered for %q: %w", name, errs.ErrUnknownFunction)
	}
	return fn, nil
}

// Default is the process-wide registry used when no explicit Registry is
// threaded through, mirroring package codec's Default registry.
var Default = New()
