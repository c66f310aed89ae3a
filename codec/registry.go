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

package codec

import (
	"fmt"
	"sync"

	"github.com/lineagegraph/provgraph/errs"
)

// AnyCodec is the type-erased shape of a Codec[T], used by the registry so
// that codecs for heterogeneous types can live in one process-wide map keyed
// by class name. Adapt a Codec[T] to an AnyCodec with Erase.
type AnyCodec interface {
	SerializeAny(v any) ([]byte, error)
	DeserializeAny(b []byte) (any, error)
	ClassName() string
}

type erased[T any] struct {
	codec Codec[T]
}

// Erase adapts a typed Codec[T] to the type-erased AnyCodec shape for
// registration.
func Erase[T any](c Codec[T]) AnyCodec {
	return erased[T]{codec: c}
}

func (e erased[T]) SerializeAny(v any) ([]byte, error) {
	t, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("codec: value of type %T is not assignable to class %q: %w", v, e.codec.ClassName(), errs.ErrCodecFailure)
	}
	return e.codec.Serialize(t)
}

func (e erased[T]) DeserializeAny(b []byte) (any, error) {
	return e.codec.Deserialize(b)
}

func (e erased[T]) ClassName() string {
	return e.codec.ClassName()
}

// Registry is a process-wide mapping from canonical class name to the codec
// that can serialize/deserialize values of that class. Package serializable
// does not use it: its records are tagged and dispatched by
// serializable.Marshal/Unmarshal, and this package has no discriminated
// ("abstract") codec built on the registry.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]AnyCodec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]AnyCodec)}
}

// Register adds a codec under its own ClassName, overwriting any codec
// previously registered under that name.
func (r *Registry) Register(c AnyCodec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.ClassName()] = c
	return nil
}

// Lookup finds the codec registered for the given canonical class name.
func (r *Registry) Lookup(name string) (AnyCodec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered for class %q: %w", name, errs.ErrClassNotFound)
	}
	return c, nil
}

// Default is the process-wide registry used when no explicit Registry is
// threaded through. Core value-type codecs register themselves here in
// this package's init.
var Default = NewRegistry()

func init() {
	Default.Register(Erase[string](stringCodec{}))
	Default.Register(Erase[int64](int64Codec{}))
	Default.Register(Erase[float64](float64Codec{}))
	Default.Register(Erase[bool](boolCodec{}))
}
