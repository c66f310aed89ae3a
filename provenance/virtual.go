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
	"fmt"

	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/digest"
)

// VirtualValue holds a result's output in one of three forms: the concrete
// value, its digest, or its serialized bytes. At least one is present by
// construction — there is no exported zero-value constructor.
type VirtualValue[T any] struct {
	concrete *T
	dig      *digest.Digest
	bytes    []byte
}

// VirtualFromConcrete wraps a freshly-computed value.
func VirtualFromConcrete[T any](v T) VirtualValue[T] {
	return VirtualValue[T]{concrete: &v}
}

// VirtualFromDigest wraps a digest alone, for a cache-hit result whose
// concrete value has not been loaded.
func VirtualFromDigest[T any](d digest.Digest) VirtualValue[T] {
	return VirtualValue[T]{dig: &d}
}

// VirtualFromBytes wraps already-serialized bytes.
func VirtualFromBytes[T any](b []byte) VirtualValue[T] {
	return VirtualValue[T]{bytes: b}
}

// Concrete returns the wrapped value and true if it is already known.
func (v VirtualValue[T]) Concrete() (T, bool) {
	if v.concrete == nil {
		var zero T
		return zero, false
	}
	return *v.concrete, true
}

// Digest returns the content digest of the wrapped value, computing it via c
// if only the concrete value or bytes are currently held.
func (v VirtualValue[T]) Digest(c codec.Codec[T]) (digest.Digest, error) {
	if v.dig != nil {
		return *v.dig, nil
	}
	if v.bytes != nil {
		return codec.DigestBytes(v.bytes), nil
	}
	if v.concrete != nil {
		return codec.DigestObject(c, *v.concrete)
	}
	return digest.Digest{}, fmt.Errorf("provenance: VirtualValue has neither a concrete value, digest, nor bytes")
}

// Bytes returns the wrapped value's serialized form, serializing via c if
// only the concrete value is currently held.
func (v VirtualValue[T]) Bytes(c codec.Codec[T]) ([]byte, error) {
	if v.bytes != nil {
		return v.bytes, nil
	}
	if v.concrete != nil {
		return c.Serialize(*v.concrete)
	}
	return nil, fmt.Errorf("provenance: VirtualValue has no concrete value or bytes to serialize")
}
