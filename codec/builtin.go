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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lineagegraph/provgraph/errs"
)

// stringCodec is the built-in Codec[string]. Strings serialize as their raw
// UTF-8 bytes, not JSON-quoted, so that digesting a string value matches
// digesting the bytes a user would otherwise hash directly.
type stringCodec struct{}

func (stringCodec) Serialize(v string) ([]byte, error)   { return []byte(v), nil }
func (stringCodec) Deserialize(b []byte) (string, error) { return string(b), nil }
func (stringCodec) ClassName() string                    { return "provgraph.string" }

// int64Codec is the built-in Codec[int64], encoded as decimal ASCII so the
// bytes are human-inspectable in the blob store.
type int64Codec struct{}

func (int64Codec) Serialize(v int64) ([]byte, error) {
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (int64Codec) Deserialize(b []byte) (int64, error) {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("codec: could not parse int64 %q: %v: %w", b, err, errs.ErrCodecFailure)
	}
	return v, nil
}

func (int64Codec) ClassName() string { return "provgraph.int64" }

// float64Codec is the built-in Codec[float64], encoded via JSON to get a
// canonical textual float representation.
type float64Codec struct{}

func (float64Codec) Serialize(v float64) ([]byte, error) { return json.Marshal(v) }

func (float64Codec) Deserialize(b []byte) (float64, error) {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, fmt.Errorf("codec: could not parse float64 %q: %v: %w", b, err, errs.ErrCodecFailure)
	}
	return v, nil
}

func (float64Codec) ClassName() string { return "provgraph.float64" }

// boolCodec is the built-in Codec[bool].
type boolCodec struct{}

func (boolCodec) Serialize(v bool) ([]byte, error) {
	if v {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func (boolCodec) Deserialize(b []byte) (bool, error) {
	switch string(b) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("codec: could not parse bool %q: %w", b, errs.ErrCodecFailure)
	}
}

func (boolCodec) ClassName() string { return "provgraph.bool" }

// BytesCodec is the built-in Codec[[]byte]. It is exported (unlike the
// scalar codecs above) because callers occasionally need it explicitly, e.g.
// when constructing an UnknownProvenance[[]byte] leaf; per the digest guard
// in DigestObject, raw byte values should still be digested with
// digest.New directly rather than via this codec's Serialize.
type BytesCodec struct{}

func (BytesCodec) Serialize(v []byte) ([]byte, error)   { return v, nil }
func (BytesCodec) Deserialize(b []byte) ([]byte, error) { return b, nil }
func (BytesCodec) ClassName() string                    { return "provgraph.bytes" }

// JSONCodec adapts any JSON-marshalable type T into a Codec[T] using
// canonical JSON bytes, the common case for user-defined value and output
// types. The class name must be supplied explicitly since Go has no stable
// reflection-free canonical type name, so registration is always explicit
// rather than reflective.
type JSONCodec[T any] struct {
	Name string
}

func (c JSONCodec[T]) Serialize(v T) ([]byte, error) {
	b, err := jsonCanonicalMarshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: could not marshal class %q: %v: %w", c.Name, err, errs.ErrCodecFailure)
	}
	return b, nil
}

func (c JSONCodec[T]) Deserialize(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("codec: could not unmarshal class %q: %v: %w", c.Name, err, errs.ErrCodecFailure)
	}
	return v, nil
}

func (c JSONCodec[T]) ClassName() string { return c.Name }
