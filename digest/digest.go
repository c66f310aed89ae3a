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

// Package digest provides the content-addressing primitive used throughout
// provgraph: a fixed-width SHA-1 hash over canonical bytes, plus the
// canonicalization step that makes hashing a JSON-backed value deterministic.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Size is the length in hex characters of a Digest's string form.
const Size = 40

// Digest is a content hash. It is always a lowercase 40-character hex string
// (SHA-1). The zero Digest is invalid; use New or Parse to construct one.
type Digest struct {
	hex string
}

// jsonDigest mirrors the on-the-wire shape used wherever a Digest is embedded
// in a serializable record, e.g. `valueDigest: {id: hex40}`.
type jsonDigest struct {
	ID string `json:"id"`
}

// New computes the Digest of the given bytes directly. Callers holding a raw
// byte array must use this rather than re-wrapping the bytes through a codec,
// per the no-double-hash guard described in codec.DigestObject.
func New(b []byte) Digest {
	sum := sha1.Sum(b)
	return Digest{hex: hex.EncodeToString(sum[:])}
}

// Parse validates and wraps an existing 40-character hex digest string.
func Parse(s string) (Digest, error) {
	if len(s) != Size {
		return Digest{}, fmt.Errorf("digest: invalid length %d, want %d", len(s), Size)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return Digest{}, fmt.Errorf("digest: invalid hex string %q: %v", s, err)
	}
	return Digest{hex: strings.ToLower(s)}, nil
}

// IsZero reports whether d is the zero value (never a valid content digest).
func (d Digest) IsZero() bool {
	return d.hex == ""
}

// String returns the 40-character lowercase hex representation.
func (d Digest) String() string {
	return d.hex
}

// Equal reports whether two digests have the same hex value.
func (d Digest) Equal(other Digest) bool {
	return d.hex == other.hex
}

// MarshalJSON encodes the digest as `{"id": "<hex>"}`, matching the wire
// schema in spec section 6.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonDigest{ID: d.hex})
}

// UnmarshalJSON decodes the `{"id": "<hex>"}` wire form.
func (d *Digest) UnmarshalJSON(b []byte) error {
	var jd jsonDigest
	if err := json.Unmarshal(b, &jd); err != nil {
		return fmt.Errorf("digest: could not unmarshal: %v", err)
	}
	parsed, err := Parse(jd.ID)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Canonicalize marshals v to JSON and rewrites it into RFC 8785 canonical
// form, so that two structurally equal values always produce identical
// bytes regardless of Go's map-key marshaling order or field spacing.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("digest: could not marshal value for canonicalization: %v", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("digest: could not canonicalize JSON: %v", err)
	}
	return canonical, nil
}

// CanonicalizeBytes rewrites already-marshaled JSON bytes into RFC 8785
// canonical form, for callers (such as package serializable) that build their
// own JSON bytes out-of-band before digesting them.
func CanonicalizeBytes(raw []byte) ([]byte, error) {
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("digest: could not canonicalize JSON: %v", err)
	}
	return canonical, nil
}

// OfJSON canonicalizes v and returns the Digest of the canonical bytes.
func OfJSON(v any) (Digest, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return Digest{}, err
	}
	return New(canonical), nil
}

// OfDigests computes the digest of an ordered list of digests (used for
// inputGroupDigest: the digest of the canonical serialization of the ordered
// list of input result digests).
func OfDigests(ds []Digest) (Digest, error) {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.String()
	}
	canonical, err := Canonicalize(ids)
	if err != nil {
		return Digest{}, fmt.Errorf("digest: could not compute digest of digest list: %v", err)
	}
	return New(canonical), nil
}
