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
	"errors"
	"testing"

	"github.com/lineagegraph/provgraph/errs"
)

func TestDigestObjectRefusesRawBytes(t *testing.T) {
	if _, err := DigestObject[[]byte](BytesCodec{}, []byte("x")); !errors.Is(err, errs.ErrCodecFailure) {
		t.Errorf("DigestObject on []byte = %v, want ErrCodecFailure", err)
	}
}

func TestSerializeAndDigestMatchesSeparateCalls(t *testing.T) {
	c := JSONCodec[int]{Name: "test.int"}
	b, d, err := SerializeAndDigest[int](c, 42)
	if err != nil {
		t.Fatalf("SerializeAndDigest failed: %v", err)
	}
	if got := DigestBytes(b); !got.Equal(d) {
		t.Errorf("inconsistent digest: DigestBytes(b)=%s, SerializeAndDigest digest=%s", got, d)
	}
}

func TestCheckConsistencyAcceptsGoodRecord(t *testing.T) {
	c := JSONCodec[int]{Name: "test.int"}
	b, d, err := SerializeAndDigest[int](c, 7)
	if err != nil {
		t.Fatalf("SerializeAndDigest failed: %v", err)
	}
	if err := CheckConsistency[int](c, b, d); err != nil {
		t.Errorf("CheckConsistency rejected a good record: %v", err)
	}
}

func TestCheckConsistencyDetectsDigestMismatch(t *testing.T) {
	c := JSONCodec[int]{Name: "test.int"}
	b, _, err := SerializeAndDigest[int](c, 7)
	if err != nil {
		t.Fatalf("SerializeAndDigest failed: %v", err)
	}
	wrongDigest := DigestBytes([]byte("not the same bytes"))
	if err := CheckConsistency[int](c, b, wrongDigest); !errors.Is(err, errs.ErrInconsistentDigest) {
		t.Errorf("CheckConsistency = %v, want ErrInconsistentDigest", err)
	}
}

func TestRegistryLookupUnknownClass(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("nonexistent.class"); !errors.Is(err, errs.ErrClassNotFound) {
		t.Errorf("Lookup on empty registry = %v, want ErrClassNotFound", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	c := JSONCodec[string]{Name: "test.string"}
	if err := r.Register(Erase[string](c)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	found, err := r.Lookup("test.string")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	b, err := found.SerializeAny("hi")
	if err != nil {
		t.Fatalf("SerializeAny failed: %v", err)
	}
	v, err := found.DeserializeAny(b)
	if err != nil {
		t.Fatalf("DeserializeAny failed: %v", err)
	}
	if v != "hi" {
		t.Errorf("round trip mismatch: got %v, want %q", v, "hi")
	}
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	for _, name := range []string{"provgraph.string", "provgraph.int64", "provgraph.float64", "provgraph.bool"} {
		if _, err := Default.Lookup(name); err != nil {
			t.Errorf("Default registry missing builtin %q: %v", name, err)
		}
	}
}
