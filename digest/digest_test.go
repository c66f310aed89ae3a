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

package digest

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewIsStable(t *testing.T) {
	a := New([]byte("hello"))
	b := New([]byte("hello"))
	if !a.Equal(b) {
		t.Errorf("New(%q) not stable: %s vs %s", "hello", a, b)
	}
	if a.String() == "" || len(a.String()) != Size {
		t.Errorf("unexpected digest length: got %d, want %d", len(a.String()), Size)
	}
}

func TestParseRoundTrip(t *testing.T) {
	d := New([]byte("roundtrip"))
	parsed, err := Parse(d.String())
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", d.String(), err)
	}
	if !d.Equal(parsed) {
		t.Errorf("Parse did not round-trip: got %s, want %s", parsed, d)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []string{"", "abc", "zz" + New([]byte("x")).String()[2:]}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", c)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := New([]byte("json"))
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got Digest
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !d.Equal(got) {
		t.Errorf("JSON round trip mismatch: got %s, want %s", got, d)
	}
}

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	type pair struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	c1, err := Canonicalize(pair{B: 2, A: 1})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	c2, err := Canonicalize(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if diff := cmp.Diff(string(c1), string(c2)); diff != "" {
		t.Errorf("canonical bytes differ by source field order (-struct +map):\n%s", diff)
	}
}

func TestOfJSONDigestStability(t *testing.T) {
	// Quantified invariant 1 from spec section 8: digest(serialize(v)) ==
	// digest(serialize(deserialize(serialize(v)))).
	type value struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	v := value{Name: "add", N: 5}
	d1, err := OfJSON(v)
	if err != nil {
		t.Fatalf("OfJSON failed: %v", err)
	}

	raw, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	var roundTripped value
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	d2, err := OfJSON(roundTripped)
	if err != nil {
		t.Fatalf("OfJSON failed: %v", err)
	}
	if !d1.Equal(d2) {
		t.Errorf("digest instability across round trip: %s vs %s", d1, d2)
	}
}

func TestOfDigestsOrderSensitive(t *testing.T) {
	// Quantified invariant 4 from spec section 8: permuting inputs changes
	// the inputGroupDigest.
	a := New([]byte("a"))
	b := New([]byte("b"))

	d1, err := OfDigests([]Digest{a, b})
	if err != nil {
		t.Fatalf("OfDigests failed: %v", err)
	}
	d2, err := OfDigests([]Digest{b, a})
	if err != nil {
		t.Fatalf("OfDigests failed: %v", err)
	}
	if d1.Equal(d2) {
		t.Errorf("OfDigests not order sensitive: both orders produced %s", d1)
	}
}

func TestOfDigestsEmptyIsStable(t *testing.T) {
	d1, err := OfDigests(nil)
	if err != nil {
		t.Fatalf("OfDigests(nil) failed: %v", err)
	}
	d2, err := OfDigests([]Digest{})
	if err != nil {
		t.Fatalf("OfDigests([]) failed: %v", err)
	}
	if !d1.Equal(d2) {
		t.Errorf("empty digest list not stable: %s vs %s", d1, d2)
	}
}
