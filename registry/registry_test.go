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

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/provenance"
)

type constFunction struct {
	name string
	out  int64
}

func (f constFunction) Name() string { return f.name }

func (f constFunction) Invoke(_ context.Context, _ string, _ []any) (int64, error) {
	return f.out, nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	fn := provenance.EraseFunction[int64](constFunction{name: "answer", out: 42}, "provgraph.int64")
	if err := r.Register(fn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Lookup("answer")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	out, err := got.InvokeAny(context.Background(), "1.0", nil)
	if err != nil {
		t.Fatalf("InvokeAny failed: %v", err)
	}
	if out.(int64) != 42 {
		t.Errorf("InvokeAny = %v, want 42", out)
	}
}

func TestLookupUnknownFunction(t *testing.T) {
	r := New()
	if _, err := r.Lookup("nope"); !errors.Is(err, errs.ErrUnknownFunction) {
		t.Errorf("Lookup(unknown) = %v, want ErrUnknownFunction", err)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := New()
	fn := provenance.EraseFunction[int64](constFunction{name: "", out: 1}, "provgraph.int64")
	if err := r.Register(fn); err == nil {
		t.Errorf("Register accepted a function with an empty name")
	}
}

func TestRegisterOverwritesExisting(t *testing.T) {
	r := New()
	first := provenance.EraseFunction[int64](constFunction{name: "answer", out: 1}, "provgraph.int64")
	second := provenance.EraseFunction[int64](constFunction{name: "answer", out: 2}, "provgraph.int64")
	if err := r.Register(first); err != nil {
		t.Fatalf("Register(first) failed: %v", err)
	}
	if err := r.Register(second); err != nil {
		t.Fatalf("Register(second) failed: %v", err)
	}

	got, err := r.Lookup("answer")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	out, err := got.InvokeAny(context.Background(), "1.0", nil)
	if err != nil {
		t.Fatalf("InvokeAny failed: %v", err)
	}
	if out.(int64) != 2 {
		t.Errorf("InvokeAny = %v, want the second registration's output (2)", out)
	}
}
