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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/codec"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

var testInt64Codec = codec.JSONCodec[int64]{Name: "test.int64"}
var testVersionCodec = codec.JSONCodec[string]{Name: "test.version"}

type addFunction struct {
	name  string
	calls int32
}

func (f *addFunction) Name() string { return f.name }

func (f *addFunction) Invoke(_ context.Context, _ string, inputs []any) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	return inputs[0].(int64) + inputs[1].(int64), nil
}

type mulFunction struct {
	name  string
	calls int32
}

func (f *mulFunction) Name() string { return f.name }

func (f *mulFunction) Invoke(_ context.Context, _ string, inputs []any) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	return inputs[0].(int64) * inputs[1].(int64), nil
}

func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr := tracker.NewMemory()
	tr.SetCurrentBuildInfo(buildinfo.BuildInfo{CommitID: "deadbeef", BuildID: "build-1"})
	return tr
}

func two() UnknownProvenance[int64]   { return NewUnknownProvenance(int64(2), testInt64Codec) }
func three() UnknownProvenance[int64] { return NewUnknownProvenance(int64(3), testInt64Codec) }
func four() UnknownProvenance[int64]  { return NewUnknownProvenance(int64(4), testInt64Codec) }

func versionLeaf(v string) AnyValue {
	return NewUnknownProvenance(v, testVersionCodec)
}

// inputGroupDigestOf computes the inputGroupDigest a resolved result would
// have been saved under, from its resolved inputs' output digests.
func inputGroupDigestOf(t *testing.T, resolvedInputs []AnyResult) digest.Digest {
	t.Helper()
	digests := make([]digest.Digest, len(resolvedInputs))
	for i, in := range resolvedInputs {
		digests[i] = in.OutputDigest()
	}
	d, err := digest.OfDigests(digests)
	if err != nil {
		t.Fatalf("OfDigests failed: %v", err)
	}
	return d
}

// S1: add(2, 3) resolves to 5 and leaves a memo entry findable by
// (functionName, version, inputGroupDigest).
func TestScenarioAddMemoHit(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fn := &addFunction{name: "add"}

	call := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	result, err := call.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, err := result.Value(ctx, tr)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if got != 5 {
		t.Errorf("add(2,3) = %d, want 5", got)
	}
	if fn.calls != 1 {
		t.Errorf("function invoked %d times, want 1", fn.calls)
	}

	_, hit, err := tr.FindResult(ctx, "add", result.resolvedVersion.versionKey(), inputGroupDigestOf(t, result.resolvedInputs))
	if err != nil {
		t.Fatalf("FindResult failed: %v", err)
	}
	if !hit {
		t.Errorf("memo index has no entry for add(2,3) after resolve")
	}
}

// S2: a second resolve of an equivalent call does not invoke the function
// again, and returns a matching outputDigest.
func TestScenarioMemoHitSkipsInvocation(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fn := &addFunction{name: "add"}

	call1 := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	r1, err := call1.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}

	call2 := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	r2, err := call2.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if fn.calls != 1 {
		t.Errorf("function invoked %d times across two equivalent resolves, want 1", fn.calls)
	}
	if !r1.OutputDigest().Equal(r2.OutputDigest()) {
		t.Errorf("outputDigest mismatch between resolves: %s vs %s", r1.OutputDigest(), r2.OutputDigest())
	}
	if r1.CallDigest().Equal(r2.CallDigest()) == false {
		t.Errorf("callDigest mismatch between equivalent resolves: %s vs %s", r1.CallDigest(), r2.CallDigest())
	}
}

// S3: mul(add(2,3), 4) resolves through a nested call input, embedding the
// inner add call as a CallWithoutInputs stub in the outer call's record.
func TestScenarioNestedCall(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	addFn := &addFunction{name: "add"}
	mulFn := &mulFunction{name: "mul"}

	addCall := NewCall[int64]("add", addFn, versionLeaf("1.0"), testInt64Codec, two(), three())
	addResult, err := addCall.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("inner Resolve failed: %v", err)
	}

	mulCall := NewCall[int64]("mul", mulFn, versionLeaf("1.0"), testInt64Codec, addResult, four())
	mulResult, err := mulCall.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("outer Resolve failed: %v", err)
	}
	got, err := mulResult.Value(ctx, tr)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if got != 20 {
		t.Errorf("mul(add(2,3),4) = %d, want 20", got)
	}

	rec, err := mulResult.callRecord()
	if err != nil {
		t.Fatalf("callRecord failed: %v", err)
	}
	stub, ok := rec.(serializable.CallWithoutInputs)
	if !ok {
		t.Fatalf("callRecord of the outer result is a %s, want %s", rec.Subclass(), serializable.SubclassWithoutInputs)
	}
	if !stub.DigestOfEquivalentWithInputs.Equal(mulResult.CallDigest()) {
		t.Errorf("outer call stub digest %s does not match CallDigest %s", stub.DigestOfEquivalentWithInputs, mulResult.CallDigest())
	}

	withInputs, ok, err := tr.LoadCallByDigest(ctx, mulResult.CallDigest())
	if err != nil {
		t.Fatalf("LoadCallByDigest failed: %v", err)
	}
	if !ok {
		t.Fatalf("no WithInputs call record saved for the outer call")
	}
	callWithInputs, ok := withInputs.(serializable.CallWithInputs)
	if !ok {
		t.Fatalf("loaded call record is a %s, want %s", withInputs.Subclass(), serializable.SubclassWithInputs)
	}
	if len(callWithInputs.InputList) != 2 {
		t.Fatalf("outer call has %d inputs, want 2", len(callWithInputs.InputList))
	}
	innerStub, ok := callWithInputs.InputList[0].(serializable.CallWithoutInputs)
	if !ok {
		t.Fatalf("outer call's first input is a %s, want %s", callWithInputs.InputList[0].Subclass(), serializable.SubclassWithoutInputs)
	}
	if !innerStub.DigestOfEquivalentWithInputs.Equal(addResult.CallDigest()) {
		t.Errorf("embedded inner call stub digest %s does not match the inner call's own digest %s", innerStub.DigestOfEquivalentWithInputs, addResult.CallDigest())
	}
}

// S4: add at version "1.1" with the same inputs produces a distinct memo
// entry, and the "1.0" entry survives.
func TestScenarioVersionChangeInvalidates(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fnV1 := &addFunction{name: "add"}
	fnV2 := &addFunction{name: "add"}

	call1 := NewCall[int64]("add", fnV1, versionLeaf("1.0"), testInt64Codec, two(), three())
	r1, err := call1.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("v1.0 Resolve failed: %v", err)
	}

	call2 := NewCall[int64]("add", fnV2, versionLeaf("1.1"), testInt64Codec, two(), three())
	r2, err := call2.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("v1.1 Resolve failed: %v", err)
	}

	if fnV1.calls != 1 || fnV2.calls != 1 {
		t.Errorf("expected each version to invoke its function exactly once, got v1.0=%d v1.1=%d", fnV1.calls, fnV2.calls)
	}
	if r1.resolvedVersion.versionKey() == r2.resolvedVersion.versionKey() {
		t.Errorf("version 1.0 and 1.1 produced the same versionKey")
	}

	_, hit, err := tr.FindResult(ctx, "add", r1.resolvedVersion.versionKey(), inputGroupDigestOf(t, r1.resolvedInputs))
	if err != nil {
		t.Fatalf("FindResult for v1.0 failed: %v", err)
	}
	if !hit {
		t.Errorf("v1.0's memo entry no longer exists after resolving v1.1")
	}
}

// S5: a call whose version is itself a deflated (never-resolved) call stub
// fails to resolve with ErrUnresolvedVersion.
func TestScenarioUnresolvedVersionPropagates(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	versionFn := versionFnAdapter{}
	versionCall := NewCall[string]("computeVersion", versionFn, versionLeaf("seed"), testVersionCodec)
	versionResult, err := versionCall.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("version call Resolve failed: %v", err)
	}
	unresolvedVersionStub := versionResult.DeflateCall()

	addFn := &addFunction{name: "add"}
	outer := NewCall[int64]("add", addFn, unresolvedVersionStub, testInt64Codec, two(), three())
	if _, err := outer.Resolve(ctx, tr); !errors.Is(err, errs.ErrUnresolvedVersion) {
		t.Errorf("Resolve with a deflated version call = %v, want ErrUnresolvedVersion", err)
	}
}

type versionFnAdapter struct{}

func (versionFnAdapter) Name() string { return "computeVersion" }

func (versionFnAdapter) Invoke(_ context.Context, _ string, _ []any) (string, error) {
	return "1.0", nil
}

// S6: a result can be transported without the output codec being available:
// the result record and its digest survive a deflate/reload/resave round
// trip, and looking up an unregistered class name fails with ErrClassNotFound.
func TestScenarioCrossProcessRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fn := &addFunction{name: "add"}

	call := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	result, err := call.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	deflated, err := result.Deflate()
	if err != nil {
		t.Fatalf("Deflate failed: %v", err)
	}

	rec, ok, err := tr.LoadResultByDigest(ctx, deflated.ResultDigest())
	if err != nil {
		t.Fatalf("LoadResultByDigest failed: %v", err)
	}
	if !ok {
		t.Fatalf("LoadResultByDigest: record not found")
	}
	if rec.Subclass() != serializable.SubclassResultKnown {
		t.Errorf("loaded record has subclass %s, want %s", rec.Subclass(), serializable.SubclassResultKnown)
	}

	resaved, err := deflated.Resave(ctx, tr)
	if err != nil {
		t.Fatalf("Resave failed: %v", err)
	}
	if !resaved.Equal(deflated.ResultDigest()) {
		t.Errorf("Resave produced digest %s, want %s", resaved, deflated.ResultDigest())
	}

	emptyRegistry := codec.NewRegistry()
	if _, err := emptyRegistry.Lookup("test.int64"); !errors.Is(err, errs.ErrClassNotFound) {
		t.Errorf("Lookup on an unregistered class = %v, want ErrClassNotFound", err)
	}
}

// Resolving an already-resolved result must not mutate or discard it: the
// no-copy rule applies to an already-resolved result resolving against
// itself.
func TestResolvedResultResolvesToItself(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fn := &addFunction{name: "add"}

	call := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	result, err := call.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	again, err := result.resolveAny(ctx, tr)
	if err != nil {
		t.Fatalf("resolveAny on an already-resolved result failed: %v", err)
	}
	reresolved, ok := again.(FunctionCallResultWithProvenance[int64])
	if !ok {
		t.Fatalf("resolveAny returned a %T, want FunctionCallResultWithProvenance[int64]", again)
	}
	if !reresolved.CallDigest().Equal(result.CallDigest()) {
		t.Errorf("resolveAny on an already-resolved result changed its identity")
	}
}

// Swapping sibling input order changes the inputGroupDigest (and therefore
// the memoization key), since inputGroupDigest is computed over the ordered
// input list, not a sorted or set-like representation.
func TestInputOrderAffectsInputGroupDigest(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	fn := &addFunction{name: "add"}

	forward := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, two(), three())
	fResult, err := forward.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("forward Resolve failed: %v", err)
	}

	backward := NewCall[int64]("add", fn, versionLeaf("1.0"), testInt64Codec, three(), two())
	bResult, err := backward.Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("backward Resolve failed: %v", err)
	}

	if inputGroupDigestOf(t, fResult.resolvedInputs).Equal(inputGroupDigestOf(t, bResult.resolvedInputs)) {
		t.Errorf("swapping input order produced the same inputGroupDigest")
	}
	if fResult.CallDigest().Equal(bResult.CallDigest()) {
		t.Errorf("swapping input order produced the same call digest")
	}
}

// An UnknownProvenance leaf resolves to a stable digest of its content
// alone: two leaves constructed from equal values digest identically.
func TestUnknownProvenanceDigestIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	a, err := NewUnknownProvenance(int64(7), testInt64Codec).Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := NewUnknownProvenance(int64(7), testInt64Codec).Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !a.OutputDigest().Equal(b.OutputDigest()) {
		t.Errorf("two leaves built from the same value digested differently: %s vs %s", a.OutputDigest(), b.OutputDigest())
	}

	c, err := NewUnknownProvenance(int64(8), testInt64Codec).Resolve(ctx, tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a.OutputDigest().Equal(c.OutputDigest()) {
		t.Errorf("leaves built from different values digested the same: %s", a.OutputDigest())
	}
}
