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

package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
	"github.com/lineagegraph/provgraph/serializable"
)

// Blob store key prefixes, one namespace per record kind.
const (
	prefixData    = "data/"
	prefixCalls   = "calls/"
	prefixResults = "results/"
	prefixMemo    = "memo/"
	prefixBuilds  = "builds/"
)

// ResultTracker is the storage-facing contract every resolution-engine call
// goes through: saving and loading output values, call records, result
// records, the memoization index, and build context.
type ResultTracker interface {
	// SaveOutputValue writes already-serialized value bytes under their
	// digest and returns that digest. Idempotent.
	SaveOutputValue(ctx context.Context, value []byte) (digest.Digest, error)
	// LoadValue returns the bytes previously saved under d.
	LoadValue(ctx context.Context, d digest.Digest) ([]byte, error)

	// SaveCallSerializable writes a call record under its own digest
	// (computed over the WithInputs form) and returns that digest.
	SaveCallSerializable(ctx context.Context, rec serializable.Record) (digest.Digest, error)
	// LoadCallByDigest returns the call record saved under d, or ok=false
	// if no such record exists.
	LoadCallByDigest(ctx context.Context, d digest.Digest) (rec serializable.Record, ok bool, err error)

	// SaveResultSerializable writes a result record under its own digest
	// and updates the memoization index so that FindResult can find it by
	// (functionName, functionVersion, inputGroupDigest).
	SaveResultSerializable(ctx context.Context, rec serializable.Record) (digest.Digest, error)
	// LoadResultByDigest returns the result record saved under d, or
	// ok=false if no such record exists.
	LoadResultByDigest(ctx context.Context, d digest.Digest) (rec serializable.Record, ok bool, err error)

	// FindResult is the memoization index lookup: given a function's
	// identity and the digest of its resolved input group, return the
	// full result record for a prior resolution with that key, if any.
	FindResult(ctx context.Context, functionName, functionVersion string, inputGroupDigest digest.Digest) (rec serializable.Record, ok bool, err error)

	// SaveBuildInfo persists a BuildInfo blob under its BuildID.
	SaveBuildInfo(ctx context.Context, info buildinfo.BuildInfo) error
	// CurrentBuildInfo returns the BuildInfo threaded into newly created
	// result nodes by the resolution engine.
	CurrentBuildInfo(ctx context.Context) (buildinfo.BuildInfo, error)
}

// Tracker implements ResultTracker on top of any BlobStore, so a concrete
// deployment only has to provide Get/Put/List.
type Tracker struct {
	store BlobStore

	mu      sync.RWMutex
	current *buildinfo.BuildInfo
}

// New builds a Tracker over the given BlobStore.
func New(store BlobStore) *Tracker {
	return &Tracker{store: store}
}

// NewMemory builds a Tracker over a fresh MemoryBlobStore, for tests and
// single-process use.
func NewMemory() *Tracker {
	return New(NewMemoryBlobStore())
}

// NewFS builds a Tracker over a local directory.
func NewFS(root string) (*Tracker, error) {
	store, err := NewFSBlobStore(root)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// SetCurrentBuildInfo sets the BuildInfo CurrentBuildInfo returns, without
// persisting it. Callers typically also call SaveBuildInfo so the record is
// durable and reachable by BuildID.
func (t *Tracker) SetCurrentBuildInfo(info buildinfo.BuildInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &info
}

// CurrentBuildInfo implements ResultTracker.
func (t *Tracker) CurrentBuildInfo(_ context.Context) (buildinfo.BuildInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return buildinfo.BuildInfo{}, fmt.Errorf("tracker: no current build info set")
	}
	return *t.current, nil
}

// SaveBuildInfo implements ResultTracker.
func (t *Tracker) SaveBuildInfo(ctx context.Context, info buildinfo.BuildInfo) error {
	raw, err := digest.Canonicalize(info)
	if err != nil {
		return fmt.Errorf("tracker: could not canonicalize build info: %v", err)
	}
	if err := t.store.Put(ctx, prefixBuilds+info.BuildID, raw); err != nil {
		return fmt.Errorf("tracker: could not save build info %q: %v: %w", info.BuildID, err, errs.ErrStorageError)
	}
	return nil
}

// SaveOutputValue implements ResultTracker.
func (t *Tracker) SaveOutputValue(ctx context.Context, value []byte) (digest.Digest, error) {
	d := digest.New(value)
	if err := t.store.Put(ctx, prefixData+d.String(), value); err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not save output value %s: %v: %w", d, err, errs.ErrStorageError)
	}
	return d, nil
}

// LoadValue implements ResultTracker.
func (t *Tracker) LoadValue(ctx context.Context, d digest.Digest) ([]byte, error) {
	b, err := t.store.Get(ctx, prefixData+d.String())
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("tracker: no output value for %s: %w", d, err)
		}
		return nil, fmt.Errorf("tracker: could not load output value %s: %v: %w", d, err, errs.ErrStorageError)
	}
	return b, nil
}

// SaveCallSerializable implements ResultTracker.
func (t *Tracker) SaveCallSerializable(ctx context.Context, rec serializable.Record) (digest.Digest, error) {
	d, err := serializable.Digest(rec)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not digest call record: %v", err)
	}
	raw, err := serializable.Marshal(rec)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not marshal call record: %v", err)
	}
	if err := t.store.Put(ctx, prefixCalls+d.String(), raw); err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not save call record %s: %v: %w", d, err, errs.ErrStorageError)
	}
	return d, nil
}

// LoadCallByDigest implements ResultTracker.
func (t *Tracker) LoadCallByDigest(ctx context.Context, d digest.Digest) (serializable.Record, bool, error) {
	raw, err := t.store.Get(ctx, prefixCalls+d.String())
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tracker: could not load call record %s: %v: %w", d, err, errs.ErrStorageError)
	}
	rec, err := serializable.Unmarshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("tracker: could not unmarshal call record %s: %v", d, err)
	}
	return rec, true, nil
}

// SaveResultSerializable implements ResultTracker. It writes the result
// record and then updates the memoization index last, so a crash mid-save
// never leaves a dangling memo entry pointing at a missing result record.
func (t *Tracker) SaveResultSerializable(ctx context.Context, rec serializable.Record) (digest.Digest, error) {
	functionName, functionVersion, inputGroupDigest, err := memoKeyOf(rec)
	if err != nil {
		return digest.Digest{}, err
	}

	d, err := serializable.Digest(rec)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not digest result record: %v", err)
	}
	raw, err := serializable.Marshal(rec)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not marshal result record: %v", err)
	}
	if err := t.store.Put(ctx, prefixResults+d.String(), raw); err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not save result record %s: %v: %w", d, err, errs.ErrStorageError)
	}

	memoKey := memoIndexKey(functionName, functionVersion, inputGroupDigest)
	memoValue, err := digest.Canonicalize(d.String())
	if err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not encode memo entry: %v", err)
	}
	if err := t.store.Put(ctx, memoKey, memoValue); err != nil {
		return digest.Digest{}, fmt.Errorf("tracker: could not update memo index for %s/%s: %v: %w", functionName, functionVersion, err, errs.ErrStorageError)
	}
	return d, nil
}

// LoadResultByDigest implements ResultTracker.
func (t *Tracker) LoadResultByDigest(ctx context.Context, d digest.Digest) (serializable.Record, bool, error) {
	raw, err := t.store.Get(ctx, prefixResults+d.String())
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tracker: could not load result record %s: %v: %w", d, err, errs.ErrStorageError)
	}
	rec, err := serializable.Unmarshal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("tracker: could not unmarshal result record %s: %v", d, err)
	}
	return rec, true, nil
}

// FindResult implements ResultTracker.
func (t *Tracker) FindResult(ctx context.Context, functionName, functionVersion string, inputGroupDigest digest.Digest) (serializable.Record, bool, error) {
	memoKey := memoIndexKey(functionName, functionVersion, inputGroupDigest)
	raw, err := t.store.Get(ctx, memoKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tracker: could not read memo index for %s/%s: %v: %w", functionName, functionVersion, err, errs.ErrStorageError)
	}
	var resultDigestStr string
	if err := json.Unmarshal(raw, &resultDigestStr); err != nil {
		return nil, false, fmt.Errorf("tracker: could not decode memo entry for %s/%s: %v", functionName, functionVersion, err)
	}
	resultDigest, err := digest.Parse(resultDigestStr)
	if err != nil {
		return nil, false, fmt.Errorf("tracker: memo entry for %s/%s has invalid digest %q: %v", functionName, functionVersion, resultDigestStr, err)
	}
	return t.LoadResultByDigest(ctx, resultDigest)
}

func memoIndexKey(functionName, functionVersion string, inputGroupDigest digest.Digest) string {
	return fmt.Sprintf("%s%s/%s/%s", prefixMemo, functionName, functionVersion, inputGroupDigest)
}

// memoKeyOf extracts the (functionName, functionVersion, inputGroupDigest)
// memoization key from a result record about to be saved. functionVersion
// here is a digest string, since Version is itself a ValueWithProvenance and
// may not have a human-readable name: for a literal version leaf it is the
// version value's digest, and for a computed version it is the digest of the
// version call's WithInputs record, not of the version value it produced.
func memoKeyOf(rec serializable.Record) (functionName, functionVersion string, inputGroupDigest digest.Digest, err error) {
	switch r := rec.(type) {
	case serializable.ResultWithKnownProvenance:
		versionStr, err := functionVersionKey(r.Call.FunctionVersion)
		if err != nil {
			return "", "", digest.Digest{}, err
		}
		return r.Call.FunctionName, versionStr, r.InputGroupDigest, nil
	case serializable.ResultWithUnknownProvenance:
		empty, err := digest.OfDigests(nil)
		if err != nil {
			return "", "", digest.Digest{}, err
		}
		return "", "", empty, nil
	default:
		return "", "", digest.Digest{}, fmt.Errorf("tracker: %s is not a result record: %w", rec.Subclass(), errs.ErrUnexpectedVariant)
	}
}

// functionVersionKey renders a call's FunctionVersion record into a stable
// string suitable for use as a memo-index path segment.
func functionVersionKey(v serializable.Record) (string, error) {
	switch r := v.(type) {
	case serializable.CallWithUnknownProvenance:
		return r.ValueDigest.String(), nil
	case serializable.CallWithoutInputs:
		return r.DigestOfEquivalentWithInputs.String(), nil
	default:
		return "", fmt.Errorf("tracker: unexpected functionVersion shape %s: %w", v.Subclass(), errs.ErrUnexpectedVariant)
	}
}
