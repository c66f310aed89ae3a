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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lineagegraph/provgraph/digest"
)

// GCBuilds removes build-info blobs from an FS tracker root beyond the
// keepBuilds most recent (by key, which sorts chronologically for
// CI-run-id-style BuildIDs). It returns the keys removed (or, if dryRun,
// the keys that would be removed).
func GCBuilds(ctx context.Context, root string, keepBuilds int, dryRun bool) ([]string, error) {
	store, err := NewFSBlobStore(root)
	if err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, prefixBuilds)
	if err != nil {
		return nil, fmt.Errorf("tracker: could not list build blobs under %q: %v", root, err)
	}
	sort.Strings(keys)
	if len(keys) <= keepBuilds {
		return nil, nil
	}
	toRemove := keys[:len(keys)-keepBuilds]
	if dryRun {
		return toRemove, nil
	}
	for _, key := range toRemove {
		if err := os.Remove(store.path(key)); err != nil {
			return nil, fmt.Errorf("tracker: could not remove build blob %q: %v", key, err)
		}
	}
	return toRemove, nil
}

// VerifyOutputDigests re-digests every saved output value blob under an FS
// tracker root and reports the keys whose content digest does not match the
// digest encoded in their own key, the operational surface over
// checkConsistency's write-time invariant.
func VerifyOutputDigests(ctx context.Context, root string) ([]string, error) {
	store, err := NewFSBlobStore(root)
	if err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, prefixData)
	if err != nil {
		return nil, fmt.Errorf("tracker: could not list output value blobs under %q: %v", root, err)
	}

	var bad []string
	for _, key := range keys {
		wantHex := strings.TrimPrefix(key, prefixData)
		want, err := digest.Parse(wantHex)
		if err != nil {
			bad = append(bad, key)
			continue
		}
		b, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("tracker: could not read %q: %v", key, err)
		}
		if got := digest.New(b); !got.Equal(want) {
			bad = append(bad, key)
		}
	}
	return bad, nil
}
