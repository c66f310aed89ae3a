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
	"path/filepath"
	"strings"
)

// FSBlobStore is a BlobStore backed by a local directory tree, one file per
// key. It is the backend provctl uses for local runs.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates an FSBlobStore rooted at root, creating the
// directory if it does not exist.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("tracker: could not create blob store root %q: %v", root, err)
	}
	return &FSBlobStore{root: root}, nil
}

func (f *FSBlobStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

// Get implements BlobStore.
func (f *FSBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("tracker: key %q: %w", key, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("tracker: could not read %q: %v", key, err)
	}
	return b, nil
}

// Put implements BlobStore.
func (f *FSBlobStore) Put(_ context.Context, key string, value []byte) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("tracker: could not create directory for %q: %v", key, err)
	}
	if err := os.WriteFile(p, value, 0o644); err != nil {
		return fmt.Errorf("tracker: could not write %q: %v", key, err)
	}
	return nil
}

// List implements BlobStore.
func (f *FSBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tracker: could not list %q under %q: %v", prefix, f.root, err)
	}
	return keys, nil
}
