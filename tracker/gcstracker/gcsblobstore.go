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

// Package gcstracker adapts Google Cloud Storage into a tracker.BlobStore,
// so a Tracker can persist the blob, call, result, and memo-index trees in a
// bucket instead of a local directory. One bucket is shared across all key
// prefixes; objects are addressed by the same digest-derived keys the other
// BlobStore implementations use.
package gcstracker

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/lineagegraph/provgraph/tracker"
)

// BlobStore is a tracker.BlobStore backed by a single Google Cloud Storage
// bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a BlobStore over bucket using client, typically obtained from
// storage.NewClient. The caller retains ownership of client and is
// responsible for closing it.
func New(client *storage.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// NewWithDefaultClient creates a BlobStore backed by bucket, opening a new
// Google Cloud Storage client with ambient credentials for the lifetime of
// ctx. The returned close func must be called to release the client.
func NewWithDefaultClient(ctx context.Context, bucket string) (*BlobStore, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("gcstracker: could not create a new Google Cloud Storage client: %v", err)
	}
	return New(client, bucket), client.Close, nil
}

// Get implements tracker.BlobStore.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, fmt.Errorf("gcstracker: key %q: %w", key, tracker.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("gcstracker: could not create a new reader for %q: %v", key, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcstracker: could not read data for %q: %v", key, err)
	}
	return data, nil
}

// Put implements tracker.BlobStore.
func (b *BlobStore) Put(ctx context.Context, key string, value []byte) error {
	writer := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if _, err := writer.Write(value); err != nil {
		_ = writer.Close()
		return fmt.Errorf("gcstracker: could not write %q: %v", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gcstracker: could not finalize write of %q: %v", key, err)
	}
	return nil
}

// List implements tracker.BlobStore.
func (b *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	objects := b.client.Bucket(b.bucket).Objects(ctx, query)
	var keys []string
	for {
		attrs, err := objects.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcstracker: could not list objects under %q: %v", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
