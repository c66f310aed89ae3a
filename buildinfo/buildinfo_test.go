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

package buildinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBrief(t *testing.T) {
	b := BuildInfo{CommitID: "abc123", BuildID: "build-42", BuilderImage: "gcr.io/x@sha256:deadbeef"}
	brief := b.Brief()
	if brief.CommitID != "abc123" || brief.BuildID != "build-42" {
		t.Errorf("Brief() = %+v, want {CommitID: abc123, BuildID: build-42}", brief)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	content := "commit_id = \"d11e3de97b8fc1cf49e4ed8001d14d77b98c24b8\"\nbuild_id = \"local-dev-1\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := LoadFromTOML(path)
	if err != nil {
		t.Fatalf("LoadFromTOML failed: %v", err)
	}
	if info.CommitID != "d11e3de97b8fc1cf49e4ed8001d14d77b98c24b8" || info.BuildID != "local-dev-1" {
		t.Errorf("LoadFromTOML = %+v, unexpected values", info)
	}
}

func TestLoadFromTOMLMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.toml")
	if err := os.WriteFile(path, []byte("commit_id = \"abc\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadFromTOML(path); err == nil {
		t.Errorf("LoadFromTOML with missing build_id succeeded, want error")
	}
}
