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

// Package buildinfo holds the immutable build-context record attached to
// every result node: the source commit and build identity that produced it.
// Capturing that identity from source control is an external tool's job;
// this package only defines the record shape and, for local development, a
// convenience loader from a checked-in TOML file.
package buildinfo

import (
	"fmt"
	"time"

	toml "github.com/pelletier/go-toml"
)

// BuildInfo is the build context threaded into every result node produced
// by the resolution engine.
type BuildInfo struct {
	// CommitID is the source-control commit the build was produced from.
	CommitID string `json:"commitId" toml:"commit_id"`
	// BuildID identifies the specific build (e.g. a CI run id).
	BuildID string `json:"buildId" toml:"build_id"`
	// BuilderImage optionally identifies the environment the build ran in.
	BuilderImage string `json:"builderImage,omitempty" toml:"builder_image,omitempty"`
	// Timestamp is when the build completed, for operator-facing display;
	// it is not part of any content digest.
	Timestamp time.Time `json:"timestamp" toml:"-"`
}

// Brief is the two-field projection of a BuildInfo used wherever only the
// bare identity, not the full record, needs to travel (e.g. embedded in a
// FunctionCallResultWithKnownProvenanceSerializable).
type Brief struct {
	CommitID string `json:"commitId"`
	BuildID  string `json:"buildId"`
}

// Brief projects a BuildInfo down to its Brief form.
func (b BuildInfo) Brief() Brief {
	return Brief{CommitID: b.CommitID, BuildID: b.BuildID}
}

// LoadFromTOML reads a BuildInfo from a TOML file at path, in the shape
// `commit_id = "..."`, `build_id = "..."`. This is a local-development
// convenience standing in for the external build-info capture tool the
// core specification treats as out of scope: it lets a developer run the
// resolution engine locally against a checked-in build identity instead of
// wiring in CI environment variables.
func LoadFromTOML(path string) (*BuildInfo, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("buildinfo: could not load TOML file %q: %v", path, err)
	}
	var info BuildInfo
	if err := tree.Unmarshal(&info); err != nil {
		return nil, fmt.Errorf("buildinfo: could not unmarshal TOML file %q: %v", path, err)
	}
	if info.CommitID == "" || info.BuildID == "" {
		return nil, fmt.Errorf("buildinfo: %q must set both commit_id and build_id", path)
	}
	return &info, nil
}
