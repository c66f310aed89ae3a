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

package serializable

import (
	"testing"

	"github.com/lineagegraph/provgraph/digest"
)

func TestValidateRecordSchemaAcceptsWellFormedRecord(t *testing.T) {
	r := CallWithUnknownProvenance{OutputClassName: "provgraph.int64", ValueDigest: digest.New([]byte("5"))}
	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := ValidateRecordSchema(b); err != nil {
		t.Errorf("ValidateRecordSchema rejected a well-formed record: %v", err)
	}
}

func TestValidateRecordSchemaRejectsMissingField(t *testing.T) {
	b := []byte(`{"_subclass":"FunctionCallWithUnknownProvenanceSerializable","valueDigest":{"id":"` + digest.New([]byte("x")).String() + `"}}`)
	if err := ValidateRecordSchema(b); err == nil {
		t.Errorf("ValidateRecordSchema accepted a record missing outputClassName")
	}
}

func TestValidateRecordSchemaRejectsUnknownSubclass(t *testing.T) {
	b := []byte(`{"_subclass":"SomethingElse"}`)
	if err := ValidateRecordSchema(b); err == nil {
		t.Errorf("ValidateRecordSchema accepted an unregistered subclass")
	}
}
