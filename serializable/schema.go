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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// schemaBySubclass holds one JSON schema per record variant, keyed by its
// _subclass discriminator. These are an ambient hardening step, not part of
// the wire contract itself: a record that fails Unmarshal never reaches
// here, so the schemas only guard against a structurally well-formed but
// semantically wrong record arriving from an untrusted source.
var schemaBySubclass = map[Subclass]string{
	SubclassUnknownProvenance: `{
		"type": "object",
		"required": ["outputClassName", "valueDigest"],
		"properties": {
			"outputClassName": {"type": "string", "minLength": 1},
			"valueDigest": {"type": "object", "required": ["id"]}
		}
	}`,
	SubclassWithInputs: `{
		"type": "object",
		"required": ["functionName", "functionVersion", "outputClassName", "inputList"],
		"properties": {
			"functionName": {"type": "string", "minLength": 1},
			"outputClassName": {"type": "string", "minLength": 1},
			"inputList": {"type": "array"}
		}
	}`,
	SubclassWithoutInputs: `{
		"type": "object",
		"required": ["functionName", "functionVersion", "outputClassName", "digestOfEquivalentWithInputs"],
		"properties": {
			"functionName": {"type": "string", "minLength": 1},
			"outputClassName": {"type": "string", "minLength": 1},
			"digestOfEquivalentWithInputs": {"type": "object", "required": ["id"]}
		}
	}`,
	SubclassResultKnown: `{
		"type": "object",
		"required": ["call", "inputGroupDigest", "outputDigest", "commitId", "buildId"],
		"properties": {
			"call": {"type": "object"},
			"inputGroupDigest": {"type": "object", "required": ["id"]},
			"outputDigest": {"type": "object", "required": ["id"]},
			"commitId": {"type": "string"},
			"buildId": {"type": "string"}
		}
	}`,
	SubclassResultUnknown: `{
		"type": "object",
		"required": ["call", "outputDigest", "commitId", "buildId"],
		"properties": {
			"call": {"type": "object"},
			"outputDigest": {"type": "object", "required": ["id"]},
			"commitId": {"type": "string"},
			"buildId": {"type": "string"}
		}
	}`,
}

// ValidateRecordSchema validates b, the Marshal'd bytes of a Record, against
// the JSON schema for its _subclass tag. It is an optional hardening step
// for a record arriving from an untrusted source (provctl inspect --strict
// is the only current caller); the save/load path in tracker never calls
// this, since Unmarshal already rejects a structurally malformed record.
func ValidateRecordSchema(b []byte) error {
	var tag struct {
		Subclass Subclass `json:"_subclass"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return fmt.Errorf("serializable: could not read %s for schema validation: %v", SubclassKey, err)
	}
	schema, ok := schemaBySubclass[tag.Subclass]
	if !ok {
		return fmt.Errorf("serializable: no schema registered for %s %q", SubclassKey, tag.Subclass)
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewStringLoader(string(b))
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("serializable: could not run schema validation for %s: %v", tag.Subclass, err)
	}
	if !result.Valid() {
		var buffer bytes.Buffer
		for _, resultErr := range result.Errors() {
			buffer.WriteString("- ")
			buffer.WriteString(resultErr.String())
			buffer.WriteString("\n")
		}
		return fmt.Errorf("serializable: record is not a valid %s:\n%s", tag.Subclass, buffer.String())
	}
	return nil
}
