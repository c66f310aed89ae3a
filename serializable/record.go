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

// Package serializable is the parallel "mirror" tree described by the
// specification: JSON-shaped records that capture the provenance graph as
// storable records referencing blobs only by digest. Every record carries a
// "_subclass" discriminator, the same shape used for a claim's ClaimType or
// an in-toto statement's predicateType in the project this module learned
// its conventions from.
package serializable

import (
	"encoding/json"
	"fmt"

	"github.com/lineagegraph/provgraph/buildinfo"
	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/errs"
)

// SubclassKey is the JSON field carrying the discriminator.
const SubclassKey = "_subclass"

// Subclass names one of the five serializable record variants.
type Subclass string

const (
	SubclassUnknownProvenance  Subclass = "FunctionCallWithUnknownProvenanceSerializable"
	SubclassWithInputs         Subclass = "FunctionCallWithKnownProvenanceSerializableWithInputs"
	SubclassWithoutInputs      Subclass = "FunctionCallWithKnownProvenanceSerializableWithoutInputs"
	SubclassResultKnown        Subclass = "FunctionCallResultWithKnownProvenanceSerializable"
	SubclassResultUnknown      Subclass = "FunctionCallResultWithUnknownProvenanceSerializable"
)

// Record is the tagged-union interface every serializable mirror type
// implements. It is the wire-level analogue of provenance.AnyValue.
type Record interface {
	Subclass() Subclass
}

// CallWithUnknownProvenance mirrors an UnknownProvenance leaf: just the
// output type and the digest of its (already-digested) value.
type CallWithUnknownProvenance struct {
	OutputClassName string       `json:"outputClassName"`
	ValueDigest     digest.Digest `json:"valueDigest"`
}

// Subclass implements Record.
func (CallWithUnknownProvenance) Subclass() Subclass { return SubclassUnknownProvenance }

// CallWithInputs is the "fat" form of a function call record: it carries the
// full ordered input list. It is the top-level record written for any call
// that gets saved, and the form every call's own digest is computed over.
type CallWithInputs struct {
	FunctionName    string   `json:"functionName"`
	FunctionVersion Record   `json:"functionVersion"`
	OutputClassName string   `json:"outputClassName"`
	InputList       []Record `json:"inputList"`
}

// Subclass implements Record.
func (CallWithInputs) Subclass() Subclass { return SubclassWithInputs }

// CallWithoutInputs ("unexpanded") is the stub embedded wherever one call's
// definition appears as another call's input: only the digest of the
// corresponding CallWithInputs record is carried, keeping the embedding
// record small.
type CallWithoutInputs struct {
	FunctionName                 string       `json:"functionName"`
	FunctionVersion               Record       `json:"functionVersion"`
	OutputClassName               string       `json:"outputClassName"`
	DigestOfEquivalentWithInputs digest.Digest `json:"digestOfEquivalentWithInputs"`
}

// Subclass implements Record.
func (CallWithoutInputs) Subclass() Subclass { return SubclassWithoutInputs }

// ResultWithKnownProvenance is the saved form of a result whose call has a
// known function identity. The build identity is carried as an embedded
// buildinfo.Brief, the two-field (CommitID, BuildID) projection of a full
// BuildInfo, so that only the bare identity - never a cosmetic field like
// Timestamp - ever reaches a digested record.
type ResultWithKnownProvenance struct {
	Call             CallWithoutInputs `json:"call"`
	InputGroupDigest digest.Digest     `json:"inputGroupDigest"`
	OutputDigest     digest.Digest     `json:"outputDigest"`
	buildinfo.Brief
}

// Subclass implements Record.
func (ResultWithKnownProvenance) Subclass() Subclass { return SubclassResultKnown }

// ResultWithUnknownProvenance is the saved form of a result whose call is an
// UnknownProvenance leaf; its InputGroupDigest is always the digest of the
// empty digest list.
type ResultWithUnknownProvenance struct {
	Call         CallWithUnknownProvenance `json:"call"`
	OutputDigest digest.Digest             `json:"outputDigest"`
	buildinfo.Brief
}

// Subclass implements Record.
func (ResultWithUnknownProvenance) Subclass() Subclass { return SubclassResultUnknown }

// Marshal encodes a Record to JSON, adding the SubclassKey discriminator.
// Every Record-typed field - not just the top-level record - must carry its
// own discriminator, since Unmarshal recurses into FunctionVersion/InputList/
// Call fields and re-reads _subclass at each level; Marshal therefore
// recurses into those fields first, via Marshal itself, before assembling
// the enclosing record's own tagged form.
func Marshal(r Record) ([]byte, error) {
	switch v := r.(type) {
	case CallWithUnknownProvenance:
		return marshalTagged(SubclassUnknownProvenance, v)

	case CallWithInputs:
		versionRaw, err := Marshal(v.FunctionVersion)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not marshal functionVersion of %s: %v", SubclassWithInputs, err)
		}
		inputsRaw := make([]json.RawMessage, len(v.InputList))
		for i, in := range v.InputList {
			raw, err := Marshal(in)
			if err != nil {
				return nil, fmt.Errorf("serializable: could not marshal inputList[%d] of %s: %v", i, SubclassWithInputs, err)
			}
			inputsRaw[i] = raw
		}
		return marshalTagged(SubclassWithInputs, struct {
			FunctionName    string            `json:"functionName"`
			FunctionVersion json.RawMessage   `json:"functionVersion"`
			OutputClassName string            `json:"outputClassName"`
			InputList       []json.RawMessage `json:"inputList"`
		}{v.FunctionName, versionRaw, v.OutputClassName, inputsRaw})

	case CallWithoutInputs:
		versionRaw, err := Marshal(v.FunctionVersion)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not marshal functionVersion of %s: %v", SubclassWithoutInputs, err)
		}
		return marshalTagged(SubclassWithoutInputs, struct {
			FunctionName                 string          `json:"functionName"`
			FunctionVersion              json.RawMessage `json:"functionVersion"`
			OutputClassName              string          `json:"outputClassName"`
			DigestOfEquivalentWithInputs digest.Digest   `json:"digestOfEquivalentWithInputs"`
		}{v.FunctionName, versionRaw, v.OutputClassName, v.DigestOfEquivalentWithInputs})

	case ResultWithKnownProvenance:
		callRaw, err := Marshal(v.Call)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not marshal call of %s: %v", SubclassResultKnown, err)
		}
		return marshalTagged(SubclassResultKnown, struct {
			Call             json.RawMessage `json:"call"`
			InputGroupDigest digest.Digest   `json:"inputGroupDigest"`
			OutputDigest     digest.Digest   `json:"outputDigest"`
			buildinfo.Brief
		}{callRaw, v.InputGroupDigest, v.OutputDigest, v.Brief})

	case ResultWithUnknownProvenance:
		callRaw, err := Marshal(v.Call)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not marshal call of %s: %v", SubclassResultUnknown, err)
		}
		return marshalTagged(SubclassResultUnknown, struct {
			Call         json.RawMessage `json:"call"`
			OutputDigest digest.Digest   `json:"outputDigest"`
			buildinfo.Brief
		}{callRaw, v.OutputDigest, v.Brief})

	default:
		return nil, fmt.Errorf("serializable: cannot marshal unrecognized record type %T: %w", r, errs.ErrUnexpectedVariant)
	}
}

// marshalTagged marshals v and injects the SubclassKey discriminator into
// the resulting JSON object, the shared last step of every Marshal case
// above.
func marshalTagged(tag Subclass, v any) ([]byte, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializable: could not marshal %s: %v: %w", tag, err, errs.ErrCodecFailure)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, fmt.Errorf("serializable: could not decompose %s into fields: %v: %w", tag, err, errs.ErrCodecFailure)
	}
	tagBytes, err := json.Marshal(tag)
	if err != nil {
		return nil, fmt.Errorf("serializable: could not marshal subclass tag: %v: %w", err, errs.ErrCodecFailure)
	}
	fields[SubclassKey] = tagBytes
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("serializable: could not re-marshal %s with subclass tag: %v: %w", tag, err, errs.ErrCodecFailure)
	}
	return out, nil
}

// Unmarshal decodes JSON bytes produced by Marshal back into the concrete
// Record variant named by the SubclassKey, recursing into any nested Record
// fields (FunctionVersion, InputList, Call).
func Unmarshal(b []byte) (Record, error) {
	var tag struct {
		Subclass Subclass `json:"_subclass"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("serializable: could not read subclass tag: %v: %w", err, errs.ErrCodecFailure)
	}

	switch tag.Subclass {
	case SubclassUnknownProvenance:
		var r CallWithUnknownProvenance
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal %s: %v: %w", tag.Subclass, err, errs.ErrCodecFailure)
		}
		return r, nil

	case SubclassWithInputs:
		var raw struct {
			FunctionName    string            `json:"functionName"`
			FunctionVersion json.RawMessage   `json:"functionVersion"`
			OutputClassName string            `json:"outputClassName"`
			InputList       []json.RawMessage `json:"inputList"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal %s: %v: %w", tag.Subclass, err, errs.ErrCodecFailure)
		}
		version, err := Unmarshal(raw.FunctionVersion)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal functionVersion of %s: %v", tag.Subclass, err)
		}
		inputs := make([]Record, len(raw.InputList))
		for i, rawInput := range raw.InputList {
			input, err := Unmarshal(rawInput)
			if err != nil {
				return nil, fmt.Errorf("serializable: could not unmarshal inputList[%d] of %s: %v", i, tag.Subclass, err)
			}
			inputs[i] = input
		}
		return CallWithInputs{
			FunctionName:    raw.FunctionName,
			FunctionVersion: version,
			OutputClassName: raw.OutputClassName,
			InputList:       inputs,
		}, nil

	case SubclassWithoutInputs:
		var raw struct {
			FunctionName                 string          `json:"functionName"`
			FunctionVersion               json.RawMessage `json:"functionVersion"`
			OutputClassName               string          `json:"outputClassName"`
			DigestOfEquivalentWithInputs digest.Digest   `json:"digestOfEquivalentWithInputs"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal %s: %v: %w", tag.Subclass, err, errs.ErrCodecFailure)
		}
		version, err := Unmarshal(raw.FunctionVersion)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal functionVersion of %s: %v", tag.Subclass, err)
		}
		return CallWithoutInputs{
			FunctionName:                 raw.FunctionName,
			FunctionVersion:               version,
			OutputClassName:               raw.OutputClassName,
			DigestOfEquivalentWithInputs: raw.DigestOfEquivalentWithInputs,
		}, nil

	case SubclassResultKnown:
		var raw struct {
			Call             json.RawMessage `json:"call"`
			InputGroupDigest digest.Digest   `json:"inputGroupDigest"`
			OutputDigest     digest.Digest   `json:"outputDigest"`
			CommitID         string          `json:"commitId"`
			BuildID          string          `json:"buildId"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal %s: %v: %w", tag.Subclass, err, errs.ErrCodecFailure)
		}
		call, err := Unmarshal(raw.Call)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal call of %s: %v", tag.Subclass, err)
		}
		callWithoutInputs, ok := call.(CallWithoutInputs)
		if !ok {
			return nil, fmt.Errorf("serializable: %s.call was %s, want %s: %w", tag.Subclass, call.Subclass(), SubclassWithoutInputs, errs.ErrUnexpectedVariant)
		}
		return ResultWithKnownProvenance{
			Call:             callWithoutInputs,
			InputGroupDigest: raw.InputGroupDigest,
			OutputDigest:     raw.OutputDigest,
			Brief:            buildinfo.Brief{CommitID: raw.CommitID, BuildID: raw.BuildID},
		}, nil

	case SubclassResultUnknown:
		var raw struct {
			Call         json.RawMessage `json:"call"`
			OutputDigest digest.Digest   `json:"outputDigest"`
			CommitID     string          `json:"commitId"`
			BuildID      string          `json:"buildId"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal %s: %v: %w", tag.Subclass, err, errs.ErrCodecFailure)
		}
		call, err := Unmarshal(raw.Call)
		if err != nil {
			return nil, fmt.Errorf("serializable: could not unmarshal call of %s: %v", tag.Subclass, err)
		}
		callUnknown, ok := call.(CallWithUnknownProvenance)
		if !ok {
			return nil, fmt.Errorf("serializable: %s.call was %s, want %s: %w", tag.Subclass, call.Subclass(), SubclassUnknownProvenance, errs.ErrUnexpectedVariant)
		}
		return ResultWithUnknownProvenance{
			Call:         callUnknown,
			OutputDigest: raw.OutputDigest,
			Brief:        buildinfo.Brief{CommitID: raw.CommitID, BuildID: raw.BuildID},
		}, nil

	default:
		return nil, fmt.Errorf("serializable: unrecognized %s %q: %w", SubclassKey, tag.Subclass, errs.ErrUnexpectedVariant)
	}
}

// Digest computes the content digest of r's canonical Marshal form. A call's
// own identity digest is always computed over its CallWithInputs form.
func Digest(r Record) (digest.Digest, error) {
	raw, err := Marshal(r)
	if err != nil {
		return digest.Digest{}, err
	}
	canonical, err := digest.CanonicalizeBytes(raw)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("serializable: could not canonicalize %s: %v", r.Subclass(), err)
	}
	return digest.New(canonical), nil
}

// InputGroupDigest computes the digest of the ordered list of input result
// digests, the memoization key component that, together with the function
// name and version, identifies a prior result.
func InputGroupDigest(inputOutputDigests []digest.Digest) (digest.Digest, error) {
	return digest.OfDigests(inputOutputDigests)
}
