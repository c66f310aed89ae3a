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

// Package main contains a command-line tool for inspecting and maintaining
// a local provenance tracker root: printing a saved call or result record,
// garbage-collecting old build blobs, and checking saved output values
// against their digests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lineagegraph/provgraph/digest"
	"github.com/lineagegraph/provgraph/serializable"
	"github.com/lineagegraph/provgraph/tracker"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: provctl <inspect|gc|verify-codec> ...")
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = runInspect(os.Args[2:])
	case "gc":
		err = runGC(os.Args[2:])
	case "verify-codec":
		err = runVerifyCodec(os.Args[2:])
	default:
		log.Fatalf("unknown subcommand %q; usage: provctl <inspect|gc|verify-codec> ...", os.Args[1])
	}
	if err != nil {
		log.Fatalf("provctl %s: %v", os.Args[1], err)
	}
}

// runInspect loads the single record saved under a digest and prints its
// serializable form; records it refers to by digest are not followed. It
// first tries the digest as a result record, then as a call record, since a
// caller may not know which kind produced it.
func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	root := fs.String("root", "", "Required - Path to the tracker root directory.")
	digestStr := fs.String("digest", "", "Required - Hex digest of the call or result record to inspect.")
	strict := fs.Bool("strict", false, "Optional - Validate the loaded record against its schema before printing.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *root == "" || *digestStr == "" {
		return fmt.Errorf("-root and -digest are required")
	}

	store, err := tracker.NewFSBlobStore(*root)
	if err != nil {
		return err
	}
	tr := tracker.New(store)

	d, err := digest.Parse(*digestStr)
	if err != nil {
		return fmt.Errorf("invalid -digest: %v", err)
	}

	ctx := context.Background()
	if rec, ok, err := tr.LoadResultByDigest(ctx, d); err != nil {
		return err
	} else if ok {
		return printRecord(rec, *strict)
	}
	if rec, ok, err := tr.LoadCallByDigest(ctx, d); err != nil {
		return err
	} else if ok {
		return printRecord(rec, *strict)
	}
	return fmt.Errorf("no call or result record found for digest %s under %s", d, *root)
}

func printRecord(rec serializable.Record, strict bool) error {
	raw, err := serializable.Marshal(rec)
	if err != nil {
		return err
	}
	if strict {
		if err := serializable.ValidateRecordSchema(raw); err != nil {
			return fmt.Errorf("record failed schema validation: %v", err)
		}
	}
	fmt.Println(string(raw))
	return nil
}

// runGC removes build-info blobs from an FS tracker root beyond the most
// recent keepBuilds: a thin flag-driven wrapper around a library call.
func runGC(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	root := fs.String("root", "", "Required - Path to the tracker root directory.")
	keepBuilds := fs.Int("keep_builds", 10, "Optional - Number of most recent build blobs to retain.")
	dryRun := fs.Bool("dry_run", false, "Optional - List blobs that would be removed without removing them.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *root == "" {
		return fmt.Errorf("-root is required")
	}

	removed, err := tracker.GCBuilds(context.Background(), *root, *keepBuilds, *dryRun)
	if err != nil {
		return err
	}
	verb := "removed"
	if *dryRun {
		verb = "would remove"
	}
	for _, key := range removed {
		log.Printf("%s %s", verb, key)
	}
	log.Printf("%s %d build blob(s)", verb, len(removed))
	return nil
}

// runVerifyCodec re-digests every saved output value blob in a tracker root
// and reports those whose content does not match the digest in their key. No
// codec round trip (deserialize and re-serialize) is performed.
func runVerifyCodec(args []string) error {
	fs := flag.NewFlagSet("verify-codec", flag.ExitOnError)
	root := fs.String("root", "", "Required - Path to the tracker root directory.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *root == "" {
		return fmt.Errorf("-root is required")
	}

	bad, err := tracker.VerifyOutputDigests(context.Background(), *root)
	if err != nil {
		return err
	}
	if len(bad) == 0 {
		log.Printf("all output values under %s are consistent with their digests", *root)
		return nil
	}
	for _, key := range bad {
		log.Printf("inconsistent digest: %s", key)
	}
	return fmt.Errorf("%d output value(s) failed the digest consistency check", len(bad))
}
