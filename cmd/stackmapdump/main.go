// Copyright The stackmap Authors
// SPDX-License-Identifier: Apache-2.0

// stackmapdump loads a serialized safepoint metadata table and prints its
// contents: header configuration, the location catalog and one line per
// stack map with live register locations. Tables may be stored raw or zstd
// compressed (.zst).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/peterbourgon/ff/v3"

	"github.com/dexmeta/stackmap/codeinfo"
	"github.com/dexmeta/stackmap/internal/log"
)

type exitCode int

const (
	exitSuccess    exitCode = 0
	exitFailure    exitCode = 1
	exitParseError exitCode = 2
)

type arguments struct {
	input      string
	codeOffset uint
	registers  uint
	noMaps     bool
	verbose    bool
}

func parseArgs() (*arguments, error) {
	var args arguments
	fs := flag.NewFlagSet("stackmapdump", flag.ContinueOnError)
	fs.StringVar(&args.input, "input", "", "Table file to dump (.zst for compressed).")
	fs.UintVar(&args.codeOffset, "code-offset", 0,
		"Load address of the compiled code, added to native pc offsets.")
	fs.UintVar(&args.registers, "registers", 0,
		"Number of source registers of the method.")
	fs.BoolVar(&args.noMaps, "no-stack-maps", false,
		"Dump only the header and the location catalog.")
	fs.BoolVar(&args.verbose, "v", false, "Enable debug logging.")
	return &args, ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("STACKMAPDUMP"))
}

func readTable(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed table: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

func mainWithExitCode() exitCode {
	args, err := parseArgs()
	if err != nil {
		log.Errorf("Failed to parse arguments: %v", err)
		return exitParseError
	}
	if args.verbose {
		log.SetDebugLogger()
	}
	if args.input == "" {
		log.Errorf("No input file given, use -input")
		return exitParseError
	}

	data, err := readTable(args.input)
	if err != nil {
		log.Errorf("Failed to read %s: %v", args.input, err)
		return exitFailure
	}

	info := codeinfo.NewCodeInfo(data)
	if sz := info.OverallSize(); uint32(len(data)) < sz {
		log.Errorf("Table header wants %d bytes, file has %d", sz, len(data))
		return exitFailure
	}
	log.Debugf("dumping %s: %d bytes, %d stack maps", args.input,
		info.OverallSize(), info.NumberOfStackMaps())

	info.Dump(os.Stdout, uint32(args.codeOffset), uint16(args.registers),
		!args.noMaps)
	return exitSuccess
}

func main() {
	os.Exit(int(mainWithExitCode()))
}
