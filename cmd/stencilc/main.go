/*
 * stencilc - CLI entry point (section 6)
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	getopt "github.com/pborman/getopt/v2"

	"github.com/vmforge/stencilc/internal/buildcfg"
	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/manifest"
	"github.com/vmforge/stencilc/internal/obslog"
	"github.com/vmforge/stencilc/internal/pipeline"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "stencilc.yaml", "Build configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()
	args := getopt.Args()

	if *optHelp || len(args) == 0 {
		getopt.Usage()
		os.Exit(0)
	}

	var logOut *os.File
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err == nil {
			logOut = f
		}
	}
	Logger = slog.New(obslog.New(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(Logger)

	cfg, err := buildcfg.Load(*optConfig)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	d := pipeline.Driver{Config: cfg, Log: Logger}

	sub := args[0]
	rest := args[1:]
	var cmdErr error
	switch sub {
	case "process-bytecode-def":
		cmdErr = processBytecodeDef(d, rest)
	case "generate-builder-api":
		cmdErr = generateBuilderAPI(d, rest)
	case "extract-stencil":
		cmdErr = extractStencil(d, rest)
	default:
		cmdErr = fmt.Errorf("stencilc: unrecognized subcommand %q", sub)
	}
	if cmdErr != nil {
		Logger.Error(cmdErr.Error())
		os.Exit(1)
	}
}

// processBytecodeDef implements `process-bytecode-def <in.ir> <hdr.out> <json.out>`.
func processBytecodeDef(d pipeline.Driver, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("stencilc: process-bytecode-def requires <in.ir> <hdr.out> <json.out>")
	}
	in, hdrOut, jsonOut := args[0], args[1], args[2]

	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	defer f.Close()

	processed, err := d.ProcessBytecodeDef(f)
	if err != nil {
		return err
	}
	if err := pipeline.WriteTransactional(hdrOut, func(w io.Writer) error {
		return d.WriteHeader(w, processed)
	}); err != nil {
		return err
	}
	return pipeline.WriteTransactional(jsonOut, func(w io.Writer) error {
		return d.WriteJSON(w, processed)
	})
}

// generateBuilderAPI implements `generate-builder-api <inputs.csv> <hdr.out> <cpp.out> <cpp2.out>`.
// inputs.csv is itself one manifest-format file naming every opcode to
// aggregate, per section 6: "aggregate multiple processed units into the
// final dispatch-table artifacts."
func generateBuilderAPI(d pipeline.Driver, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("stencilc: generate-builder-api requires <inputs.csv> <hdr.out> <cpp.out> <cpp2.out>")
	}
	inputs, hdrOut, tableOut, tableOut2 := args[0], args[1], args[2], args[3]

	f, err := os.Open(inputs)
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	defer f.Close()

	records, err := manifest.Parse(f)
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}

	return withThreeOutputs(hdrOut, tableOut, tableOut2, func(hdr, table, table2 io.Writer) error {
		return d.GenerateBuilderAPI(records, hdr, table, table2, "gStencilOpDispatchTable")
	})
}

// extractStencil implements the JIT stencil subcommand: `extract-stencil
// <obj.o> <variant-name> <stencil.json> <audit.txt>` (section 6's
// additional subcommands for the JIT stencil stages).
func extractStencil(d pipeline.Driver, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("stencilc: extract-stencil requires <obj.o> <variant-name> <stencil.json> <audit.txt>")
	}
	objPath, variantName, stencilOut, auditOut := args[0], args[1], args[2], args[3]

	pool := constpool.New()
	job, err := d.RunStencilExtraction(objPath, variantName, pool)
	if err != nil {
		return err
	}
	if err := pipeline.WriteTransactional(stencilOut, func(w io.Writer) error {
		return d.WriteStencilArtifact(w, job, pool)
	}); err != nil {
		return err
	}
	return pipeline.WriteTransactional(auditOut, func(w io.Writer) error {
		return d.WriteAuditDump(w, job)
	})
}

// withThreeOutputs creates three scratch files in each output's own target
// directory (not the system temp directory, which may sit on a different
// filesystem and make the final os.Rename fail with EXDEV), invokes write
// with all three, syncs and closes each, and renames all three into place
// only if write succeeds for every one of them: section 7's transactional
// output convention extended to a subcommand with more than one output
// artifact, following pipeline.WriteTransactional's same-directory scratch
// file convention.
func withThreeOutputs(hdrPath, tablePath, table2Path string, write func(hdr, table, table2 io.Writer) error) (err error) {
	hdrFile, err := os.CreateTemp(filepath.Dir(hdrPath), ".stencilc-scratch-*")
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(hdrFile.Name())
		}
	}()
	tableFile, err := os.CreateTemp(filepath.Dir(tablePath), ".stencilc-scratch-*")
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tableFile.Name())
		}
	}()
	table2File, err := os.CreateTemp(filepath.Dir(table2Path), ".stencilc-scratch-*")
	if err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(table2File.Name())
		}
	}()

	if err = write(hdrFile, tableFile, table2File); err != nil {
		hdrFile.Close()
		tableFile.Close()
		table2File.Close()
		return fmt.Errorf("stencilc: %w", err)
	}
	for _, f := range []*os.File{hdrFile, tableFile, table2File} {
		if err = f.Sync(); err != nil {
			hdrFile.Close()
			tableFile.Close()
			table2File.Close()
			return fmt.Errorf("stencilc: syncing scratch file: %w", err)
		}
	}
	if err = hdrFile.Close(); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	if err = tableFile.Close(); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	if err = table2File.Close(); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}

	if err = os.Rename(hdrFile.Name(), hdrPath); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	if err = os.Rename(tableFile.Name(), tablePath); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	if err = os.Rename(table2File.Name(), table2Path); err != nil {
		return fmt.Errorf("stencilc: %w", err)
	}
	return nil
}
