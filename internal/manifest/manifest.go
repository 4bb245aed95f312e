/*
 * stencilc - input artifact manifest reader/writer (section 6)
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

// Package manifest reads and writes the input artifact format section 6
// describes: a self-describing text container naming opcodes, their
// operand and variant declarations, metadata-field declarations, and one
// opaque base64-encoded field carrying the serialized semantic IR module.
//
// The reader is a hand-rolled, line-oriented scanner: a line buffer, a line
// counter for diagnostics, and a keyword dispatch on each line's first
// field.
package manifest

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OperandDecl is one opcode operand's declared shape.
type OperandDecl struct {
	Kind   string // Slot, Constant, Literal, BytecodeRangeBase, Callee
	Name   string
	Width  int
	Signed bool
}

// VariantDecl is one declared variant of an opcode.
type VariantDecl struct {
	Name string
	Hot  bool
}

// MetaFieldDecl is one metadata-field descriptor (section 6's
// metadata-slot layout contract).
type MetaFieldDecl struct {
	Kind      string
	Size      int
	Log2Align int
	Count     int
}

// OpcodeRecord is everything the manifest declares about one opcode.
type OpcodeRecord struct {
	Name       string
	Operands   []OperandDecl
	Variants   []VariantDecl
	MetaFields []MetaFieldDecl
	IRModule   []byte
}

// lineNumber is reset at the start of each Parse call and used only to
// annotate error messages; it is not part of any exported state.
var lineNumber int

// Parse reads a full manifest from r: zero or more OPCODE blocks, each
// terminated by an END line.
func Parse(r io.Reader) ([]OpcodeRecord, error) {
	lineNumber = 0
	reader := bufio.NewReader(r)

	var records []OpcodeRecord
	var cur *OpcodeRecord

	for {
		line, err := reader.ReadString('\n')
		lineNumber++
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			if err != nil && errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "OPCODE":
			if cur != nil {
				return nil, fmt.Errorf("manifest: line %d: nested OPCODE without a preceding END", lineNumber)
			}
			if len(fields) != 2 {
				return nil, fmt.Errorf("manifest: line %d: OPCODE requires exactly one name", lineNumber)
			}
			cur = &OpcodeRecord{Name: fields[1]}

		case "OPERAND":
			if cur == nil {
				return nil, fmt.Errorf("manifest: line %d: OPERAND outside an OPCODE block", lineNumber)
			}
			if len(fields) < 4 || len(fields) > 5 {
				return nil, fmt.Errorf("manifest: line %d: OPERAND requires kind, name, width, and an optional signed marker", lineNumber)
			}
			width, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("manifest: line %d: bad operand width %q: %w", lineNumber, fields[3], err)
			}
			signed := len(fields) == 5 && strings.EqualFold(fields[4], "signed")
			cur.Operands = append(cur.Operands, OperandDecl{Kind: fields[1], Name: fields[2], Width: width, Signed: signed})

		case "VARIANT":
			if cur == nil {
				return nil, fmt.Errorf("manifest: line %d: VARIANT outside an OPCODE block", lineNumber)
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("manifest: line %d: VARIANT requires a name", lineNumber)
			}
			hot := len(fields) >= 3 && strings.EqualFold(fields[2], "hot")
			cur.Variants = append(cur.Variants, VariantDecl{Name: fields[1], Hot: hot})

		case "METAFIELD":
			if cur == nil {
				return nil, fmt.Errorf("manifest: line %d: METAFIELD outside an OPCODE block", lineNumber)
			}
			if len(fields) != 5 {
				return nil, fmt.Errorf("manifest: line %d: METAFIELD requires kind, size, log2align, count", lineNumber)
			}
			size, err1 := strconv.Atoi(fields[2])
			align, err2 := strconv.Atoi(fields[3])
			count, err3 := strconv.Atoi(fields[4])
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("manifest: line %d: malformed METAFIELD numeric fields", lineNumber)
			}
			cur.MetaFields = append(cur.MetaFields, MetaFieldDecl{Kind: fields[1], Size: size, Log2Align: align, Count: count})

		case "IR":
			if cur == nil {
				return nil, fmt.Errorf("manifest: line %d: IR outside an OPCODE block", lineNumber)
			}
			if len(fields) != 2 {
				return nil, fmt.Errorf("manifest: line %d: IR requires exactly one base64 payload", lineNumber)
			}
			decoded, err := base64.StdEncoding.DecodeString(fields[1])
			if err != nil {
				return nil, fmt.Errorf("manifest: line %d: malformed base64 IR payload: %w", lineNumber, err)
			}
			cur.IRModule = decoded

		case "END":
			if cur == nil {
				return nil, fmt.Errorf("manifest: line %d: END without a preceding OPCODE", lineNumber)
			}
			records = append(records, *cur)
			cur = nil

		default:
			return nil, fmt.Errorf("manifest: line %d: unrecognized keyword %q", lineNumber, fields[0])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}

	if cur != nil {
		return nil, fmt.Errorf("manifest: unterminated OPCODE block %q at end of input", cur.Name)
	}
	return records, nil
}

// Write serializes records back to the manifest text format, in the same
// order they are given (opcode declaration order, section 5's ordering
// guarantee).
func Write(w io.Writer, records []OpcodeRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		fmt.Fprintf(bw, "OPCODE %s\n", rec.Name)
		for _, o := range rec.Operands {
			if o.Signed {
				fmt.Fprintf(bw, "OPERAND %s %s %d signed\n", o.Kind, o.Name, o.Width)
			} else {
				fmt.Fprintf(bw, "OPERAND %s %s %d\n", o.Kind, o.Name, o.Width)
			}
		}
		for _, v := range rec.Variants {
			if v.Hot {
				fmt.Fprintf(bw, "VARIANT %s hot\n", v.Name)
			} else {
				fmt.Fprintf(bw, "VARIANT %s\n", v.Name)
			}
		}
		for _, m := range rec.MetaFields {
			fmt.Fprintf(bw, "METAFIELD %s %d %d %d\n", m.Kind, m.Size, m.Log2Align, m.Count)
		}
		fmt.Fprintf(bw, "IR %s\n", base64.StdEncoding.EncodeToString(rec.IRModule))
		fmt.Fprintf(bw, "END\n")
	}
	return bw.Flush()
}
