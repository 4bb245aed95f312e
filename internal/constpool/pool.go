/*
 * stencilc - process-wide shared constant pool (section 5, section 9)
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

// Package constpool implements the process-wide shared constant pool
// described in section 5 and section 9's "Process-wide constant pool"
// design note: an explicitly constructed object, owned by the top-level
// pipeline driver and threaded through stages, never ambient global state.
// Content-addressed deduplication uses SHA-256 of the raw bytes (section 5:
// "SHA-of-bytes or equivalent"); insertion is idempotent. The only mutator
// is the Stencil Extractor (Component E); the Codegen Emitter (Component G)
// only ever reads an immutable snapshot once extraction is complete.
package constpool

import (
	"crypto/sha256"
	"fmt"
	"sync"
)

// Handle is a process-unique identifier for one interned constant.
type Handle int

// Ref is a pointer+addend reference from one constant to another, forming
// the (possibly cyclic, in principle only ever self-looping in practice)
// shared-constant graph of section 9.
type Ref struct {
	Target Handle
	Addend int64
}

// Entry is one node of the shared-constant graph.
type Entry struct {
	Label          string
	Bytes          []byte
	Alignment      int
	Refs           []Ref
	ForwardDeclare bool // true if any entry, itself included, references this one by pointer
}

// Pool is the process-wide, content-addressed shared constant arena.
type Pool struct {
	mu      sync.Mutex
	byHash  map[[32]byte]Handle
	entries []Entry
}

// New builds an empty pool.
func New() *Pool {
	return &Pool{byHash: make(map[[32]byte]Handle)}
}

// Intern inserts bytes at the given alignment and returns its handle.
// Insertion is idempotent: interning identical bytes twice returns the same
// handle without creating a duplicate entry.
func (p *Pool) Intern(bytes []byte, alignment int) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	sum := sha256.Sum256(bytes)
	if h, ok := p.byHash[sum]; ok {
		return h
	}
	h := Handle(len(p.entries))
	p.entries = append(p.entries, Entry{
		Label:     fmt.Sprintf("deegen_jit_stencil_shared_constant_data_object_%d", h),
		Bytes:     append([]byte(nil), bytes...),
		Alignment: alignment,
	})
	p.byHash[sum] = h
	return h
}

// AddPointerRef records that the entry at `from` references the entry at
// `to` by pointer plus addend. The referenced entry is marked
// forward-declare, per section 9: "emit forward declarations for every node
// referenced by pointer."
func (p *Pool) AddPointerRef(from, to Handle, addend int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(from) >= len(p.entries) || int(to) >= len(p.entries) {
		return fmt.Errorf("constpool: handle out of range (from=%d to=%d, size=%d)", from, to, len(p.entries))
	}
	p.entries[from].Refs = append(p.entries[from].Refs, Ref{Target: to, Addend: addend})
	p.entries[to].ForwardDeclare = true
	return nil
}

// Entry returns a copy of the entry for h.
func (p *Pool) Entry(h Handle) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(h) < 0 || int(h) >= len(p.entries) {
		return Entry{}, fmt.Errorf("constpool: handle %d out of range", h)
	}
	e := p.entries[h]
	e.Bytes = append([]byte(nil), e.Bytes...)
	e.Refs = append([]Ref(nil), e.Refs...)
	return e, nil
}

// Snapshot returns every entry in insertion (handle) order: a deterministic,
// immutable view a reader (the Codegen Emitter) can range over without
// holding the pool's lock, per section 5's reader/writer contract.
func (p *Pool) Snapshot() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	for i := range out {
		out[i].Bytes = append([]byte(nil), out[i].Bytes...)
		out[i].Refs = append([]Ref(nil), out[i].Refs...)
	}
	return out
}

// Len reports the number of distinct interned constants.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
