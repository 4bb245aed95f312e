package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/patch"
	"github.com/vmforge/stencilc/internal/stencil"
)

func fixtureObject() *objfile.Object {
	return &objfile.Object{
		Sections: map[string]objfile.Section{
			"text.main": {Name: "text.main", Data: []byte{0x90, 0x90, 0x90, 0x90}},
			"text.slow": {Name: "text.slow", Data: []byte{0x0F, 0x0B}},
			"data.private": {Name: "data.private", Data: []byte{0xAA, 0xBB}},
		},
		Symbols: map[string]objfile.SymbolInfo{},
	}
}

func TestWriteStencilArtifactIncludesSharedConstants(t *testing.T) {
	d := Driver{Log: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
	pool := constpool.New()
	pool.Intern([]byte{1, 2, 3, 4}, 4)

	s, err := stencil.Extract(fixtureObject(), "OpAdd_Fast", pool)
	if err != nil {
		t.Fatal(err)
	}
	job := &StencilJob{VariantName: "OpAdd_Fast", Stencil: s, Plan: patch.BuildPlan(s)}

	var buf bytes.Buffer
	if err := d.WriteStencilArtifact(&buf, job, pool); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\"variant_name\": \"OpAdd_Fast\"") {
		t.Errorf("missing variant name: %q", out)
	}
	if !strings.Contains(out, "\"shared_constants\"") {
		t.Errorf("missing shared constants section: %q", out)
	}
}

func TestWriteAuditDumpCoversEverySection(t *testing.T) {
	d := Driver{Log: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
	pool := constpool.New()
	s, err := stencil.Extract(fixtureObject(), "OpAdd_Fast", pool)
	if err != nil {
		t.Fatal(err)
	}
	job := &StencilJob{VariantName: "OpAdd_Fast", Stencil: s, Plan: patch.BuildPlan(s)}

	var buf bytes.Buffer
	if err := d.WriteAuditDump(&buf, job); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "text.main") || !strings.Contains(out, "text.slow") || !strings.Contains(out, "data.private") {
		t.Errorf("audit dump missing a section: %q", out)
	}
}
