package auditdump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/patch"
)

func TestWriteSectionMarksRelocatedBytes(t *testing.T) {
	sp := patch.SectionPlan{
		PreFixupCode: []byte{0x90, 0x90, 0xDE, 0xAD, 0xBE, 0xEF, 0x90, 0x90},
		RelocMarker:  []bool{false, false, true, true, true, true, false, false},
	}
	var buf bytes.Buffer
	if err := WriteSection(&buf, "OpAdd", "text.main", sp); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "OpAdd / text.main") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "de ad be ef") {
		t.Errorf("missing hex bytes: %q", out)
	}
	if !strings.Contains(out, "**") {
		t.Errorf("missing relocation marker: %q", out)
	}
}

func TestWriteSectionListsLatePatchesAndRenames(t *testing.T) {
	sp := patch.SectionPlan{
		PreFixupCode:    []byte{0, 0, 0, 0},
		RelocMarker:     []bool{false, false, false, false},
		LatePatches:     []patch.CondBrLatePatch{{Offset: 0, Is64Bit: true}},
		RegisterRenames: []patch.RegisterRename{{Offset: 2, Class: irmodel.GPRHint, Slot: 1}},
	}
	var buf bytes.Buffer
	if err := WriteSection(&buf, "OpCondBr", "text.main", sp); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "late patches") || !strings.Contains(out, "width 8") {
		t.Errorf("missing late-patch annotation: %q", out)
	}
	if !strings.Contains(out, "register renames") {
		t.Errorf("missing register-rename annotation: %q", out)
	}
}
