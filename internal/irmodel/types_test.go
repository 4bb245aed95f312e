package irmodel

import "testing"

func TestVariantEncodedLength(t *testing.T) {
	tests := []struct {
		name string
		v    Variant
		want int
	}{
		{"no operands", Variant{}, 1},
		{"two byte operands", Variant{OperandWidths: []int{1, 2}}, 4},
		{"with metadata slot", Variant{OperandWidths: []int{2}, MetadataSlot: true}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.EncodedLength(); got != tt.want {
				t.Errorf("EncodedLength() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateEmptyVariantSet(t *testing.T) {
	d := OpcodeDef{Name: "Nop"}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for empty variant set")
	}
}

func TestValidateOperandWidthArity(t *testing.T) {
	d := OpcodeDef{
		Name:     "SetConstInt16",
		Operands: []Operand{{Name: "imm", Kind: Literal, Width: 2, Signed: true}},
		Variants: []Variant{{Name: "base", OperandWidths: []int{2, 4}}},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for operand width arity mismatch")
	}
}

func TestValidateOperandSignedArity(t *testing.T) {
	d := OpcodeDef{
		Name:     "SetConstInt16",
		Operands: []Operand{{Name: "imm", Kind: Literal, Width: 2, Signed: true}},
		Variants: []Variant{{Name: "base", OperandWidths: []int{2}, OperandSigned: []bool{true, false}}},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for operand signedness arity mismatch")
	}
}

func TestValidateNonMonotoneWidths(t *testing.T) {
	d := OpcodeDef{
		Name:     "Add",
		Operands: []Operand{{Kind: Slot, Width: 2}, {Kind: Slot, Width: 2}},
		Variants: []Variant{
			{Name: "narrow", OperandWidths: []int{1, 2}},
			{Name: "wide", OperandWidths: []int{2, 1}},
		},
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error: neither variant's widths dominate the other")
	}
}

func TestValidateMonotoneWidthsOK(t *testing.T) {
	d := OpcodeDef{
		Name:     "Add",
		Operands: []Operand{{Kind: Slot, Width: 2}, {Kind: Slot, Width: 2}},
		Variants: []Variant{
			{Name: "narrow", OperandWidths: []int{1, 1}},
			{Name: "wide", OperandWidths: []int{2, 2}},
		},
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSingleVariantAccepted(t *testing.T) {
	d := OpcodeDef{
		Name:     "Call",
		Operands: []Operand{{Kind: Callee, Width: 2}},
		Variants: []Variant{
			{Name: "fixedArity", OperandWidths: []int{2}},
		},
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTypeRuleCombinators(t *testing.T) {
	const (
		typeInt    TypeMask = 1 << 0
		typeDouble TypeMask = 1 << 1
		typeNil    TypeMask = 1 << 2
	)

	t.Run("AlwaysOutput", func(t *testing.T) {
		rule := AlwaysOutput(typeNil)
		if got := rule([]TypeMask{typeInt}); got != typeNil {
			t.Errorf("got %v, want %v", got, typeNil)
		}
	})

	t.Run("BypassFromOperand", func(t *testing.T) {
		rule := BypassFromOperand(1)
		got := rule([]TypeMask{typeInt, typeDouble})
		if got != typeDouble {
			t.Errorf("got %v, want %v", got, typeDouble)
		}
		if got := rule([]TypeMask{typeInt}); got != 0 {
			t.Errorf("out of range operand should yield zero mask, got %v", got)
		}
	})

	t.Run("UpcastFromUnion", func(t *testing.T) {
		rule := UpcastFromUnion(0, 1)
		got := rule([]TypeMask{typeInt, typeDouble})
		want := typeInt | typeDouble
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Combine", func(t *testing.T) {
		rule := Combine(BypassFromOperand(0), AlwaysOutput(typeNil))
		got := rule([]TypeMask{typeInt})
		want := typeInt | typeNil
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}
