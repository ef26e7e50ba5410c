// SPDX-License-Identifier: MIT
package dsp

import (
	"errors"
	"testing"
)

func TestNamespaceRoundTrip(t *testing.T) {
	for _, n := range AllNamespaces() {
		t.Run(n.String(), func(t *testing.T) {
			got, err := ParseNamespace(n.String())
			if err != nil {
				t.Fatalf("ParseNamespace(%q) failed: %v", n, err)
			}
			if got != n {
				t.Errorf("ParseNamespace(%q) = %v, want %v", n, got, n)
			}
		})
	}

	if _, err := ParseNamespace("phaser"); err == nil {
		t.Error("expected error for unknown namespace")
	}
}

func TestNamespaceSet(t *testing.T) {
	s := SetOf(Convolver, Output)
	if !s.Has(Output) || !s.Has(Convolver) || s.Has(Clarity) {
		t.Fatalf("unexpected membership in %v", s.Slice())
	}

	got := s.Union(SetOf(Clarity)).Slice()
	want := []Namespace{Output, Clarity, Convolver}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if len(FullSet().Slice()) != len(AllNamespaces()) {
		t.Error("FullSet should contain every namespace")
	}
	if !NamespaceSet(0).Empty() {
		t.Error("zero set should be empty")
	}
}

func TestValidationErrorMatchesErrInvalid(t *testing.T) {
	err := error(InvalidDisable(GraphicEqualizer, "missing marker"))
	if !errors.Is(err, ErrInvalid) {
		t.Error("ValidationError should match ErrInvalid")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) || !ve.Disable {
		t.Error("expected a disabling ValidationError")
	}
	if err.Error() != "graphic_eq: missing marker" {
		t.Errorf("Error() = %q", err.Error())
	}
}
