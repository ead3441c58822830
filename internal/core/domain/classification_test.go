package domain

import (
	"errors"
	"testing"
)

func TestParseClassificationCodeStripsSeparators(t *testing.T) {
	code, err := ParseClassificationCode(" 8471.30.00 ")
	if err != nil {
		t.Fatalf("ParseClassificationCode() error = %v", err)
	}
	if code != "84713000" {
		t.Fatalf("expected 84713000, got %s", code)
	}
	if code.Dotted() != "8471.30.00" {
		t.Fatalf("expected dotted 8471.30.00, got %s", code.Dotted())
	}
	if code.Chapter() != "84" || code.Heading() != "8471" {
		t.Fatalf("unexpected chapter/heading %s/%s", code.Chapter(), code.Heading())
	}
}

func TestParseClassificationCodeRejectsMalformed(t *testing.T) {
	cases := []string{"", "847", "84713000123", "8471.3A", "abcd"}
	for _, raw := range cases {
		_, err := ParseClassificationCode(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", raw, err)
		}
	}
}

func TestLineageIsMostSpecificFirst(t *testing.T) {
	code := ClassificationCode("8471300010")
	got := code.Lineage()
	want := []ClassificationCode{"8471300010", "84713000", "847130", "8471"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lineage[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if short := ClassificationCode("8471").Lineage(); len(short) != 1 {
		t.Fatalf("expected heading lineage of 1, got %v", short)
	}
}

func TestParseCountryCode(t *testing.T) {
	code, err := ParseCountryCode("cn")
	if err != nil {
		t.Fatalf("ParseCountryCode() error = %v", err)
	}
	if code != "CN" {
		t.Fatalf("expected CN, got %s", code)
	}

	alpha3, err := ParseCountryCode("JPN")
	if err != nil {
		t.Fatalf("ParseCountryCode(JPN) error = %v", err)
	}
	if alpha3 != "JP" {
		t.Fatalf("expected JP, got %s", alpha3)
	}

	for _, raw := range []string{"", "CHINA", "C1"} {
		if _, err := ParseCountryCode(raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", raw, err)
		}
	}
}

func TestParseValuationBasisDefaultsToCIF(t *testing.T) {
	basis, err := ParseValuationBasis("")
	if err != nil {
		t.Fatalf("ParseValuationBasis() error = %v", err)
	}
	if basis != ValuationCIF {
		t.Fatalf("expected CIF, got %s", basis)
	}
	if _, err := ParseValuationBasis("ddp"); err != nil {
		t.Fatalf("expected ddp accepted, got %v", err)
	}
	if _, err := ParseValuationBasis("XYZ"); err == nil {
		t.Fatalf("expected error for unknown basis")
	}
}
