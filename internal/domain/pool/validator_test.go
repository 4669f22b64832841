package pool

import (
	"errors"
	"testing"
)

func TestValidateResults_Success(t *testing.T) {
	out, err := ValidateResults([]ResultEntry{
		{Label: "WBC", Value: "6.1", Unit: "10^9/L", ReferenceRange: "4.0-11.0"},
		{Label: "Culture", Value: "no growth"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Flag != FlagNormal || out[1].Flag != FlagNormal {
		t.Error("expected flag to default to NORMAL")
	}
}

func TestValidateResults_QualitativeValue(t *testing.T) {
	// Free-text values are legitimate results, not validation errors.
	out, err := ValidateResults([]ResultEntry{
		{Label: "Blood in urine", Value: "trace", Flag: FlagCritical},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Flag != FlagCritical {
		t.Error("expected CRITICAL flag to be preserved")
	}
}

func TestValidateResults_Empty(t *testing.T) {
	_, err := ValidateResults(nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["results"]; !ok {
		t.Errorf("expected results field error, got %v", ve.Fields)
	}
}

func TestValidateResults_MissingFields(t *testing.T) {
	_, err := ValidateResults([]ResultEntry{
		{Label: "", Value: "5"},
		{Label: "HGB", Value: "  "},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["results[0].label"]; !ok {
		t.Errorf("expected results[0].label error, got %v", ve.Fields)
	}
	if _, ok := ve.Fields["results[1].value"]; !ok {
		t.Errorf("expected results[1].value error, got %v", ve.Fields)
	}
}

func TestValidateResults_BadFlag(t *testing.T) {
	_, err := ValidateResults([]ResultEntry{
		{Label: "K", Value: "5.5", Flag: "PANIC"},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["results[0].flag"]; !ok {
		t.Errorf("expected results[0].flag error, got %v", ve.Fields)
	}
}

func TestValidateCancelReason(t *testing.T) {
	got, err := ValidateCancelReason("  specimen hemolyzed  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "specimen hemolyzed" {
		t.Errorf("expected trimmed reason, got %q", got)
	}

	if _, err := ValidateCancelReason("   "); err == nil {
		t.Fatal("expected error for blank reason")
	}
}
