package model

import "testing"

func TestFlatten(t *testing.T) {
	cr := &CleaningResult{
		CleanedData:   map[string]string{FieldName: "Dr. Asha Rao", FieldCity: "Pune"},
		Issues:        []string{"Standardized name", "Formatted phone"},
		AccuracyScore: 85,
	}

	flat := cr.Flatten()
	if flat[FieldName] != "Dr. Asha Rao" || flat[FieldCity] != "Pune" {
		t.Errorf("cleaned fields missing from flattened map: %v", flat)
	}
	if flat["accuracy_score"] != 85 {
		t.Errorf("accuracy_score = %v", flat["accuracy_score"])
	}
	if flat["issues"] != "Standardized name, Formatted phone" {
		t.Errorf("issues = %v", flat["issues"])
	}
}

func TestFlattenEmptyResult(t *testing.T) {
	cr := &CleaningResult{CleanedData: map[string]string{}}
	flat := cr.Flatten()
	if flat["accuracy_score"] != 0 {
		t.Errorf("accuracy_score = %v", flat["accuracy_score"])
	}
	if flat["issues"] != "" {
		t.Errorf("issues = %v", flat["issues"])
	}
}

func TestSearchResultEmpty(t *testing.T) {
	var sr SearchResult
	if !sr.Empty() {
		t.Error("zero-value result should be empty")
	}
	sr.FoundInfo.Phone = "+91 98765 43210"
	if sr.Empty() {
		t.Error("result with a recovered phone should not be empty")
	}
}
