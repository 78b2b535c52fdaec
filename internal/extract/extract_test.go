package extract

import (
	"errors"
	"testing"
)

func TestJSONObject_BareObject(t *testing.T) {
	obj, err := JSONObject(`{"a": 1, "b": "two"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["b"] != "two" {
		t.Errorf("b = %v, want two", obj["b"])
	}
}

func TestJSONObject_ProseWrapped(t *testing.T) {
	text := "Here is the cleaned record:\n```json\n{\"score\": 85}\n```\nLet me know if you need anything else."
	obj, err := JSONObject(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["score"] != float64(85) {
		t.Errorf("score = %v, want 85", obj["score"])
	}
}

func TestJSONObject_NestedBraces(t *testing.T) {
	obj, err := JSONObject(`prefix {"outer": {"inner": "x"}} suffix`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inner, ok := obj["outer"].(map[string]any)
	if !ok || inner["inner"] != "x" {
		t.Errorf("outer = %v, want nested object", obj["outer"])
	}
}

func TestJSONObject_NoBraces(t *testing.T) {
	_, err := JSONObject("the model refused to answer")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("err = %v, want ErrNoJSONFound", err)
	}
}

func TestJSONObject_OpenBraceOnly(t *testing.T) {
	_, err := JSONObject("{ truncated mid-stream")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("err = %v, want ErrNoJSONFound", err)
	}
}

func TestJSONObject_MalformedSpan(t *testing.T) {
	_, err := JSONObject(`{"a": 1,}`)
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestInto_TypedTarget(t *testing.T) {
	var got struct {
		Confidence string `json:"confidence"`
	}
	err := Into(`Sure! {"confidence": "high"}`, &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Confidence != "high" {
		t.Errorf("confidence = %q, want high", got.Confidence)
	}
}
