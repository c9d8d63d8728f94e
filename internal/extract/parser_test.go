package extract

import (
	"testing"
)

func TestParseObject_PlainJSON(t *testing.T) {
	got := ParseObject(`{"party_one": "Acme Corp", "agreement_value": 6500}`)
	if got == nil {
		t.Fatal("ParseObject returned nil")
	}
	if got["party_one"] != "Acme Corp" {
		t.Errorf("party_one = %v, want Acme Corp", got["party_one"])
	}
	if got["agreement_value"] != float64(6500) {
		t.Errorf("agreement_value = %v, want 6500", got["agreement_value"])
	}
}

func TestParseObject_JSONFence(t *testing.T) {
	raw := "```json\n{\"party_one\": \"Acme\"}\n```"
	got := ParseObject(raw)
	if got == nil {
		t.Fatal("ParseObject returned nil")
	}
	if got["party_one"] != "Acme" {
		t.Errorf("party_one = %v, want Acme", got["party_one"])
	}
}

func TestParseObject_BareFence(t *testing.T) {
	raw := "```\n{\"k\": 1}\n```"
	got := ParseObject(raw)
	if got == nil {
		t.Fatal("ParseObject returned nil")
	}
	if got["k"] != float64(1) {
		t.Errorf("k = %v, want 1", got["k"])
	}
}

// TestParseObject_SurroundingProse verifies the bracket scan recovers JSON
// embedded in commentary.
func TestParseObject_SurroundingProse(t *testing.T) {
	raw := `Here is the extracted data you asked for:
{"agreement_value": 100, "party_one": "X"}
Let me know if you need anything else.`
	got := ParseObject(raw)
	if got == nil {
		t.Fatal("ParseObject returned nil")
	}
	if got["agreement_value"] != float64(100) {
		t.Errorf("agreement_value = %v, want 100", got["agreement_value"])
	}
}

func TestParseObject_NoJSON(t *testing.T) {
	if got := ParseObject("I could not find any contract details."); got != nil {
		t.Errorf("got %v, want nil for output with no JSON", got)
	}
}

func TestParseObject_MalformedJSON(t *testing.T) {
	if got := ParseObject(`{"party_one": "Acme",}`); got != nil {
		t.Errorf("got %v, want nil for malformed JSON", got)
	}
}

func TestParseObject_Empty(t *testing.T) {
	if got := ParseObject(""); got != nil {
		t.Errorf("got %v, want nil for empty input", got)
	}
}

func TestParseObject_NestedBraces(t *testing.T) {
	raw := `{"outer": {"inner": "value"}}`
	got := ParseObject(raw)
	if got == nil {
		t.Fatal("ParseObject returned nil")
	}
	inner, ok := got["outer"].(map[string]any)
	if !ok || inner["inner"] != "value" {
		t.Errorf("outer = %v, want nested object", got["outer"])
	}
}
