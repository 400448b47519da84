package domain

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Action
	}{
		{name: "pass", input: "pass", want: ActionPass},
		{name: "sanitize", input: "sanitize", want: ActionSanitize},
		{name: "block", input: "block", want: ActionBlock},
		{name: "unknown defaults to pass", input: "unknown", want: ActionPass},
		{name: "empty defaults to pass", input: "", want: ActionPass},
		{name: "garbage defaults to pass", input: "BLOCK!", want: ActionPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAction(tt.input); got != tt.want {
				t.Errorf("ParseAction(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInputSourceValid(t *testing.T) {
	for _, s := range []InputSource{InputText, InputImage, InputDocument, InputVoice} {
		if !s.Valid() {
			t.Errorf("InputSource(%q).Valid() = false, want true", s)
		}
	}

	if InputSource("video").Valid() {
		t.Error("InputSource(\"video\").Valid() = true, want false")
	}
}

func TestRecordBlocked(t *testing.T) {
	rec := &CanonicalRecord{Scores: Scores{Action: ActionBlock}}
	if !rec.Blocked() {
		t.Error("expected blocked record")
	}

	rec = &CanonicalRecord{Scores: Scores{Action: ActionSanitize}}
	if rec.Blocked() {
		t.Error("sanitize action reported as blocked")
	}
}
