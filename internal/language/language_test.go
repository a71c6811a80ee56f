package language

import "testing"

func TestToISO3(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"eng", "eng"},
		{"en", "eng"},
		{"EN", "eng"},
		{"fre", "fra"},
		{"fr", "fra"},
		{"ger", "deu"},
		{"de-DE", "deu"},
		{"pt-BR", "por"},
		{"japanese", "jpn"},
		{"", "und"},
		{"und", "und"},
		{"zzzz", "und"},
	}
	for _, tt := range tests {
		if got := ToISO3(tt.in); got != tt.want {
			t.Errorf("ToISO3(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"eng", "English"},
		{"fre", "French"},
		{"ja", "Japanese"},
		{"", "Unknown"},
		{"und", "Unknown"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractFromTags(t *testing.T) {
	if got := ExtractFromTags(map[string]string{"LANGUAGE": " ENG\u0000"}); got != "eng" {
		t.Fatalf("ExtractFromTags = %q", got)
	}
	if got := ExtractFromTags(nil); got != "" {
		t.Fatalf("ExtractFromTags(nil) = %q", got)
	}
}
