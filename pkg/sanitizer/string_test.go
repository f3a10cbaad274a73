package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "basic trim", input: "  hello  ", want: "hello"},
		{name: "multiple spaces", input: "hello    world", want: "hello world"},
		{name: "tabs and newlines", input: "hello\t\nworld", want: "hello world"},
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "uuid lowercased", input: " 3F2504E0-4F89-11D3-9A0C-0305E82C3301 ", want: "3f2504e0-4f89-11d3-9a0c-0305e82c3301"},
		{name: "plain id kept", input: " CAR-42 ", want: "CAR-42"},
		{name: "wrong dash positions", input: "3F2504E04-F89-11D3-9A0C-0305E82C3301", want: "3F2504E04-F89-11D3-9A0C-0305E82C3301"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeID(tt.input); got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEnum(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cash", "Cash"},
		{" ONLINE ", "Online"},
		{"card", "card"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeEnum(tt.input, "Cash", "Online"); got != tt.want {
			t.Errorf("NormalizeEnum(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency(" usd "); got != "USD" {
		t.Errorf("NormalizeCurrency() = %q, want USD", got)
	}
	if got := NormalizeCurrency(NormalizeCurrency("eur")); got != "EUR" {
		t.Errorf("NormalizeCurrency() not idempotent: %q", got)
	}
}
