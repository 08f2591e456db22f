package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " A. Kumar & Sons ",
			want:  "A. Kumar & Sons",
		},
		{
			name:  "devanagari characters",
			input: " राम कुमार ",
			want:  "राम कुमार",
		},
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

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase",
			input: "A.Kumar@Example.COM",
			want:  "a.kumar@example.com",
		},
		{
			name:  "trim spaces",
			input: "  kumar@example.com  ",
			want:  "kumar@example.com",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEmail(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePlotNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase to uppercase",
			input: "p101",
			want:  "P101",
		},
		{
			name:  "already uppercase",
			input: "P101",
			want:  "P101",
		},
		{
			name:  "trim spaces",
			input: "  a-204  ",
			want:  "A-204",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePlotNumber(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePlotNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
