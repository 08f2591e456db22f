package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid E.164 format",
			input: "+919876543210",
			want:  "+919876543210",
		},
		{
			name:  "with spaces",
			input: "+91 98765 43210",
			want:  "+919876543210",
		},
		{
			name:  "with dashes",
			input: "+91-98765-43210",
			want:  "+919876543210",
		},
		{
			name:  "us number with parentheses",
			input: "+1 (212) 555-1234",
			want:  "+12125551234",
		},
		{
			name:  "leading and trailing spaces",
			input: "  +919876543210  ",
			want:  "+919876543210",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "national format without plus",
			input: "9876543210",
			want:  "+919876543210",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
