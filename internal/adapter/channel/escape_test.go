package channel

import "testing"

func TestEscapeASCII(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"line1\nline2", `line1\nline2`},
		{`say "hi" \ bye`, `say \"hi\" \\ bye`},
		{"₹590.00", `\u20b9590.00`},
		{"📋 Leads", `\ud83d\udccb Leads`},
		{"tab\there\x01", `tab\there\u0001`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EscapeASCII(tt.in); got != tt.want {
			t.Errorf("EscapeASCII(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
