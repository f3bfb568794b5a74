package htmlutil

import (
	"strings"
	"testing"
)

func TestReplyText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Gunakan NPK.", "Gunakan NPK."},
		{"trims", "  Pada 21 HST.  \n", "Pada 21 HST."},
		{"crlf and blank runs", "Langkah 1\r\n\r\n\r\n\r\nLangkah 2", "Langkah 1\n\nLangkah 2"},
		{"trailing spaces", "a  \nb\t", "a\nb"},
		{"comparison is not markup", "pH < 5 berarti asam", "pH < 5 berarti asam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplyText(tt.in); got != tt.want {
				t.Errorf("ReplyText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplyText_HTML(t *testing.T) {
	got := ReplyText("<p>Berikan <b>kapur</b> dolomit &amp; pupuk kandang.</p>")
	if strings.Contains(got, "<") || strings.Contains(got, "&amp;") {
		t.Errorf("expected markup stripped, got %q", got)
	}
	if !strings.Contains(got, "kapur") || !strings.Contains(got, "dolomit & pupuk kandang.") {
		t.Errorf("expected text kept, got %q", got)
	}
}
