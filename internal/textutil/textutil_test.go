package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  My Video: Part 1?  ", want: "My Video Part 1"},
		{in: `a/b\c*d"e<f>g|h`, want: "abcdefgh"},
		{in: "", want: ""},
		{in: "???", want: ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := SanitizeFileName(long)
	if n := len([]rune(got)); n != 100 {
		t.Fatalf("expected 100 runes, got %d", n)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("My Channel!"); got != "my_channel" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"post_process": "Post Process",
		"my-video":     "My Video",
		"scan":         "Scan",
		"":             "",
	}
	for in, want := range tests {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlural(t *testing.T) {
	if Plural(1, "video", "videos") != "video" || Plural(3, "video", "videos") != "videos" {
		t.Fatal("unexpected plural")
	}
}
