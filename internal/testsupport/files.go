package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mp4Header is a minimal ftyp box so fake videos sniff as MP4.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'm', 'p', '4', '1'}

// WriteVideo creates a fake MP4 of exactly size bytes (at least one). Bytes
// past the ftyp header are zero padding.
func WriteVideo(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	data := make([]byte, size)
	copy(data, mp4Header)
	writeArtifact(t, path, data)
}

// WriteSubtitle writes one SRT cue per line of text, one second apart.
func WriteSubtitle(t testing.TB, path string, cues ...string) {
	t.Helper()
	var buf bytes.Buffer
	for i, cue := range cues {
		fmt.Fprintf(&buf, "%d\n00:00:%02d,000 --> 00:00:%02d,900\n%s\n\n", i+1, i, i, strings.TrimSpace(cue))
	}
	writeArtifact(t, path, buf.Bytes())
}

func writeArtifact(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
