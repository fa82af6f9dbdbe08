package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "yt-dlp")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	var probed string
	reqs := []Requirement{
		{Name: "yt-dlp", Command: present, Probe: func(_ context.Context, binary string) (string, error) {
			probed = binary
			return "2024.08.06\nextra", nil
		}},
		{Name: "ffmpeg", Command: "clearly-not-present-binary"},
		{Name: "blank", Command: "  ", Optional: true},
	}

	got := CheckBinaries(context.Background(), reqs)
	want := []Status{
		{Name: "yt-dlp", Command: present, Available: true, Path: present, Version: "2024.08.06"},
		{Name: "ffmpeg", Command: "clearly-not-present-binary", Detail: `binary "clearly-not-present-binary" not found`},
		{Name: "blank", Optional: true, Detail: "command not configured"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CheckBinaries mismatch (-want +got):\n%s", diff)
	}
	if probed != present {
		t.Fatalf("probe called with %q", probed)
	}
}

func TestProbeFailureKeepsToolAvailable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got := CheckBinaries(context.Background(), []Requirement{{
		Name:    "ffmpeg",
		Command: bin,
		Probe:   func(context.Context, string) (string, error) { return "", errors.New("exit status 1") },
	}})
	if len(got) != 1 || !got[0].Available || got[0].Detail != "version probe failed: exit status 1" {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestMissingSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b"},
		{Name: "c", Optional: true},
	}
	got := Missing(statuses)
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("unexpected missing list: %+v", got)
	}
}
