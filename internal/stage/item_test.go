package stage_test

import (
	"testing"

	"mediaflow/internal/stage"
)

func TestItemContextCloneIsDeep(t *testing.T) {
	orig := stage.NewItemContext(1, stage.Item{ID: "a", Title: "A"})
	orig.Download = &stage.Download{VideoFile: "a.mp4", SubtitleFiles: []string{"a.en.srt"}}
	orig.Subtitles = []string{"gen.srt"}
	orig.Uploads = []stage.UploadResult{{Platform: "youtube"}}

	clone := orig.Clone()
	clone.Download.VideoFile = "changed.mp4"
	clone.Download.SubtitleFiles[0] = "changed.srt"
	clone.Subtitles = append(clone.Subtitles, "extra.srt")
	clone.Uploads[0].Platform = "vimeo"
	clone.ProcessedFile = "burned.mp4"

	if orig.Download.VideoFile != "a.mp4" || orig.Download.SubtitleFiles[0] != "a.en.srt" {
		t.Fatalf("download mutated through clone: %+v", orig.Download)
	}
	if len(orig.Subtitles) != 1 || orig.Uploads[0].Platform != "youtube" || orig.ProcessedFile != "" {
		t.Fatalf("context mutated through clone: %+v", orig)
	}
}

func TestSourceVideoPrefersProcessed(t *testing.T) {
	ctx := stage.NewItemContext(1, stage.Item{})
	if ctx.SourceVideo() != "" {
		t.Fatal("expected empty source video")
	}
	ctx.Download = &stage.Download{VideoFile: "raw.mp4"}
	if ctx.SourceVideo() != "raw.mp4" {
		t.Fatalf("got %q", ctx.SourceVideo())
	}
	ctx.ProcessedFile = "burned.mp4"
	if ctx.SourceVideo() != "burned.mp4" {
		t.Fatalf("got %q", ctx.SourceVideo())
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := stage.Config{"limit": 5.0, "yaml_limit": 7, "text": " hi ", "flag": "true", "bad": 1.5}
	if n, ok := cfg.Int("limit"); !ok || n != 5 {
		t.Fatalf("Int(limit) = %d %v", n, ok)
	}
	if n, ok := cfg.Int("yaml_limit"); !ok || n != 7 {
		t.Fatalf("Int(yaml_limit) = %d %v", n, ok)
	}
	if _, ok := cfg.Int("bad"); ok {
		t.Fatal("expected fractional value to be rejected")
	}
	if cfg.String("text", "x") != "hi" || cfg.String("missing", "x") != "x" {
		t.Fatal("unexpected String results")
	}
	if !cfg.Bool("flag", false) || cfg.Bool("missing", false) {
		t.Fatal("unexpected Bool results")
	}
}
