package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Overlay describes what to draw onto the video.
type Overlay struct {
	// SubtitleFile is an SRT/VTT path rendered with the subtitles filter.
	SubtitleFile string
	// Watermark is drawn in the top left corner.
	Watermark string
}

// Empty reports whether the overlay has nothing to render.
func (o Overlay) Empty() bool {
	return strings.TrimSpace(o.SubtitleFile) == "" && strings.TrimSpace(o.Watermark) == ""
}

// FilterChain returns the -vf argument for the overlay, or "" when empty.
func (o Overlay) FilterChain() string {
	var filters []string
	if path := strings.TrimSpace(o.SubtitleFile); path != "" {
		filters = append(filters, "subtitles="+escapeFilterPath(path))
	}
	if text := sanitizeDrawText(o.Watermark); text != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':x=10:y=10:fontsize=24:fontcolor=white@0.8:box=1:boxcolor=black@0.5:boxborderw=5",
			text,
		))
	}
	return strings.Join(filters, ",")
}

// Burn renders the overlay into input and writes output, copying audio
// without re-encoding. output is overwritten.
func Burn(ctx context.Context, binary, input, output string, overlay Overlay) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return errors.New("ffmpeg burn: input and output are required")
	}
	chain := overlay.FilterChain()
	if chain == "" {
		return errors.New("ffmpeg burn: nothing to render")
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-i", input, "-vf", chain, "-c:a", "copy", output}
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg burn: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg burn: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Version returns the first line of ffmpeg -version.
func Version(ctx context.Context, binary string) (string, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	out, err := exec.CommandContext(ctx, binary, "-version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg version: %w: %s", err, strings.TrimSpace(string(out)))
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(first), nil
}

// escapeFilterPath escapes a file path for use as a filter argument.
var filterPathEscaper = strings.NewReplacer(
	`\`, "/",
	":", `\:`,
	"'", `\'`,
	",", `\,`,
)

func escapeFilterPath(path string) string {
	return filterPathEscaper.Replace(path)
}

// sanitizeDrawText drops characters that would terminate the drawtext option.
func sanitizeDrawText(text string) string {
	text = strings.NewReplacer("'", "", ":", "", `\`, "", ",", "").Replace(text)
	return strings.TrimSpace(text)
}
