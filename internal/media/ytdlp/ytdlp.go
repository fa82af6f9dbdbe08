package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Entry is the subset of yt-dlp info JSON mediaflow consumes.
type Entry struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	WebpageURL  string      `json:"webpage_url"`
	Thumbnail   string      `json:"thumbnail"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
	Duration    float64     `json:"duration"`
	UploadDate  string      `json:"upload_date"`
	ViewCount   int64       `json:"view_count"`
	Uploader    string      `json:"uploader"`
	Channel     string      `json:"channel"`
	ChannelID   string      `json:"channel_id"`
	Description string      `json:"description"`
}

// Thumbnail is one candidate image from yt-dlp's thumbnails list.
type Thumbnail struct {
	URL string `json:"url"`
}

// BestThumbnail returns the explicit thumbnail or the last (highest quality)
// entry of the thumbnails list.
func (e Entry) BestThumbnail() string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	for i := len(e.Thumbnails) - 1; i >= 0; i-- {
		if e.Thumbnails[i].URL != "" {
			return e.Thumbnails[i].URL
		}
	}
	return ""
}

// Playlist is a channel or playlist listing.
type Playlist struct {
	Title     string   `json:"title"`
	Channel   string   `json:"channel"`
	Uploader  string   `json:"uploader"`
	ChannelID string   `json:"channel_id"`
	Entries   []*Entry `json:"entries"`
}

// Name returns the most descriptive name yt-dlp reported for the listing.
func (p Playlist) Name() string {
	for _, candidate := range []string{p.Channel, p.Uploader, p.Title} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

// Client runs yt-dlp.
type Client struct {
	Binary    string
	UserAgent string
}

// New returns a client for the given binary. An empty binary resolves "yt-dlp"
// from PATH.
func New(binary, userAgent string) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Client{Binary: binary, UserAgent: strings.TrimSpace(userAgent)}
}

// ListChannel returns the entries of a channel or playlist URL. limit <= 0
// lists everything. Unavailable entries are skipped by yt-dlp and come back nil.
func (c *Client) ListChannel(ctx context.Context, url string, limit int) (Playlist, error) {
	args := []string{"--dump-single-json", "--ignore-errors", "--no-warnings"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, c.commonArgs()...)
	args = append(args, "--", url)

	output, err := c.run(ctx, "list", args)
	if err != nil {
		return Playlist{}, err
	}
	var playlist Playlist
	if err := json.Unmarshal(lastJSONLine(output), &playlist); err != nil {
		return Playlist{}, fmt.Errorf("yt-dlp list parse: %w", err)
	}
	return playlist, nil
}

// Probe returns metadata for a single URL without downloading it.
func (c *Client) Probe(ctx context.Context, url string) (Entry, error) {
	args := []string{"--dump-single-json", "--skip-download", "--flat-playlist", "--no-warnings"}
	args = append(args, c.commonArgs()...)
	args = append(args, "--", url)

	output, err := c.run(ctx, "probe", args)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(lastJSONLine(output), &entry); err != nil {
		return Entry{}, fmt.Errorf("yt-dlp probe parse: %w", err)
	}
	return entry, nil
}

// DownloadOptions controls a single download.
type DownloadOptions struct {
	URL string
	// OutputTemplate is a yt-dlp -o template ending in ".%(ext)s".
	OutputTemplate string
	Format         string
	Subtitles      bool
	SubtitleLang   string
	Thumbnail      bool
}

// Download fetches one video. The returned entry is the info JSON yt-dlp
// printed; the caller locates the produced files from the template.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (Entry, error) {
	if strings.TrimSpace(opts.OutputTemplate) == "" {
		return Entry{}, errors.New("yt-dlp download: empty output template")
	}
	args := []string{
		"--dump-json", "--no-simulate", "--no-progress", "--no-playlist",
		"-f", FormatSelector(opts.Format),
		"-o", opts.OutputTemplate,
		"--recode-video", "mp4",
		"--embed-metadata",
	}
	if opts.Thumbnail {
		args = append(args, "--write-thumbnail")
	}
	if opts.Subtitles {
		lang := strings.TrimSpace(opts.SubtitleLang)
		if lang == "" {
			lang = "en"
		}
		args = append(args, "--write-subs", "--write-auto-subs", "--sub-langs", lang, "--convert-subs", "srt")
	}
	args = append(args, c.commonArgs()...)
	args = append(args, "--", opts.URL)

	output, err := c.run(ctx, "download", args)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if line := lastJSONLine(output); len(line) > 0 {
		if err := json.Unmarshal(line, &entry); err != nil {
			return Entry{}, fmt.Errorf("yt-dlp download parse: %w", err)
		}
	}
	return entry, nil
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "version", []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// FormatSelector maps the simple quality names to yt-dlp format selectors.
// Anything else is passed through as a raw selector.
func FormatSelector(quality string) string {
	switch strings.TrimSpace(quality) {
	case "", "best":
		return "bestvideo+bestaudio/best"
	case "worst":
		return "worstvideo+worstaudio/worst"
	default:
		return strings.TrimSpace(quality)
	}
}

func (c *Client) commonArgs() []string {
	if c.UserAgent == "" {
		return nil
	}
	return []string{"--user-agent", c.UserAgent}
}

func (c *Client) run(ctx context.Context, op string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("yt-dlp %s: %w", op, ctxErr)
		}
		return nil, fmt.Errorf("yt-dlp %s: %w: %s", op, err, summarize(stderr.String()))
	}
	return output, nil
}

// lastJSONLine returns the last stdout line that looks like a JSON object.
// yt-dlp may interleave status lines with --no-simulate.
func lastJSONLine(output []byte) []byte {
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && line[0] == '{' {
			last = append(last[:0], line...)
		}
	}
	return last
}

// summarize keeps the last few stderr lines, which carry yt-dlp's ERROR message.
func summarize(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
