package stage

import "slices"

// Item is one unit of work produced by discovery.
type Item struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	UploadDate   string  `json:"upload_date,omitempty"`
	ViewCount    int64   `json:"view_count,omitempty"`
}

// Download describes the artifacts written by the fetch stage.
type Download struct {
	VideoFile     string   `json:"video_file"`
	SubtitleFiles []string `json:"subtitle_files"`
	ThumbnailFile string   `json:"thumbnail_file,omitempty"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	FileSize      int64    `json:"file_size,omitempty"`
}

// UploadResult records one publish outcome.
type UploadResult struct {
	Platform string `json:"platform"`
	Account  string `json:"account"`
	Target   string `json:"target"`
	Location string `json:"location"`
}

// ItemContext carries artifacts between the stages of one item.
//
//	download reads Item.URL, writes Download
//	burn     reads Download, Subtitles, writes ProcessedFile
//	upload   reads ProcessedFile (or Download.VideoFile), appends Uploads
type ItemContext struct {
	Index         int
	Item          Item
	Download      *Download
	Subtitles     []string
	ProcessedFile string
	Uploads       []UploadResult
}

// NewItemContext builds the context for the item at a 1-based index.
func NewItemContext(index int, item Item) *ItemContext {
	return &ItemContext{Index: index, Item: item}
}

// Clone returns a deep copy so a failed handler cannot leak partial writes.
func (c *ItemContext) Clone() *ItemContext {
	if c == nil {
		return nil
	}
	out := *c
	if c.Download != nil {
		dl := *c.Download
		dl.SubtitleFiles = slices.Clone(c.Download.SubtitleFiles)
		out.Download = &dl
	}
	out.Subtitles = slices.Clone(c.Subtitles)
	out.Uploads = slices.Clone(c.Uploads)
	return &out
}

// SourceVideo returns the newest video artifact: the processed file when a
// post-process stage ran, otherwise the downloaded file.
func (c *ItemContext) SourceVideo() string {
	if c.ProcessedFile != "" {
		return c.ProcessedFile
	}
	if c.Download != nil {
		return c.Download.VideoFile
	}
	return ""
}
