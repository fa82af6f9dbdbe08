// Package scanner implements the "scan" discovery stage: it lists the videos
// of a channel or playlist URL through yt-dlp and turns each entry into a
// stage.Item for the pipeline.
//
// Node configuration:
//
//	url          channel, playlist or video URL (required)
//	video_limit  "all" or a positive integer (default "all")
//
// YouTube channel URLs are rewritten to their /videos tab so uploads are
// listed instead of playlists. Entries without a webpage URL get one built
// from their id for the platforms that use predictable URLs.
package scanner
