// Package downloader implements the "download" fetch stage. It runs yt-dlp for
// the item URL, writes the video as
// <storage>/videos/<sanitized title>_<YYYYMMDD_HHMMSS>.mp4 and records the
// subtitle and thumbnail files yt-dlp left next to it.
package downloader
