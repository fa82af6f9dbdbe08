// Package ytdlp wraps the yt-dlp command line tool.
//
// Key entry points:
//   - Client.ListChannel: flat list of a channel or playlist with per-entry metadata
//   - Client.Probe: metadata for a single URL without downloading
//   - Client.Download: fetch one video into an output template, converting to mp4
//
// The package shells out with exec.CommandContext and decodes yt-dlp's JSON
// output; it has no dependency on the rest of mediaflow.
package ytdlp
