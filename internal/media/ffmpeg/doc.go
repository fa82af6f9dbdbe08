// Package ffmpeg builds and runs the ffmpeg invocations used to burn
// subtitles and text watermarks into a video.
package ffmpeg
