// Package ytdlp wraps the yt-dlp CLI as the download collaborator.
//
// The client asks yt-dlp for a machine-readable progress template and turns
// each progress line into a progress.Tick. All tool output is captured through
// a services.Executor, so nothing the tool prints reaches the worker's result
// channel.
package ytdlp
