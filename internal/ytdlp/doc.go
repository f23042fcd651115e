// Package ytdlp drives the external yt-dlp tool.
//
// The Client lists playlist contents and downloads individual items as
// subprocess invocations, each bounded by a configurable timeout. Command
// execution sits behind the Executor interface so tests can substitute a
// fake. Subprocess failures surface as ErrTimeout or ErrExternalTool; both
// are transient from the scheduler's point of view and are retried on a
// later tick.
package ytdlp
