// Package subtitles copies downloaded subtitle files into a flat sync
// folder, typically one watched by a cloud-drive client, so they can be read
// on devices without a media player. Source names are tracked in a plain
// archive file to keep repeat passes cheap.
package subtitles
