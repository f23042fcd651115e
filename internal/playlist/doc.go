// Package playlist maintains the durable reconciliation state between the
// upstream playlist and the local download archive.
//
// Three plain text files back the store: the playlist cache (one item id
// per line, upstream order), the download archive (last token of each line
// is an id; shared with yt-dlp's --download-archive), and the pending queue
// (playlist cache minus archive, in cache order). Refresh replaces the
// cache and queue wholesale; MarkFetched grows the archive and shrinks the
// queue one item at a time. The archive only ever grows.
package playlist
