package playlist

import (
	"strings"

	"spool/internal/fileutil"
)

// archiveSourceTag prefixes archive entries written by the store, matching
// the "<extractor> <id>" lines yt-dlp records in the same file.
const archiveSourceTag = "youtube"

func (s *Store) loadSnapshot() ([]string, error) {
	return fileutil.ReadLines(s.cachePath)
}

func (s *Store) saveSnapshot(ids []string) error {
	return fileutil.WriteLines(s.cachePath, ids)
}

func (s *Store) loadQueue() ([]string, error) {
	return fileutil.ReadLines(s.queuePath)
}

func (s *Store) saveQueue(ids []string) error {
	return fileutil.WriteLines(s.queuePath, ids)
}

// loadArchive reads the download archive as a set of item ids. The last
// whitespace-separated token of each line is the id, which tolerates both
// bare ids and yt-dlp's "<extractor> <id>" form.
func (s *Store) loadArchive() (map[string]struct{}, error) {
	lines, err := fileutil.ReadLines(s.archivePath)
	if err != nil {
		return nil, err
	}
	fetched := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		fetched[fields[len(fields)-1]] = struct{}{}
	}
	return fetched, nil
}

// appendArchive rewrites the archive with id added at the end. The rewrite
// preserves existing lines verbatim; like every other persisted write this
// is a whole-file replace rather than an in-place append.
func (s *Store) appendArchive(id string) error {
	lines, err := fileutil.ReadLines(s.archivePath)
	if err != nil {
		return err
	}
	lines = append(lines, archiveSourceTag+" "+id)
	return fileutil.WriteLines(s.archivePath, lines)
}
