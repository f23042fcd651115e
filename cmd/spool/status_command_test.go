package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStatusFixture(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	stateDir := filepath.Join(base, "state")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}

	files := map[string]string{
		"playlist_cache.txt":   "A\nB\nC\n",
		"download_archive.txt": "youtube A\n",
		"download_queue.txt":   "B\nC\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(stateDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	cfgPath := filepath.Join(base, "config.toml")
	cfg := `[paths]
download_dir = "` + filepath.Join(base, "downloads") + `"
state_dir = "` + stateDir + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[playlist]
url = "https://www.youtube.com/playlist?list=PLSTATUS"

[history]
enabled = false
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestStatusShowsPendingItems(t *testing.T) {
	cfgPath := writeStatusFixture(t)

	out, err := executeCommand(t, "status", "-c", cfgPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("expected daemon reported as not running:\n%s", out)
	}
	if !strings.Contains(out, "Next up") || !strings.Contains(out, "B, C") {
		t.Errorf("expected next pending ids in output:\n%s", out)
	}
}

func TestStatusJSONIncludesNextPending(t *testing.T) {
	cfgPath := writeStatusFixture(t)

	out, err := executeCommand(t, "status", "-c", cfgPath, "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	if !strings.Contains(out, `"next_pending"`) {
		t.Errorf("expected next_pending key in JSON:\n%s", out)
	}
	if !strings.Contains(out, `"pending": 2`) {
		t.Errorf("expected pending count in JSON:\n%s", out)
	}
}
