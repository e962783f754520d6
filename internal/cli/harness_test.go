package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"yt-mirror/internal/runstore"
)

type harness struct {
	t          *testing.T
	root       string
	fakeBin    string
	configPath string
	dataDir    string
	targetDir  string
}

const bookmarksFixture = `{
  "roots": {
    "bookmark_bar": {"name": "bar", "type": "folder", "children": [
      {"name": "Good", "type": "url", "url": "https://www.youtube.com/watch?v=good"},
      {"name": "Skip", "type": "url", "url": "https://music.youtube.com/watch?v=skipme"},
      {"name": "Docs", "type": "url", "url": "https://go.dev/doc"}
    ]},
    "other": {"name": "other", "type": "folder", "children": [
      {"name": "Broken", "type": "url", "url": "https://youtu.be/broken"},
      {"name": "Good again", "type": "url", "url": "https://youtube.com/watch?v=good"}
    ]},
    "synced": {"name": "synced", "type": "folder", "children": []}
  }
}`

const ytScript = `#!/usr/bin/env bash
set -euo pipefail
id="${@: -1}"
case "$id" in
  skipme)
    echo "skipping .. does not pass filter"
    ;;
  broken)
    if [ -f "$YTM_FIXED" ]; then
      echo "[download] 100.0% of 1.00MiB at 1.00MiB/s ETA 00:00"
      exit 0
    fi
    echo "ERROR: network error" >&2
    exit 1
    ;;
  *)
    echo "[download]  50.0% of 1.00MiB at 1.00MiB/s ETA 00:01"
    echo "[download] 100.0% of 1.00MiB at 1.00MiB/s ETA 00:00"
    ;;
esac
`

func newHarness(t *testing.T) *harness {
	t.Helper()
	tmp := t.TempDir()
	h := &harness{
		t:          t,
		root:       tmp,
		fakeBin:    filepath.Join(tmp, "bin"),
		configPath: filepath.Join(tmp, "config", "config.toml"),
		dataDir:    filepath.Join(tmp, "data"),
		targetDir:  filepath.Join(tmp, "music"),
	}
	if err := os.MkdirAll(h.fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	h.writeFile(filepath.Join(h.fakeBin, "yt-dlp"), ytScript, 0o755)
	h.writeFile(filepath.Join(h.fakeBin, "ffmpeg"), "#!/usr/bin/env bash\nexit 0\n", 0o755)
	t.Setenv("PATH", h.fakeBin+":"+os.Getenv("PATH"))
	t.Setenv("YTM_FIXED", filepath.Join(tmp, "fixed"))

	bookmarks := filepath.Join(tmp, "Bookmarks")
	h.writeFile(bookmarks, bookmarksFixture, 0o644)
	h.writeFile(h.configPath, fmt.Sprintf(
		"bookmark_files = [%q]\ntarget_dir = %q\ntmp_dir = %q\ndata_dir = %q\nworkers = 2\n",
		bookmarks, h.targetDir, filepath.Join(tmp, "tmp"), h.dataDir,
	), 0o644)
	return h
}

func (h *harness) writeFile(path, content string, mode os.FileMode) {
	h.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--config", h.configPath)
	err := execute(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func expectLines(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(out, line+"\n") {
			t.Fatalf("expected %q in output:\n%s", line, out)
		}
	}
}

func TestHarnessPrepareIsIdempotent(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("prepare")
	expectLines(t, out, "bookmarks: 5", "videos: 3", "inserted: 3")

	out = h.mustRun("prepare")
	expectLines(t, out, "videos: 3", "inserted: 0")
}

func TestHarnessSynchronizeFailedAndRetry(t *testing.T) {
	h := newHarness(t)
	h.mustRun("prepare")

	out := h.mustRun("synchronize", "--no-tui")
	expectLines(t, out,
		"dispatched: 3",
		"finished: 1",
		"failed: 1",
		"skipped: 1",
		"crashed_workers: 0",
		"remaining: 0",
		"aborted: false",
		"pending_total: 0",
		"failed_total: 1",
	)

	runDir, err := runstore.LatestRunDir(h.dataDir)
	if err != nil {
		t.Fatalf("expected run directory: %v", err)
	}
	rec, err := runstore.LoadRunRecord(runDir)
	if err != nil {
		t.Fatalf("load run record: %v", err)
	}
	if rec.Dispatched != 3 || rec.Workers != 2 || rec.Failed != 1 {
		t.Fatalf("unexpected run record %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(runDir, "logs", "good.log")); err != nil {
		t.Fatalf("expected downloader log for good: %v", err)
	}

	if got := h.mustRun("failed", "--short"); got != "broken\n" {
		t.Fatalf("unexpected failed --short output %q", got)
	}
	long := h.mustRun("failed")
	for _, want := range []string{"broken", "ERROR: network error", "last run " + rec.RunID} {
		if !strings.Contains(long, want) {
			t.Fatalf("expected %q in failed output:\n%s", want, long)
		}
	}

	if got := h.mustRun("synchronize", "--no-tui"); got != "nothing to do\n" {
		t.Fatalf("expected nothing to do, got %q", got)
	}

	h.writeFile(filepath.Join(h.root, "fixed"), "", 0o644)
	out = h.mustRun("synchronize", "--no-tui", "--retry", "--workers", "1")
	expectLines(t, out, "dispatched: 1", "finished: 1", "failed: 0", "failed_total: 0")

	if got := h.mustRun("failed", "--short"); got != "" {
		t.Fatalf("expected no failed videos, got %q", got)
	}
}

func TestHarnessSynchronizeRefusesLockedDataDir(t *testing.T) {
	h := newHarness(t)
	h.mustRun("prepare")

	lock, err := runstore.AcquireRunLock(h.dataDir, "other-run")
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	_, err = h.run("synchronize", "--no-tui")
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestHarnessSynchronizeRequiresDownloader(t *testing.T) {
	h := newHarness(t)
	h.mustRun("prepare")
	if err := os.Remove(filepath.Join(h.fakeBin, "yt-dlp")); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", h.fakeBin)

	_, err := h.run("synchronize", "--no-tui")
	if err == nil || !strings.Contains(err.Error(), "missing dependency") {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
}

func TestHarnessDoctor(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("doctor")
	if !strings.Contains(out, "dependency:yt-dlp: ok") || !strings.Contains(out, "doctor: all checks passed") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}

	if err := os.Remove(filepath.Join(h.fakeBin, "ffmpeg")); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", h.fakeBin)
	out, err := h.run("doctor")
	if err == nil {
		t.Fatalf("expected doctor to fail without ffmpeg")
	}
	if !strings.Contains(out, "dependency:ffmpeg: fail") {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"bogus"}, &out, &out); err == nil {
		t.Fatalf("expected unknown command error")
	}
}
