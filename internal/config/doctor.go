package config

import (
	"os"
	"path/filepath"
	"strings"

	"yt-mirror/internal/runstore"
	"yt-mirror/internal/ytdlp"
)

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor checks what synchronize needs: the downloader and ffmpeg on PATH
// and writable config, data, target and tmp directories.
func Doctor(cfg Config) DoctorResult {
	checks := make([]DoctorCheck, 0, 6)

	client := ytdlp.New(cfg.Downloader)
	dep := client.DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:" + client.Binary,
		OK:      dep.DownloaderFound,
		Message: dependencyMessage(dep.DownloaderFound, dep.DownloaderPath, client.Binary),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	dirs := []struct {
		name string
		path string
	}{
		{"config", filepath.Dir(cfg.Path)},
		{"data", cfg.DataDir},
		{"target", cfg.TargetDir},
		{"tmp", cfg.TmpDir},
	}
	for _, d := range dirs {
		ok, msg := ensureWritableDir(d.path)
		checks = append(checks, DoctorCheck{
			Name:    "directory:" + d.name,
			OK:      ok,
			Message: msg,
		})
	}

	for _, f := range cfg.BookmarkFiles {
		check := DoctorCheck{Name: "bookmarks:" + filepath.Base(f), OK: true, Message: f}
		if _, err := os.Stat(f); err != nil {
			check.OK = false
			check.Message = err.Error()
		}
		checks = append(checks, check)
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" || path == "." {
		return false, "not configured"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "yt-mirror-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
