package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"yt-mirror/internal/config"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          config.AppName,
		Level:           level,
	})
}

// openLogFile is where the logger goes while the dashboard owns the terminal.
func openLogFile(dataDir string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dataDir, config.AppName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
