package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"yt-mirror/internal/runstore"
	"yt-mirror/internal/ytdlp"
)

const (
	AppName  = "yt-mirror"
	FileName = "config.toml"
)

// Config is the user's config.toml with defaults applied and every path
// expanded.
type Config struct {
	BookmarkFiles []string `toml:"bookmark_files"`
	TargetDir     string   `toml:"target_dir"`
	TmpDir        string   `toml:"tmp_dir"`
	DataDir       string   `toml:"data_dir"`
	Workers       int      `toml:"workers"`
	Downloader    string   `toml:"downloader"`

	Path string `toml:"-"`
}

const defaultFileContent = `# yt-mirror configuration

# Chromium "Bookmarks" JSON files or Firefox places.sqlite databases.
bookmark_files = []

# Where finished audio files are moved to.
target_dir = ""

# tmp_dir = ""     # default: <os temp>/yt-mirror
# data_dir = ""    # default: $XDG_DATA_HOME/yt-mirror
# workers = 10
# downloader = "yt-dlp"
`

// DefaultPath is config.toml under the platform config home
// ($XDG_CONFIG_HOME on Linux).
func DefaultPath() (string, error) {
	if strings.TrimSpace(xdg.ConfigHome) == "" {
		return "", errors.New("cannot resolve config home directory")
	}
	return filepath.Join(xdg.ConfigHome, AppName, FileName), nil
}

func DefaultDataDir() (string, error) {
	if strings.TrimSpace(xdg.DataHome) == "" {
		return "", errors.New("cannot resolve data home directory")
	}
	return filepath.Join(xdg.DataHome, AppName), nil
}

func DefaultTmpDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

// Load reads path (the XDG default when empty), creating a commented
// template on first use, and makes sure the data directory exists.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	path, err := ExpandHome(path)
	if err != nil {
		return Config{}, err
	}
	if _, err := EnsureFile(path); err != nil {
		return Config{}, err
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("parse config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path

	if err := cfg.normalize(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := runstore.Mkdir(cfg.DataDir); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	c.Downloader = strings.TrimSpace(c.Downloader)
	if c.Downloader == "" {
		c.Downloader = ytdlp.DefaultBinary
	}

	if strings.TrimSpace(c.DataDir) == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	if strings.TrimSpace(c.TmpDir) == "" {
		c.TmpDir = DefaultTmpDir()
	}

	var err error
	for _, p := range []*string{&c.TargetDir, &c.TmpDir, &c.DataDir} {
		if *p, err = ExpandHome(strings.TrimSpace(*p)); err != nil {
			return err
		}
	}
	files := make([]string, 0, len(c.BookmarkFiles))
	for _, f := range c.BookmarkFiles {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		expanded, err := ExpandHome(f)
		if err != nil {
			return err
		}
		files = append(files, expanded)
	}
	c.BookmarkFiles = files
	return nil
}

func (c Config) RequireBookmarkFiles() error {
	if len(c.BookmarkFiles) == 0 {
		return fmt.Errorf("no bookmark_files configured in %s", c.Path)
	}
	return nil
}

func (c Config) RequireTargetDir() error {
	if c.TargetDir == "" {
		return fmt.Errorf("target_dir is not configured in %s", c.Path)
	}
	return nil
}

// EnsureFile creates the config file with a commented template when it does
// not exist yet. It reports whether the file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config %s: %w", path, err)
	}
	if err := runstore.WriteBytes(path, []byte(defaultFileContent)); err != nil {
		return false, err
	}
	return true, nil
}

// ExpandHome resolves a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
