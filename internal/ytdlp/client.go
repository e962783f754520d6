package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

const (
	DefaultBinary = "yt-dlp"

	// SkipMarker prefixes stdout when yt-dlp decides there is nothing to fetch,
	// e.g. a --match-filter rejected the video.
	SkipMarker = "skipping .."
)

var ErrMissingDependency = errors.New("missing dependency")

type Client struct {
	Binary string
}

func New(binary string) *Client {
	b := strings.TrimSpace(binary)
	if b == "" {
		b = DefaultBinary
	}
	return &Client{Binary: b}
}

type Request struct {
	VideoID   string
	TargetDir string
	TmpDir    string
	Filter    string
	LogWriter io.Writer
	Progress  func(stream OutputStream, line string)
}

// Result describes a process that ran to completion. Success is false for a
// non-zero exit; that is a download failure, not an invocation error.
type Result struct {
	Command  []string
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

// Skipped reports whether a successful run only printed the skip marker.
func (r Result) Skipped() bool {
	return r.Success && strings.HasPrefix(r.Stdout, SkipMarker)
}

type DependencyReport struct {
	DownloaderFound bool   `json:"downloader_found"`
	DownloaderPath  string `json:"downloader_path,omitempty"`
	FFmpegFound     bool   `json:"ffmpeg_found"`
	FFmpegPath      string `json:"ffmpeg_path,omitempty"`
}

func (c *Client) DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(c.binary()); err == nil {
		report.DownloaderFound = true
		report.DownloaderPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func (c *Client) CheckDependencies() error {
	report := c.DependencyStatus()
	if !report.DownloaderFound {
		return fmt.Errorf("%w: %s is not installed or not on PATH", ErrMissingDependency, c.binary())
	}
	if !report.FFmpegFound {
		return fmt.Errorf("%w: ffmpeg is required for audio extraction and was not found on PATH", ErrMissingDependency)
	}
	return nil
}

func BuildArgs(req Request) []string {
	args := []string{
		"-x",
		"-o", filepath.Join(req.TmpDir, "%(title)s.%(ext)s"),
		"--no-warnings",
		"--newline",
		"--exec", fmt.Sprintf("mv {} %s/", req.TargetDir),
	}
	if f := strings.TrimSpace(req.Filter); f != "" {
		args = append(args, "--match-filter", f)
	}
	return append(args, "--", req.VideoID)
}

// Download runs the downloader for one video and blocks until it exits.
// The error return is reserved for failures to start the process or read its
// output; a downloader that ran and exited non-zero yields Success=false.
func (c *Client) Download(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.VideoID) == "" {
		return Result{}, fmt.Errorf("video id is required")
	}
	if strings.TrimSpace(req.TargetDir) == "" {
		return Result{}, fmt.Errorf("target directory is required")
	}
	if strings.TrimSpace(req.TmpDir) == "" {
		return Result{}, fmt.Errorf("tmp directory is required")
	}

	args := BuildArgs(req)
	res := Result{Command: append([]string{c.binary()}, args...)}

	stdout, stderr, err := c.runCommand(ctx, args, req)
	res.Stdout = stdout
	res.Stderr = stderr
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	res.Success = true
	return res, nil
}

func (c *Client) binary() string {
	if c == nil || strings.TrimSpace(c.Binary) == "" {
		return DefaultBinary
	}
	return c.Binary
}

func (c *Client) runCommand(ctx context.Context, args []string, req Request) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.binary(), args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start %s: %w", c.binary(), err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup
	readErrs := make([]error, 2)

	read := func(slot int, stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			if !utf8.ValidString(line) {
				if readErrs[slot] == nil {
					readErrs[slot] = fmt.Errorf("%s %s is not valid UTF-8", c.binary(), stream)
				}
				continue
			}
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if req.LogWriter != nil {
				_, _ = io.WriteString(req.LogWriter, line+"\n")
			}
			mu.Unlock()

			if req.Progress != nil {
				req.Progress(stream, line)
			}
		}
		if err := scanner.Err(); err != nil && readErrs[slot] == nil {
			readErrs[slot] = fmt.Errorf("read %s: %w", stream, err)
		}
	}

	wg.Add(2)
	go read(0, StreamStdout, stdoutPipe)
	go read(1, StreamStderr, stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()
	if err := errors.Join(readErrs...); err != nil {
		return outBuf.String(), errBuf.String(), err
	}
	return outBuf.String(), strings.TrimSpace(errBuf.String()), waitErr
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = strings.ToValidUTF8(toWrite[:remain], "")
	}
	b.WriteString(toWrite)
}
