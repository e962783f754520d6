package archive

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"yt-mirror/internal/ytdlp"
)

var (
	rePct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`) // yt-dlp [download] ... at X
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reOf    = regexp.MustCompile(`\bof\s+~?\s*([^\s]+)`)
)

// downloadProgress follows the [download] lines of one yt-dlp invocation.
// Handle is called from both output readers, hence the lock.
type downloadProgress struct {
	mu      sync.Mutex
	pct     string
	whole   int
	speed   string
	eta     string
	totalSz string
}

func newDownloadProgress() *downloadProgress {
	return &downloadProgress{whole: -1}
}

// Handle consumes one output line and reports whether the whole-number
// percentage moved, which is when a new status is worth sending.
func (p *downloadProgress) Handle(stream ytdlp.OutputStream, line string) (string, bool) {
	if stream != ytdlp.StreamStdout {
		return "", false
	}
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "[download]") {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m := rePct.FindStringSubmatch(l)
	if len(m) < 2 {
		return "", false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", false
	}
	p.pct = m[1] + "%"
	if sm := reSpeed.FindStringSubmatch(l); len(sm) > 1 && sm[1] != "Unknown" {
		p.speed = sm[1]
	}
	if em := reETA.FindStringSubmatch(l); len(em) > 1 {
		p.eta = em[1]
	}
	if om := reOf.FindStringSubmatch(l); len(om) > 1 {
		p.totalSz = om[1]
	}

	whole := int(f)
	if whole == p.whole {
		return "", false
	}
	p.whole = whole
	return p.render(), true
}

func (p *downloadProgress) render() string {
	parts := []string{p.pct}
	if p.totalSz != "" {
		parts = append(parts, "of "+p.totalSz)
	}
	if p.speed != "" {
		parts = append(parts, "at "+p.speed)
	}
	if p.eta != "" {
		parts = append(parts, "ETA "+p.eta)
	}
	return strings.Join(parts, " ")
}
