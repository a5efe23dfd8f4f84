package display

import (
	"fmt"
	"strings"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatDuration renders a duration in the compact form used by progress and
// summary lines: "45s", "3m12s", "1h04m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatRate renders a throughput figure in documents per second, switching
// to per-minute below 1/s for readability.
func FormatRate(perSecond float64) string {
	if perSecond <= 0 {
		return "0 docs/s"
	}
	if perSecond < 1 {
		return fmt.Sprintf("%.1f docs/min", perSecond*60)
	}
	return fmt.Sprintf("%.1f docs/s", perSecond)
}

const barWidth = 24

// ProgressLine renders one progress update: a bar, percentage, counts, rate,
// and estimated remaining time.
func ProgressLine(done, failed, total int, rate float64, remaining time.Duration) string {
	if total <= 0 {
		return ""
	}
	pct := done * 100 / total
	filled := barWidth * done / total

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("#", filled))
	b.WriteString(strings.Repeat("-", barWidth-filled))
	b.WriteByte(']')
	fmt.Fprintf(&b, " %3d%% (%d/%d)", pct, done, total)
	if failed > 0 {
		fmt.Fprintf(&b, " %d failed", failed)
	}
	if rate > 0 {
		fmt.Fprintf(&b, " %s ETA %s", FormatRate(rate), FormatDuration(remaining))
	}
	return b.String()
}
